// Package hasher fingerprints converted outputs for the manifest.
package hasher

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// HexLen is the manifest hash length: the full 64-bit xxHash.
const HexLen = 16

// FileHash streams the file at path through xxHash64 and returns the hex
// digest with the number of bytes read.
func FileHash(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(binary.BigEndian.AppendUint64(nil, h.Sum64())), n, nil
}
