package jp2_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/tiff2jp2/internal/density"
	"github.com/AnyUserName/tiff2jp2/internal/jp2"
	"github.com/AnyUserName/tiff2jp2/internal/jp2/jp2test"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tags(boxes []jp2.Box) []string {
	var out []string
	for _, b := range boxes {
		out = append(out, b.Tag.String())
	}
	return out
}

// assertLengthsConsistent walks the top level and the jp2h/res superboxes
// and checks no declared length overruns its parent.
func assertLengthsConsistent(t *testing.T, data []byte) []jp2.Box {
	t.Helper()
	boxes, err := jp2.Scan(data)
	require.NoError(t, err)
	end := 0
	for _, b := range boxes {
		assert.Equal(t, end, b.Offset)
		assert.Equal(t, b.HeaderLen+len(b.Payload), b.Length)
		end = b.End()
		if b.Tag == jp2.TagHeader || b.Tag == jp2.TagResolution {
			children, err := b.Children()
			require.NoError(t, err, "children of %s", b.Tag)
			for _, c := range children {
				assert.Equal(t, c.HeaderLen+len(c.Payload), c.Length)
				if c.Tag == jp2.TagResolution {
					_, err := c.Children()
					require.NoError(t, err)
				}
			}
		}
	}
	assert.Equal(t, len(data), end)
	return boxes
}

func TestScan_Container(t *testing.T) {
	data := jp2test.Container(64, 32, 3, 8)
	boxes := assertLengthsConsistent(t, data)
	assert.Equal(t, []string{"jP  ", "ftyp", "jp2h", "jp2c"}, tags(boxes))

	hdr, ok := jp2.Find(boxes, jp2.TagHeader)
	require.True(t, ok)
	children, err := hdr.Children()
	require.NoError(t, err)
	assert.Equal(t, []string{"ihdr", "colr"}, tags(children))
}

func TestScan_ToEOFAndMalformed(t *testing.T) {
	data := append(jp2test.Signature(), jp2test.RawBox(0, "jp2c", []byte{0xFF, 0x4F, 0xFF, 0xD9})...)
	boxes, err := jp2.Scan(data)
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	assert.True(t, boxes[1].ToEOF)
	assert.Equal(t, 12, boxes[1].Length)

	_, err = jp2.Scan(jp2test.RawBox(4, "bad!", nil))
	assert.ErrorIs(t, err, jp2.ErrMalformed)

	_, err = jp2.Scan(jp2test.RawBox(500, "long", make([]byte, 10)))
	assert.ErrorIs(t, err, jp2.ErrMalformed)

	_, err = jp2.Scan(append(jp2test.Signature(), 1, 2, 3))
	assert.ErrorIs(t, err, jp2.ErrMalformed)
}

func TestInsertSiblingBoxes_TargetAbsent(t *testing.T) {
	data := append(jp2test.Signature(), jp2test.Codestream(16)...)
	orig := bytes.Clone(data)

	out, ok, err := jp2.InsertSiblingBoxes(data, jp2.TagHeader, jp2test.Box("test", []byte{1, 2, 3}))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, orig, out)
}

func TestInsertSiblingBoxes_EOFSentinelTarget(t *testing.T) {
	hdr := jp2test.Header(8, 8, 1, 8)
	var data []byte
	data = append(data, jp2test.Signature()...)
	data = append(data, jp2test.FileType()...)
	data = append(data, jp2test.RawBox(0, "jp2h", hdr[8:])...)
	orig := bytes.Clone(data)

	out, ok, err := jp2.InsertSiblingBoxes(data, jp2.TagHeader, jp2test.Box("test", nil))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, orig, out)
}

func TestInsertSiblingBoxes_XLBoxTarget(t *testing.T) {
	payload := jp2test.Header(8, 8, 1, 8)[8:]
	xl := binary.BigEndian.AppendUint32(nil, 1)
	xl = append(xl, "jp2h"...)
	xl = binary.BigEndian.AppendUint64(xl, uint64(16+len(payload)))
	xl = append(xl, payload...)
	data := append(jp2test.Signature(), xl...)
	orig := bytes.Clone(data)

	out, ok, err := jp2.InsertSiblingBoxes(data, jp2.TagHeader, jp2test.Box("test", nil))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, orig, out)
}

func TestInsertSiblingBoxes_MalformedIsNoop(t *testing.T) {
	data := append(jp2test.Container(8, 8, 1, 8), 0, 0)
	orig := bytes.Clone(data)

	out, ok, err := jp2.InsertSiblingBoxes(data, jp2.TagHeader, jp2test.Box("test", nil))
	assert.ErrorIs(t, err, jp2.ErrMalformed)
	assert.False(t, ok)
	assert.Equal(t, orig, out)
}

func TestInsertSiblingBoxes_ResolutionRoundTrip(t *testing.T) {
	data := jp2test.Container(4000, 3000, 3, 8)
	before, err := jp2.Scan(data)
	require.NoError(t, err)

	ppm := density.PixelsPerMetre(300, density.UnitInch)
	res, err := jp2.ResolutionBox(ppm, ppm)
	require.NoError(t, err)
	require.Len(t, res, 8+(8+13)*2)

	out, ok, err := jp2.InsertSiblingBoxes(data, jp2.TagHeader, res)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, out, len(data)+len(res))

	after := assertLengthsConsistent(t, out)
	require.Equal(t, tags(before), tags(after))
	for i := range before {
		switch {
		case before[i].Tag == jp2.TagHeader:
			assert.Equal(t, before[i].Length+len(res), after[i].Length)
		case before[i].Offset > before[2].Offset:
			assert.Equal(t, before[i].Offset+len(res), after[i].Offset)
			assert.Equal(t, before[i].Payload, after[i].Payload)
		default:
			assert.Equal(t, before[i].Offset, after[i].Offset)
		}
	}

	hdr, _ := jp2.Find(after, jp2.TagHeader)
	children, err := hdr.Children()
	require.NoError(t, err)
	assert.Equal(t, []string{"ihdr", "colr", "res "}, tags(children))

	resBoxes, err := children[2].Children()
	require.NoError(t, err)
	assert.Equal(t, []string{"resc", "resd"}, tags(resBoxes))
	for _, rb := range resBoxes {
		require.Len(t, rb.Payload, 13)
		v, h, err := jp2.ParseResolutionPayload(rb.Payload)
		require.NoError(t, err)
		assert.InDelta(t, 11811.02, v.Value(), 1)
		assert.InDelta(t, 11811.02, h.Value(), 1)
		assert.Zero(t, rb.Payload[12])
	}
}

func TestResolutionBox_NoDensity(t *testing.T) {
	_, err := jp2.ResolutionBox(0, 11811)
	assert.ErrorIs(t, err, jp2.ErrNoDensity)
}

func TestResolutionPayload_VerticalFirst(t *testing.T) {
	v := jp2.Triplet{Num: 1, Den: 2, Exp: 3}
	h := jp2.Triplet{Num: 4, Den: 5, Exp: 0}
	p := jp2.ResolutionPayload(v, h)
	assert.Equal(t, []byte{0, 1, 0, 2, 3, 0, 4, 0, 5, 0, 0}, p[:11])
	assert.Len(t, p, 13)

	gv, gh, err := jp2.ParseResolutionPayload(p)
	require.NoError(t, err)
	assert.Equal(t, v, gv)
	assert.Equal(t, h, gh)
}

func TestAppendTrailingBox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jp2")
	data := jp2test.Container(16, 16, 1, 8)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	payload := []byte("<x:xmpmeta/>")
	require.NoError(t, jp2.AppendTrailingBox(path, jp2.TagUUID, jp2.XMPBoxUUID, payload))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got[:len(data)])

	boxes := assertLengthsConsistent(t, got)
	last := boxes[len(boxes)-1]
	assert.Equal(t, jp2.TagUUID, last.Tag)
	assert.Equal(t, 8+16+len(payload), last.Length)
	id, err := uuid.FromBytes(last.Payload[:16])
	require.NoError(t, err)
	assert.Equal(t, jp2.XMPBoxUUID, id)
	assert.Equal(t, payload, last.Payload[16:])
}

func TestAppendTrailingBox_MissingFile(t *testing.T) {
	err := jp2.AppendTrailingBox(filepath.Join(t.TempDir(), "nope.jp2"), jp2.TagUUID, jp2.XMPBoxUUID, nil)
	assert.Error(t, err)
}
