package jp2

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnyUserName/tiff2jp2/internal/density"
)

// PatchOptions selects which metadata boxes PatchFile writes.
type PatchOptions struct {
	ResolutionBox bool
	XMP           bool
}

// PatchResult records what PatchFile managed to do. Errors are informational:
// the compressed image is complete without any of these boxes.
type PatchResult struct {
	ResolutionInserted bool
	XMPAppended        bool
	Errs               []error
}

// PatchFile adds resolution metadata to a finished JP2 file. The res box is
// spliced into jp2h first and the XMP uuid box is appended afterwards, so the
// appended box can never end up inside a box span that was just grown.
func PatchFile(path string, res density.Resolution, opts PatchOptions) PatchResult {
	var r PatchResult
	if opts.ResolutionBox {
		ok, err := insertResolution(path, res)
		r.ResolutionInserted = ok
		if err != nil {
			r.Errs = append(r.Errs, fmt.Errorf("res box: %w", err))
		}
	}
	if opts.XMP {
		if err := AppendTrailingBox(path, TagUUID, XMPBoxUUID, XMPPacket(res)); err != nil {
			r.Errs = append(r.Errs, fmt.Errorf("xmp box: %w", err))
		} else {
			r.XMPAppended = true
		}
	}
	return r
}

func insertResolution(path string, res density.Resolution) (bool, error) {
	xppm, yppm := res.PixelsPerMetre()
	box, err := ResolutionBox(yppm, xppm)
	if err != nil {
		return false, err
	}
	return InsertIntoFile(path, TagHeader, box)
}

// InsertIntoFile runs InsertSiblingBoxes on the file at path and replaces it
// atomically when something changed. A no-op leaves the file untouched.
func InsertIntoFile(path string, target Tag, boxes ...[]byte) (bool, error) {
	return editFile(path, func(data []byte) ([]byte, bool, error) {
		return InsertSiblingBoxes(data, target, boxes...)
	})
}

// SetColourSpecFile runs SetColourSpec on the file at path.
func SetColourSpecFile(path string, colr []byte) (bool, error) {
	return editFile(path, func(data []byte) ([]byte, bool, error) {
		return SetColourSpec(data, colr)
	})
}

func editFile(path string, edit func([]byte) ([]byte, bool, error)) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	out, ok, err := edit(data)
	if err != nil || !ok {
		return false, err
	}
	if err := replaceFile(path, out); err != nil {
		return false, err
	}
	return true, nil
}

// replaceFile writes data next to path and renames it over path.
func replaceFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
