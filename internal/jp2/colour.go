package jp2

import (
	"bytes"
	"errors"
	"fmt"
)

// colr specification methods.
const (
	ColourEnumerated byte = 1
	ColourICC        byte = 2
)

// ColourSpecICC builds a colr box carrying a restricted ICC profile.
func ColourSpecICC(icc []byte) ([]byte, error) {
	if len(icc) == 0 {
		return nil, errors.New("empty ICC profile")
	}
	// METH, PREC, APPROX, then the profile.
	return MarshalBox(TagColorSpec, []byte{ColourICC, 0, 0}, icc)
}

// SetColourSpec puts colr in place of the first colr box of jp2h (readers
// honour only the first), or after the last child when jp2h has none.
// Containers without a plain-length jp2h are returned unchanged.
func SetColourSpec(data, colr []byte) ([]byte, bool, error) {
	boxes, err := Scan(data)
	if err != nil {
		return data, false, err
	}
	idx := -1
	for i, b := range boxes {
		if b.Tag == TagHeader {
			idx = i
			break
		}
	}
	if idx < 0 || boxes[idx].ToEOF || boxes[idx].Extended {
		return data, false, nil
	}
	h := boxes[idx]
	children, err := h.Children()
	if err != nil {
		return data, false, err
	}

	payload := make([]byte, 0, len(h.Payload)+len(colr))
	replaced := false
	for _, c := range children {
		if c.Tag == TagColorSpec && !replaced {
			payload = append(payload, colr...)
			replaced = true
			continue
		}
		payload = append(payload, h.Payload[c.Offset:c.End()]...)
	}
	if !replaced {
		payload = append(payload, colr...)
	}
	hdr, err := MarshalBox(TagHeader, payload)
	if err != nil {
		return data, false, err
	}

	out := make([]byte, 0, len(data)-h.Length+len(hdr))
	out = append(out, data[:h.Offset]...)
	out = append(out, hdr...)
	out = append(out, data[h.End():]...)

	if err := verifyColour(boxes, out, idx, colr); err != nil {
		return data, false, err
	}
	return out, true, nil
}

func verifyColour(orig []Box, patched []byte, idx int, colr []byte) error {
	got, err := Scan(patched)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if len(got) != len(orig) {
		return fmt.Errorf("%w: %d top-level boxes, want %d", ErrVerify, len(got), len(orig))
	}
	for i := range got {
		if got[i].Tag != orig[i].Tag {
			return fmt.Errorf("%w: box %d is %q, want %q", ErrVerify, i, got[i].Tag, orig[i].Tag)
		}
	}
	children, err := got[idx].Children()
	if err != nil {
		return fmt.Errorf("%w: jp2h children: %v", ErrVerify, err)
	}
	c, ok := Find(children, TagColorSpec)
	if !ok || !bytes.Equal(got[idx].Payload[c.Offset:c.End()], colr) {
		return fmt.Errorf("%w: colour specification not in place", ErrVerify)
	}
	return nil
}
