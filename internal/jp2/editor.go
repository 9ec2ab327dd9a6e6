package jp2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// ErrVerify reports a patched container that failed to re-parse consistently.
var ErrVerify = errors.New("patched container failed verification")

// InsertSiblingBoxes appends boxes to the end of the payload of the first
// top-level box tagged target, so they become siblings of its existing
// children, and grows the target's length accordingly.
//
// The input is returned unchanged with ok == false when the target is absent
// or when its layout is atypical (runs to EOF, XLBox). A container that does
// not scan cleanly is left alone as well and the scan error is returned.
// The patched bytes are re-scanned before they are returned.
func InsertSiblingBoxes(data []byte, target Tag, boxes ...[]byte) (out []byte, ok bool, err error) {
	orig, err := Scan(data)
	if err != nil {
		return data, false, err
	}

	idx := -1
	for i, b := range orig {
		if b.Tag == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return data, false, nil
	}
	t := orig[idx]
	if t.ToEOF || t.Extended {
		return data, false, nil
	}

	inserted := 0
	for _, b := range boxes {
		inserted += len(b)
	}
	if inserted == 0 {
		return data, false, nil
	}
	newLen := uint64(t.Length) + uint64(inserted)
	if newLen > 0xFFFFFFFF {
		return data, false, fmt.Errorf("%w: %q would grow to %d bytes", ErrTooLarge, target, newLen)
	}

	out = make([]byte, 0, len(data)+inserted)
	out = append(out, data[:t.Offset]...)
	out = binary.BigEndian.AppendUint32(out, uint32(newLen))
	out = append(out, target[:]...)
	out = append(out, t.Payload...)
	for _, b := range boxes {
		out = append(out, b...)
	}
	out = append(out, data[t.End():]...)

	if err := verifyInsert(orig, out, idx, inserted, boxes); err != nil {
		return data, false, err
	}
	return out, true, nil
}

// verifyInsert re-scans a patched container: boxes before the target keep
// their offsets, the target grew by inserted bytes and ends with the new
// boxes, and every later box moved by exactly inserted bytes.
func verifyInsert(orig []Box, patched []byte, idx, inserted int, boxes [][]byte) error {
	got, err := Scan(patched)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if len(got) != len(orig) {
		return fmt.Errorf("%w: %d top-level boxes, want %d", ErrVerify, len(got), len(orig))
	}
	for i, b := range got {
		want := orig[i]
		shift, grow := 0, 0
		switch {
		case i == idx:
			grow = inserted
		case i > idx:
			shift = inserted
		}
		if b.Tag != want.Tag || b.Offset != want.Offset+shift || b.Length != want.Length+grow {
			return fmt.Errorf("%w: box %d is %q@%d+%d, want %q@%d+%d", ErrVerify,
				i, b.Tag, b.Offset, b.Length, want.Tag, want.Offset+shift, want.Length+grow)
		}
	}

	children, err := got[idx].Children()
	if err != nil {
		return fmt.Errorf("%w: %q children: %v", ErrVerify, got[idx].Tag, err)
	}
	if len(children) < len(boxes) {
		return fmt.Errorf("%w: %q has %d children", ErrVerify, got[idx].Tag, len(children))
	}
	tail := children[len(children)-len(boxes):]
	for i, c := range tail {
		if c.Length != len(boxes[i]) {
			return fmt.Errorf("%w: inserted box %d is %d bytes, want %d", ErrVerify, i, c.Length, len(boxes[i]))
		}
	}
	return nil
}

// AppendTrailingBox appends one UUID box to the file at path:
// [u32 length][tag][16-byte type id][payload]. The file is opened
// append-only, so the box always lands after every existing byte.
func AppendTrailingBox(path string, tag Tag, typeID uuid.UUID, payload []byte) error {
	total := uint64(headerLen + len(typeID) + len(payload))
	if total > 0xFFFFFFFF {
		return fmt.Errorf("%w: %q is %d bytes", ErrTooLarge, tag, total)
	}
	buf := make([]byte, 0, total)
	buf = binary.BigEndian.AppendUint32(buf, uint32(total))
	buf = append(buf, tag[:]...)
	buf = append(buf, typeID[:]...)
	buf = append(buf, payload...)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("append %q box: %w", tag, err)
	}
	return f.Close()
}
