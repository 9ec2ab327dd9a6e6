package cmd

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/AnyUserName/tiff2jp2/internal/jp2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.jp2>...",
	Short: "List the boxes of JP2 files and check their structure",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInspect,
}

// superboxes are descended into when listing.
var superboxes = map[jp2.Tag]bool{
	jp2.TagHeader:     true,
	jp2.TagResolution: true,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	bad := 0
	for _, path := range args {
		boxes, err := jp2.ReadFile(path)
		if err != nil {
			fmt.Fprintf(w, "  ✗ %s: %v\n", path, err)
			bad++
			continue
		}
		fmt.Fprintf(w, "%s\n", path)
		printBoxes(w, boxes, 1)

		errs := validateContainer(boxes)
		if len(errs) == 0 {
			fmt.Fprintln(w, "  ✓ structure is valid")
			continue
		}
		bad++
		fmt.Fprintf(w, "  ✗ %d problem(s):\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(w, "    • %s\n", e)
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d files failed inspection", bad, len(args))
	}
	return nil
}

func printBoxes(w io.Writer, boxes []jp2.Box, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, b := range boxes {
		fmt.Fprintf(w, "%s%-4s  offset %-9d length %-9d%s\n", indent, b.Tag, b.Offset, b.Length, describeBox(b))
		if !superboxes[b.Tag] || b.ToEOF || b.Extended {
			continue
		}
		children, err := b.Children()
		if err != nil {
			fmt.Fprintf(w, "%s  (children unreadable: %v)\n", indent, err)
			continue
		}
		printBoxes(w, children, depth+1)
	}
}

func describeBox(b jp2.Box) string {
	switch {
	case b.ToEOF:
		return "  (to end of file)"
	case b.Extended:
		return "  (XLBox)"
	}
	switch b.Tag {
	case jp2.TagCaptureRes, jp2.TagDisplayRes:
		v, h, err := jp2.ParseResolutionPayload(b.Payload)
		if err != nil {
			return "  " + err.Error()
		}
		return fmt.Sprintf("  %.2f x %.2f px/m (%.2f x %.2f dpi)",
			h.Value(), v.Value(), h.Value()*0.0254, v.Value()*0.0254)
	case jp2.TagColorSpec:
		if len(b.Payload) < 3 {
			return ""
		}
		if b.Payload[0] == jp2.ColourICC {
			return fmt.Sprintf("  ICC profile, %d bytes", len(b.Payload)-3)
		}
		return "  enumerated"
	case jp2.TagUUID:
		if len(b.Payload) < 16 {
			return ""
		}
		id, _ := uuid.FromBytes(b.Payload[:16])
		if id == jp2.XMPBoxUUID {
			return "  XMP"
		}
		return "  " + id.String()
	}
	return ""
}

// validateContainer reports structural problems a conversion could cause.
func validateContainer(boxes []jp2.Box) []string {
	var errs []string

	if len(boxes) == 0 || boxes[0].Tag != jp2.TagSignature {
		errs = append(errs, "first box is not the JP2 signature")
	} else if !bytes.Equal(boxes[0].Payload, []byte{0x0d, 0x0a, 0x87, 0x0a}) {
		errs = append(errs, "signature box has the wrong payload")
	}

	hdr, ok := jp2.Find(boxes, jp2.TagHeader)
	if !ok {
		errs = append(errs, "missing jp2h header box")
	} else if !hdr.ToEOF && !hdr.Extended {
		children, err := hdr.Children()
		switch {
		case err != nil:
			errs = append(errs, fmt.Sprintf("jp2h children: %v", err))
		case len(children) == 0 || children[0].Tag != jp2.TagImageHeader:
			errs = append(errs, "jp2h does not start with ihdr")
		}
		resCount := 0
		for _, c := range children {
			if c.Tag == jp2.TagResolution {
				resCount++
			}
		}
		if resCount > 1 {
			errs = append(errs, fmt.Sprintf("jp2h holds %d res boxes", resCount))
		}
	}

	if _, ok := jp2.Find(boxes, jp2.TagCodestream); !ok {
		errs = append(errs, "missing jp2c codestream box")
	}
	return errs
}
