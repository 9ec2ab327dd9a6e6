package jp2

import (
	"fmt"
	"math"

	"github.com/AnyUserName/tiff2jp2/internal/density"
	"github.com/google/uuid"
)

// XMPBoxUUID is the type identifier of an XMP packet stored in a uuid box.
var XMPBoxUUID = uuid.MustParse("be7acfcb-97a9-42e8-9c71-999491e3afac")

// XMPPacket renders a minimal XMP packet carrying TIFF-style resolution
// attributes, densities written as thousandths.
func XMPPacket(res density.Resolution) []byte {
	return fmt.Appendf(nil, `<x:xmpmeta xmlns:x="adobe:ns:meta/">
 <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description xmlns:tiff="http://ns.adobe.com/tiff/1.0/"
    tiff:XResolution="%s"
    tiff:YResolution="%s"
    tiff:ResolutionUnit="%d"/>
 </rdf:RDF>
</x:xmpmeta>`, thousandths(res.X), thousandths(res.Y), res.Unit.TIFFCode())
}

func thousandths(v float64) string {
	return fmt.Sprintf("%d/1000", uint64(math.Round(v*1000)))
}
