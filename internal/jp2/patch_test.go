package jp2_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnyUserName/tiff2jp2/internal/density"
	"github.com/AnyUserName/tiff2jp2/internal/jp2"
	"github.com/AnyUserName/tiff2jp2/internal/jp2/jp2test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContainer(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "img.jp2")
	require.NoError(t, os.WriteFile(path, data, 0o640))
	return path
}

func TestPatchFile_Both(t *testing.T) {
	path := writeContainer(t, jp2test.Container(4000, 3000, 3, 8))
	res := density.Resolution{X: 300, Y: 300, Unit: density.UnitInch}

	r := jp2.PatchFile(path, res, jp2.PatchOptions{ResolutionBox: true, XMP: true})
	assert.Empty(t, r.Errs)
	assert.True(t, r.ResolutionInserted)
	assert.True(t, r.XMPAppended)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	boxes := assertLengthsConsistent(t, data)
	assert.Equal(t, []string{"jP  ", "ftyp", "jp2h", "jp2c", "uuid"}, tags(boxes))

	hdr, _ := jp2.Find(boxes, jp2.TagHeader)
	children, err := hdr.Children()
	require.NoError(t, err)
	_, ok := jp2.Find(children, jp2.TagResolution)
	assert.True(t, ok)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestPatchFile_NoHeaderStillAppendsXMP(t *testing.T) {
	data := append(jp2test.Signature(), jp2test.Codestream(8)...)
	path := writeContainer(t, data)

	r := jp2.PatchFile(path, density.Resolution{X: 72, Y: 72, Unit: density.UnitInch},
		jp2.PatchOptions{ResolutionBox: true, XMP: true})
	assert.Empty(t, r.Errs)
	assert.False(t, r.ResolutionInserted)
	assert.True(t, r.XMPAppended)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got[:len(data)])
}

func TestPatchFile_Disabled(t *testing.T) {
	data := jp2test.Container(8, 8, 1, 8)
	path := writeContainer(t, data)

	r := jp2.PatchFile(path, density.Resolution{X: 300, Y: 300, Unit: density.UnitInch}, jp2.PatchOptions{})
	assert.False(t, r.ResolutionInserted)
	assert.False(t, r.XMPAppended)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPatchFile_MissingFileReportsErrors(t *testing.T) {
	r := jp2.PatchFile(filepath.Join(t.TempDir(), "gone.jp2"),
		density.Resolution{X: 300, Y: 300, Unit: density.UnitInch},
		jp2.PatchOptions{ResolutionBox: true, XMP: true})
	assert.Len(t, r.Errs, 2)
	assert.False(t, r.ResolutionInserted)
	assert.False(t, r.XMPAppended)
}

func TestXMPPacket(t *testing.T) {
	x := string(jp2.XMPPacket(density.Resolution{X: 300, Y: 72.5, Unit: density.UnitCentimeter}))
	assert.True(t, strings.HasPrefix(x, `<x:xmpmeta xmlns:x="adobe:ns:meta/">`))
	assert.Contains(t, x, `tiff:XResolution="300000/1000"`)
	assert.Contains(t, x, `tiff:YResolution="72500/1000"`)
	assert.Contains(t, x, `tiff:ResolutionUnit="3"`)

	x = string(jp2.XMPPacket(density.Resolution{X: 72, Y: 72, Unit: density.UnitNone}))
	assert.Contains(t, x, `tiff:ResolutionUnit="1"`)
}

func TestColourSpecICC(t *testing.T) {
	icc := []byte("fake-icc-profile")
	b, err := jp2.ColourSpecICC(icc)
	require.NoError(t, err)
	boxes, err := jp2.Scan(b)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	assert.Equal(t, jp2.TagColorSpec, boxes[0].Tag)
	assert.Equal(t, append([]byte{2, 0, 0}, icc...), boxes[0].Payload)

	_, err = jp2.ColourSpecICC(nil)
	assert.Error(t, err)
}

func TestSetColourSpecFile(t *testing.T) {
	data := jp2test.Container(32, 32, 3, 8)
	path := writeContainer(t, data)
	icc := []byte("not-really-an-icc-profile")
	colr, err := jp2.ColourSpecICC(icc)
	require.NoError(t, err)

	ok, err := jp2.SetColourSpecFile(path, colr)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, len(data)-len(jp2test.Box("colr", []byte{1, 0, 0, 0, 0, 0, 16}))+len(colr))
	boxes := assertLengthsConsistent(t, got)
	hdr, _ := jp2.Find(boxes, jp2.TagHeader)
	children, err := hdr.Children()
	require.NoError(t, err)
	assert.Equal(t, []string{"ihdr", "colr"}, tags(children))
	assert.Equal(t, append([]byte{2, 0, 0}, icc...), children[1].Payload)

	codestream, _ := jp2.Find(boxes, jp2.TagCodestream)
	orig, _ := jp2.Scan(data)
	origCS, _ := jp2.Find(orig, jp2.TagCodestream)
	assert.Equal(t, origCS.Payload, codestream.Payload)
}

func TestSetColourSpec_NoHeader(t *testing.T) {
	data := append(jp2test.Signature(), jp2test.Codestream(4)...)
	colr, err := jp2.ColourSpecICC([]byte{1})
	require.NoError(t, err)
	out, ok, err := jp2.SetColourSpec(data, colr)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, data, out)
}
