package cmd

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/AnyUserName/tiff2jp2/internal/engine"
	"github.com/AnyUserName/tiff2jp2/internal/jp2"
	"github.com/AnyUserName/tiff2jp2/internal/jp2/jp2test"
	"github.com/AnyUserName/tiff2jp2/internal/manifest"
	"github.com/AnyUserName/tiff2jp2/internal/params"
	"github.com/AnyUserName/tiff2jp2/internal/tiffsrc/tifftest"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the command tree with args, starting from default flags.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	return out.String(), err
}

func resetFlags() {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	rootCmd.Flags().VisitAll(reset)
	rootCmd.PersistentFlags().VisitAll(reset)
	for _, t := range []*toggle{&togPrecincts, &togSOP, &togEPH, &togTPR, &togMCT, &togDPIBox, &togXMP, &togSIMD} {
		t.on, t.off = false, false
	}
}

func TestToggleResolve(t *testing.T) {
	tg := toggle{}
	assert.True(t, tg.resolve(true))
	assert.False(t, tg.resolve(false))
	tg.on = true
	assert.True(t, tg.resolve(false))
	tg = toggle{off: true}
	assert.False(t, tg.resolve(true))
}

func TestResolveProfile_FlagsOverride(t *testing.T) {
	t.Cleanup(resetFlags)
	require.NoError(t, rootCmd.ParseFlags([]string{
		"--profile", "basic", "--levels", "auto", "--sop", "--no-mct", "--no-xmp-dpi",
	}))

	prof, err := resolveProfile(rootCmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, "basic", prof.Name)
	assert.Equal(t, "4096x4096", prof.Tile)
	assert.Equal(t, "auto", prof.Levels)
	assert.Equal(t, params.Toggles{SOP: true}, prof.Toggles)
	assert.True(t, prof.ResBox)
	assert.False(t, prof.XMP)
}

func TestConvert_MutuallyExclusiveToggles(t *testing.T) {
	_, err := execute(t, "in.tif", "--sop", "--no-sop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sop")
}

func TestConvert_UnknownProfile(t *testing.T) {
	_, err := execute(t, "in.tif", "--profile", "nope")
	assert.ErrorContains(t, err, `unknown profile "nope"`)
}

func TestConvert_BadDensity(t *testing.T) {
	_, err := execute(t, "in.tif", "--dpi", "300", "--dpi-unit", "furlong")
	assert.ErrorContains(t, err, "furlong")
}

func TestConvert_EngineUnavailable(t *testing.T) {
	_, err := execute(t, "in.tif", "--opj-path", filepath.Join(t.TempDir(), "no-such-opj"))
	assert.ErrorIs(t, err, engine.ErrUnavailable)
}

// standInCompressor is an opj_compress replacement that copies a fixture
// container to its -o argument.
func standInCompressor(t *testing.T, w, h, comps int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	dir := t.TempDir()
	fix := filepath.Join(dir, "fixture.jp2")
	require.NoError(t, os.WriteFile(fix, jp2test.Container(w, h, comps, 8), 0o644))
	script := "#!/bin/sh\n" +
		"while [ $# -gt 0 ]; do\n" +
		"  if [ \"$1\" = \"-o\" ]; then cp '" + fix + "' \"$2\"; fi\n" +
		"  shift\n" +
		"done\n"
	bin := filepath.Join(dir, "opj_compress")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin
}

func TestConvert_EndToEnd(t *testing.T) {
	bin := standInCompressor(t, 4, 4, 3)
	dir := t.TempDir()
	le := binary.LittleEndian
	in := filepath.Join(dir, "scans", "page.tif")
	require.NoError(t, os.MkdirAll(filepath.Dir(in), 0o755))
	require.NoError(t, os.WriteFile(in, tifftest.Build(le, 4, 4, 3, 8, 2, make([]byte, 48), tifftest.Density(le, 300, 300, 2)...), 0o644))
	outDir := filepath.Join(dir, "out")
	manifestPath := filepath.Join(outDir, DefaultManifestName)

	out, err := execute(t, filepath.Join(dir, "scans"), "-o", outDir, "--opj-path", bin, "--manifest", manifestPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✔ ")
	assert.Contains(t, out, "All files processed successfully!")

	boxes, err := jp2.ReadFile(filepath.Join(outDir, "page.jp2"))
	require.NoError(t, err)
	_, ok := jp2.Find(boxes, jp2.TagUUID)
	assert.True(t, ok)

	m, err := manifest.ReadJSON(manifestPath)
	require.NoError(t, err)
	require.Len(t, m.Images, 1)
	assert.Equal(t, manifest.StatusConverted, m.Images[0].Status)
	assert.Equal(t, "openjpeg", m.Engine)
	assert.True(t, m.Images[0].ResBox)

	// Second run without --force skips.
	out, err = execute(t, filepath.Join(dir, "scans"), "-o", outDir, "--opj-path", bin)
	require.NoError(t, err)
	assert.Contains(t, out, "Skipping (exists)")

	// stats reads the manifest from the directory.
	out, err = execute(t, "stats", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Converted:        1")
	assert.Contains(t, out, "rgb8")

	// inspect shows the res box densities.
	out, err = execute(t, "inspect", filepath.Join(outDir, "page.jp2"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "res ")
	assert.Contains(t, out, "XMP")
	assert.Contains(t, out, "✓ structure is valid")
}

func TestConvert_FailedImagesDoNotFailBatch(t *testing.T) {
	bin := standInCompressor(t, 1, 1, 3)
	dir := t.TempDir()
	le := binary.LittleEndian
	in := filepath.Join(dir, "alpha.tif")
	require.NoError(t, os.WriteFile(in, tifftest.Build(le, 1, 1, 4, 8, 2, []byte{1, 2, 3, 4},
		tifftest.Shorts(le, tifftest.ExtraSamples, 2)), 0o644))
	manifestPath := filepath.Join(dir, "m.json")

	out, err := execute(t, dir, "--opj-path", bin, "--manifest", manifestPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✖ "+in+" — Error: TIFF has alpha channel")
	assert.Contains(t, out, "Failed:      1")
	assert.NotContains(t, out, "All files processed successfully!")

	m, err := manifest.ReadJSON(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Stats.Failed)
}

func TestExecute_ClosesLogFileOnError(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "run.log")
	_, err := execute(t, "in.tif", "--log-file", logPath, "--profile", "nope")
	require.Error(t, err)
	assert.Nil(t, logSink)
}

func TestInspect_ReportsProblems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jp2")
	require.NoError(t, os.WriteFile(path, append(jp2test.Signature(), jp2test.Codestream(8)...), 0o644))

	out, err := execute(t, "inspect", path)
	require.Error(t, err)
	assert.Contains(t, out, "missing jp2h header box")
}

func TestValidateContainer(t *testing.T) {
	good, err := jp2.Scan(jp2test.Container(2, 2, 1, 8))
	require.NoError(t, err)
	assert.Empty(t, validateContainer(good))

	noCodestream, err := jp2.Scan(append(jp2test.Signature(), jp2test.Header(2, 2, 1, 8)...))
	require.NoError(t, err)
	assert.Equal(t, []string{"missing jp2c codestream box"}, validateContainer(noCodestream))
}

func TestStats_Failures(t *testing.T) {
	m := manifest.New("archival", "openjpeg")
	m.Add(manifest.Image{Input: "a.tif", Status: manifest.StatusFailed, Error: "CMYK 8-bit is not supported (convert to RGB/Gray)."})
	path := filepath.Join(t.TempDir(), "m.json")
	require.NoError(t, manifest.WriteJSON(m, path))

	out, err := execute(t, "stats", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Failures (1):")
	assert.Contains(t, out, "✖ a.tif — CMYK 8-bit is not supported")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
	assert.Equal(t, "3.00 GB", formatBytes(3<<30))
}
