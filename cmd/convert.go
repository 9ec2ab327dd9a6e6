package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnyUserName/tiff2jp2/internal/density"
	"github.com/AnyUserName/tiff2jp2/internal/engine"
	"github.com/AnyUserName/tiff2jp2/internal/manifest"
	"github.com/AnyUserName/tiff2jp2/internal/pipeline"
	"github.com/AnyUserName/tiff2jp2/internal/planar"
	"github.com/AnyUserName/tiff2jp2/internal/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	convOutput    string
	convRecursive bool
	convForce     bool
	convProfile   string
	convTile      string
	convBlock     string
	convLevels    string
	convThreads   int
	convWorkers   int
	convICC       string
	convDPI       string
	convDPIUnit   string
	convEngine    string
	convOPJPath   string
	convManifest  string

	togPrecincts = toggle{name: "precincts", usage: "precincts 256x256 ... 128x128"}
	togSOP       = toggle{name: "sop", usage: "SOP (start of packet) markers"}
	togEPH       = toggle{name: "eph", usage: "EPH (end of packet header) markers"}
	togTPR       = toggle{name: "tp-r", usage: "tile-parts split by resolution"}
	togMCT       = toggle{name: "mct", usage: "reversible colour transform for RGB"}
	togDPIBox    = toggle{name: "dpi-box", usage: `density in the JP2 "res " box`}
	togXMP       = toggle{name: "xmp-dpi", usage: "density in an XMP uuid box"}
	togSIMD      = toggle{name: "simd", usage: "vector planarizer when the CPU supports it (default off)"}
)

// toggle is a --name/--no-name flag pair. Neither set keeps the default.
type toggle struct {
	name  string
	usage string
	on    bool
	off   bool
}

func (t *toggle) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVar(&t.on, t.name, false, "enable "+t.usage)
	fs.BoolVar(&t.off, "no-"+t.name, false, "disable "+t.usage)
	cmd.MarkFlagsMutuallyExclusive(t.name, "no-"+t.name)
}

func (t *toggle) resolve(def bool) bool {
	switch {
	case t.on:
		return true
	case t.off:
		return false
	}
	return def
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&convOutput, "output", "o", "", "output file or directory (mirrors input subdirectories)")
	f.BoolVar(&convRecursive, "recursive", false, "recursively traverse the input directory")
	f.BoolVar(&convForce, "force", false, "overwrite existing output files")
	f.StringVarP(&convProfile, "profile", "p", profile.Default, "encoding preset ("+strings.Join(profile.Names(), ", ")+")")
	f.StringVar(&convTile, "tile", "", "tile size WxH (default from profile)")
	f.StringVar(&convBlock, "block", "", "code-block size WxH, powers of two in 4..1024 (default from profile)")
	f.StringVar(&convLevels, "levels", "", "number of resolutions, or auto (default from profile)")
	f.IntVar(&convThreads, "threads", 0, "encoder threads (0 = all cores)")
	f.IntVarP(&convWorkers, "workers", "w", 0, "planarizer row workers (0 = NumCPU)")
	f.StringVar(&convICC, "icc", "", "ICC profile file (overrides the profile embedded in the TIFF)")
	f.StringVar(&convDPI, "dpi", "", "density override, e.g. 300 or 300x600")
	f.StringVar(&convDPIUnit, "dpi-unit", "inch", "unit of --dpi (inch, cm, none)")
	f.StringVar(&convEngine, "engine", "", "compression engine (default: first available)")
	f.StringVar(&convOPJPath, "opj-path", engine.DefaultOpenJPEGBinary, "opj_compress binary")
	f.StringVar(&convManifest, "manifest", "", "write a JSON conversion report to this path")

	for _, t := range []*toggle{&togPrecincts, &togSOP, &togEPH, &togTPR, &togMCT, &togDPIBox, &togXMP, &togSIMD} {
		t.register(rootCmd)
	}
}

// resolveProfile applies explicitly set flags over the named profile.
func resolveProfile(fs *pflag.FlagSet) (profile.Profile, error) {
	prof, ok := profile.Get(convProfile)
	if !ok {
		return prof, fmt.Errorf("unknown profile %q (available: %s)", convProfile, strings.Join(profile.Names(), ", "))
	}
	if fs.Changed("tile") {
		prof.Tile = convTile
	}
	if fs.Changed("block") {
		prof.Block = convBlock
	}
	if fs.Changed("levels") {
		prof.Levels = convLevels
	}
	t := &prof.Toggles
	t.Precincts = togPrecincts.resolve(t.Precincts)
	t.SOP = togSOP.resolve(t.SOP)
	t.EPH = togEPH.resolve(t.EPH)
	t.TilePartsByResolution = togTPR.resolve(t.TilePartsByResolution)
	t.MCT = togMCT.resolve(t.MCT)
	prof.ResBox = togDPIBox.resolve(prof.ResBox)
	prof.XMP = togXMP.resolve(prof.XMP)
	return prof, nil
}

func resolveDensity() (*density.Resolution, error) {
	if convDPI == "" {
		return nil, nil
	}
	unit, err := density.ParseUnit(convDPIUnit)
	if err != nil {
		return nil, err
	}
	return density.Parse(convDPI, unit)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	prof, err := resolveProfile(cmd.Flags())
	if err != nil {
		return err
	}
	res, err := resolveDensity()
	if err != nil {
		return err
	}
	var icc []byte
	if convICC != "" {
		if icc, err = os.ReadFile(convICC); err != nil {
			return fmt.Errorf("read ICC profile: %w", err)
		}
	}

	registry := engine.NewRegistry(&engine.OpenJPEG{Binary: convOPJPath})
	eng, err := registry.Resolve(convEngine)
	if err != nil {
		return err
	}

	logVerbose("input:   %s", args[0])
	logVerbose("output:  %s", convOutput)
	logVerbose("profile: %s (tile=%s block=%s levels=%s)", prof.Name, prof.Tile, prof.Block, prof.Levels)
	logVerbose("engines: %s (using %s), vector: %s", strings.Join(registry.Available(), ", "), eng.Name(), planar.VectorName())

	p := pipeline.New(pipeline.Config{
		Input:     args[0],
		Output:    convOutput,
		Recursive: convRecursive,
		Force:     convForce,
		Profile:   prof.Name,
		Tile:      prof.Tile,
		Block:     prof.Block,
		Levels:    prof.Levels,
		Toggles:   prof.Toggles,
		ResBox:    prof.ResBox,
		XMP:       prof.XMP,
		Density:   res,
		ICC:       icc,
		Vector:    togSIMD.resolve(false),
		Workers:   convWorkers,
		Threads:   convThreads,
		Engine:    eng,
		Report:    cmd.ErrOrStderr(),
	})

	m, runErr := p.Run(ctx)
	if m != nil && convManifest != "" {
		if dir := filepath.Dir(convManifest); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create manifest dir: %w", err)
			}
		}
		if err := manifest.WriteJSON(m, convManifest); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
	}
	if m != nil {
		printConvertReport(cmd, m, time.Since(start))
	}
	if runErr != nil {
		if errors.Is(runErr, pipeline.ErrNoInputs) {
			return runErr
		}
		return fmt.Errorf("pipeline: %w", runErr)
	}
	return nil
}

func printConvertReport(cmd *cobra.Command, m *manifest.Manifest, elapsed time.Duration) {
	w := cmd.ErrOrStderr()
	s := m.Stats
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Converted:   %d\n", s.Converted)
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped:     %d (exists, use --force)\n", s.Skipped)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "  Failed:      %d\n", s.Failed)
	}
	fmt.Fprintf(w, "  Input size:  %s\n", formatBytes(s.TotalInputBytes))
	fmt.Fprintf(w, "  Output size: %s\n", formatBytes(s.TotalOutputBytes))
	if s.TotalInputBytes > 0 {
		fmt.Fprintf(w, "  Ratio:       %.1f%% of original\n", float64(s.TotalOutputBytes)/float64(s.TotalInputBytes)*100)
	}
	fmt.Fprintf(w, "  Time:        %s\n", elapsed.Round(time.Millisecond))
	if s.Failed == 0 && s.Converted > 0 {
		fmt.Fprintln(w, "  All files processed successfully!")
	}
	fmt.Fprintln(w)
}

func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.2f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
