package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/AnyUserName/tiff2jp2/internal/density"
	"github.com/AnyUserName/tiff2jp2/internal/engine"
	"github.com/AnyUserName/tiff2jp2/internal/logging"
	"github.com/AnyUserName/tiff2jp2/internal/manifest"
	"github.com/AnyUserName/tiff2jp2/internal/params"
	"github.com/AnyUserName/tiff2jp2/internal/planar"
)

var ErrNoInputs = errors.New("no input TIFFs found")

// Config holds all parameters for a conversion run.
type Config struct {
	Input     string // TIFF file or directory
	Output    string // JP2 file or directory; "" = next to each input
	Recursive bool
	Force     bool // overwrite existing outputs

	Profile string // name recorded in the manifest
	Tile    string
	Block   string
	Levels  string
	Toggles params.Toggles
	ResBox  bool
	XMP     bool

	Density *density.Resolution // overrides the TIFF's own density
	ICC     []byte              // overrides the TIFF's embedded profile

	Vector  bool
	Workers int // planarizer row workers; 0 = NumCPU
	Threads int // engine thread hint; 0 = all cores

	Engine engine.Engine
	Logger *slog.Logger
	// Report receives one summary line per image; nil means stderr.
	Report io.Writer
}

// Pipeline converts a batch of TIFFs one at a time.
type Pipeline struct {
	cfg Config
	log *slog.Logger
	out io.Writer
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	p := &Pipeline{cfg: cfg, log: cfg.Logger, out: cfg.Report}
	if p.log == nil {
		p.log = slog.Default()
	}
	if p.out == nil {
		p.out = os.Stderr
	}
	return p
}

// Run converts every input and returns the manifest. A failing image never
// stops the batch and never fails Run: it is reported on its own line and
// in the manifest. Run fails when nothing was found or when ctx is
// cancelled (between images).
func (p *Pipeline) Run(ctx context.Context) (*manifest.Manifest, error) {
	if p.cfg.Engine == nil {
		return nil, fmt.Errorf("%w: no engine configured", engine.ErrUnavailable)
	}

	dirMode := OutputDirMode(p.cfg.Input, p.cfg.Output)
	exclude := ""
	if dirMode {
		exclude = p.cfg.Output
	}

	p.log.DebugContext(ctx, "scanning", "input", p.cfg.Input, "recursive", p.cfg.Recursive)
	sources, err := ScanInputs(p.cfg.Input, p.cfg.Recursive, exclude)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputs, p.cfg.Input)
	}
	p.log.InfoContext(ctx, "found inputs", "count", len(sources), "engine", p.cfg.Engine.Name(),
		"vector", p.cfg.Vector && planar.VectorAvailable())

	if dirMode {
		if err := os.MkdirAll(p.cfg.Output, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	m := manifest.New(p.cfg.Profile, p.cfg.Engine.Name())
	m.BuildInfo = &manifest.BuildInfo{
		Workers: p.cfg.Workers,
		Threads: p.cfg.Threads,
		Vector:  planar.VectorName(),
	}
	if !p.cfg.Vector {
		m.BuildInfo.Vector = "scalar"
	}

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			m.ComputeStats()
			return m, fmt.Errorf("interrupted after %d of %d images: %w", i, len(sources), err)
		}

		out := OutputPath(src, p.cfg.Output, dirMode)
		if dir := filepath.Dir(out); !fileExists(dir) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				m.ComputeStats()
				return m, fmt.Errorf("create output subdirectory: %w", err)
			}
		}

		if fileExists(out) && !p.cfg.Force {
			fmt.Fprintf(p.out, "Skipping (exists): %s\n", out)
			m.Add(manifest.Image{Input: src.Path, Output: out, Status: manifest.StatusSkipped, InputSize: src.Size})
			continue
		}

		fmt.Fprintf(p.out, "(%d/%d) → Processing: %s -> %s\n", i+1, len(sources), src.Path, out)
		ictx := logging.AppendCtx(ctx, slog.String("input", src.Path))
		start := time.Now()
		entry, err := p.processImage(ictx, src, out)
		elapsed := time.Since(start)
		entry.ElapsedMS = elapsed.Milliseconds()

		var perr *PanicError
		switch {
		case err == nil:
			entry.Status = manifest.StatusConverted
			fmt.Fprintf(p.out, "✔ %s → %s (%s)\n", src.Path, out, elapsed.Round(10*time.Microsecond))
		case errors.As(err, &perr):
			entry.Status, entry.Error = manifest.StatusFailed, err.Error()
			fmt.Fprintf(p.out, "✖ %s — Panic during conversion: %v\n", src.Path, perr.Value)
			p.log.ErrorContext(ictx, "conversion panicked", "panic", perr.Value)
		default:
			entry.Status, entry.Error = manifest.StatusFailed, err.Error()
			fmt.Fprintf(p.out, "✖ %s — Error: %v\n", src.Path, err)
			p.log.DebugContext(ictx, "conversion failed", "error", err)
		}
		m.Add(entry)
	}

	m.ComputeStats()
	return m, nil
}
