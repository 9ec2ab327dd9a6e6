package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/AnyUserName/tiff2jp2/internal/density"
	"github.com/AnyUserName/tiff2jp2/internal/engine"
	"github.com/AnyUserName/tiff2jp2/internal/hasher"
	"github.com/AnyUserName/tiff2jp2/internal/jp2"
	"github.com/AnyUserName/tiff2jp2/internal/manifest"
	"github.com/AnyUserName/tiff2jp2/internal/params"
	"github.com/AnyUserName/tiff2jp2/internal/planar"
	"github.com/AnyUserName/tiff2jp2/internal/tiffsrc"
)

// PanicError is a recovered panic from one conversion.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	if e.Value == nil {
		return "panic during conversion: <unknown reason>"
	}
	return fmt.Sprintf("panic during conversion: %v", e.Value)
}

// processImage converts one TIFF, turning a panic into a *PanicError.
func (p *Pipeline) processImage(ctx context.Context, src Source, out string) (entry manifest.Image, err error) {
	entry = manifest.Image{Input: src.Path, Output: out, InputSize: src.Size}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	err = p.convert(ctx, src, out, &entry)
	return entry, err
}

// convert is decode, resolve metadata, build params, planarize, encode,
// then patch the container. entry is filled as facts become known.
func (p *Pipeline) convert(ctx context.Context, src Source, out string, entry *manifest.Image) error {
	log := p.log

	log.DebugContext(ctx, "decoding TIFF")
	img, err := tiffsrc.Decode(src.Path)
	if err != nil {
		return err
	}
	if img.MetaErr != nil {
		log.WarnContext(ctx, "TIFF tags unreadable, converting without metadata", "error", img.MetaErr)
	}
	pix := img.Pixels
	entry.Width, entry.Height, entry.Layout = pix.Width, pix.Height, img.Layout()
	log.DebugContext(ctx, "decoded", "width", pix.Width, "height", pix.Height, "layout", entry.Layout)

	res := p.cfg.Density
	if res == nil {
		res = img.Resolution()
	}

	cfg, err := params.Build(params.Request{
		Tile:       p.cfg.Tile,
		Block:      p.cfg.Block,
		Levels:     p.cfg.Levels,
		Width:      pix.Width,
		Height:     pix.Height,
		Components: pix.Channels,
		Toggles:    p.cfg.Toggles,
	})
	if err != nil {
		return err
	}
	entry.Levels = cfg.Resolutions
	log.DebugContext(ctx, "encoder parameters",
		"tile", cfg.Tile.String(), "block", cfg.Block.String(),
		"levels", cfg.Resolutions, "precincts", len(cfg.Precincts), "mct", cfg.MCT)

	planes, err := planar.Planarize(pix, planar.Options{Vector: p.cfg.Vector, Workers: p.cfg.Workers})
	if err != nil {
		return err
	}

	desc := engine.ImageDesc{
		Width:      pix.Width,
		Height:     pix.Height,
		Components: pix.Channels,
		BitDepth:   pix.BitDepth,
		ColorSpace: engine.ColorGray,
		ICC:        p.cfg.ICC,
	}
	if pix.Channels == 3 {
		desc.ColorSpace = engine.ColorSRGB
	}
	if desc.ICC == nil {
		desc.ICC = img.ICC()
	}
	entry.ICC = len(desc.ICC) > 0

	log.DebugContext(ctx, "compressing", "engine", p.cfg.Engine.Name())
	if err := engine.Run(ctx, p.cfg.Engine, cfg, desc, engine.Options{Threads: p.cfg.Threads}, planes.Planes, out); err != nil {
		return err
	}

	if res != nil {
		p.patch(ctx, out, *res, entry)
	}

	sum, size, err := hasher.FileHash(out)
	if err != nil {
		return fmt.Errorf("hash output: %w", err)
	}
	entry.Hash, entry.OutputSize = sum, size
	return nil
}

// patch writes the density boxes. Failures are logged and swallowed: the
// compressed file is already complete.
func (p *Pipeline) patch(ctx context.Context, out string, res density.Resolution, entry *manifest.Image) {
	entry.Resolution = &manifest.Resolution{X: res.X, Y: res.Y, Unit: res.Unit.String()}
	if !p.cfg.ResBox && !p.cfg.XMP {
		return
	}
	r := jp2.PatchFile(out, res, jp2.PatchOptions{ResolutionBox: p.cfg.ResBox, XMP: p.cfg.XMP})
	entry.ResBox, entry.XMP = r.ResolutionInserted, r.XMPAppended
	for _, err := range r.Errs {
		p.log.WarnContext(ctx, "metadata box not written", "error", err)
	}
	if p.cfg.ResBox && !r.ResolutionInserted && len(r.Errs) == 0 {
		p.log.WarnContext(ctx, "container has no patchable jp2h box, res box skipped")
	}
	p.log.DebugContext(ctx, "metadata boxes", "res", entry.ResBox, "xmp", entry.XMP, "density", res.String())
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
