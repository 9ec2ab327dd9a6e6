package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/AnyUserName/tiff2jp2/internal/jp2"
	"github.com/AnyUserName/tiff2jp2/internal/params"
	"github.com/samber/lo"
)

// DefaultOpenJPEGBinary is looked up in PATH when OpenJPEG.Binary is empty.
const DefaultOpenJPEGBinary = "opj_compress"

// OpenJPEG compresses by shelling out to opj_compress. Planes are written
// to a little-endian raw file in a per-session temp dir.
// Install: apt install libopenjp2-tools / brew install openjpeg
type OpenJPEG struct {
	Binary string

	once      sync.Once
	available bool
	path      string
}

func (e *OpenJPEG) Name() string { return "openjpeg" }

func (e *OpenJPEG) Available() bool {
	e.once.Do(func() {
		bin := e.Binary
		if bin == "" {
			bin = DefaultOpenJPEGBinary
		}
		path, err := exec.LookPath(bin)
		if err == nil {
			e.available = true
			e.path = path
		}
	})
	return e.available
}

func (e *OpenJPEG) Setup(cfg params.Config, img ImageDesc, opts Options) (Session, error) {
	if !e.Available() {
		return nil, fmt.Errorf("%w: opj_compress not found; install with: apt install libopenjp2-tools", ErrUnavailable)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "tiff2jp2_*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &opjSession{bin: e.path, cfg: cfg, img: img, opts: opts, dir: dir}, nil
}

type sessionState int

const (
	stateSetup sessionState = iota
	stateStarted
	stateEncoded
	stateFinished
	stateClosed
)

type opjSession struct {
	bin  string
	cfg  params.Config
	img  ImageDesc
	opts Options
	dir  string

	ctx   context.Context
	out   string
	raw   *os.File
	state sessionState
}

func (s *opjSession) rawPath() string { return filepath.Join(s.dir, "planes.rawl") }

func (s *opjSession) expect(st sessionState) error {
	if s.state != st {
		return fmt.Errorf("%w: in state %d, want %d", ErrState, s.state, st)
	}
	return nil
}

func (s *opjSession) Start(ctx context.Context, outPath string) error {
	if err := s.expect(stateSetup); err != nil {
		return err
	}
	f, err := os.Create(s.rawPath())
	if err != nil {
		return err
	}
	s.ctx, s.out, s.raw = ctx, outPath, f
	s.state = stateStarted
	return nil
}

func (s *opjSession) Encode(planes [][]int32) error {
	if err := s.expect(stateStarted); err != nil {
		return err
	}
	if err := checkPlanes(s.img, planes); err != nil {
		return err
	}
	w := bufio.NewWriterSize(s.raw, 1<<20)
	if err := WriteRawPlanes(w, planes, s.img.BitDepth); err != nil {
		return fmt.Errorf("write raw planes: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write raw planes: %w", err)
	}
	err := s.raw.Close()
	s.raw = nil
	if err != nil {
		return err
	}
	s.state = stateEncoded
	return nil
}

func (s *opjSession) Finish() error {
	if err := s.expect(stateEncoded); err != nil {
		return err
	}
	args := CompressArgs(s.cfg, s.img, s.opts, s.rawPath(), s.out)
	out, err := exec.CommandContext(s.ctx, s.bin, args...).CombinedOutput()
	if err != nil {
		os.Remove(s.out)
		return fmt.Errorf("opj_compress: %w: %s", err, bytes.TrimSpace(out))
	}
	if len(s.img.ICC) > 0 {
		if err := attachICC(s.out, s.img.ICC); err != nil {
			os.Remove(s.out)
			return err
		}
	}
	s.state = stateFinished
	return nil
}

func (s *opjSession) Close() error {
	if s.state == stateClosed {
		return nil
	}
	s.state = stateClosed
	if s.raw != nil {
		s.raw.Close()
		s.raw = nil
	}
	return os.RemoveAll(s.dir)
}

func attachICC(path string, icc []byte) error {
	colr, err := jp2.ColourSpecICC(icc)
	if err != nil {
		return fmt.Errorf("attach ICC: %w", err)
	}
	ok, err := jp2.SetColourSpecFile(path, colr)
	if err != nil {
		return fmt.Errorf("attach ICC: %w", err)
	}
	if !ok {
		return fmt.Errorf("attach ICC: %s has no patchable jp2h box", path)
	}
	return nil
}

// CompressArgs renders cfg as opj_compress arguments.
func CompressArgs(cfg params.Config, img ImageDesc, opts Options, rawPath, outPath string) []string {
	sign := lo.Ternary(img.Signed, "s", "u")
	threads := opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	args := []string{
		"-i", rawPath,
		"-F", fmt.Sprintf("%d,%d,%d,%d,%s", img.Width, img.Height, img.Components, img.BitDepth, sign),
		"-o", outPath,
		"-n", strconv.Itoa(cfg.Resolutions),
		"-b", fmt.Sprintf("%d,%d", cfg.Block.W, cfg.Block.H),
		"-t", fmt.Sprintf("%d,%d", cfg.Tile.W, cfg.Tile.H),
		"-T", fmt.Sprintf("%d,%d", cfg.TileOrigin.W, cfg.TileOrigin.H),
		"-p", string(cfg.Progression),
	}
	if cfg.Style.Has(params.StylePrecincts) && len(cfg.Precincts) > 0 {
		sizes := lo.Map(cfg.Precincts, func(p params.Size, _ int) string {
			return fmt.Sprintf("[%d,%d]", p.W, p.H)
		})
		args = append(args, "-c", strings.Join(sizes, ","))
	}
	if cfg.Style.Has(params.StyleSOP) {
		args = append(args, "-SOP")
	}
	if cfg.Style.Has(params.StyleEPH) {
		args = append(args, "-EPH")
	}
	if cfg.TilePartFlag != 0 {
		args = append(args, "-TP", string(rune(cfg.TilePartFlag)))
	}
	if cfg.Irreversible {
		args = append(args, "-I")
	}

	// opj_compress expresses lossless as a compression ratio of 1 per layer.
	rates := lo.Map(cfg.Rates, func(r float64, _ int) string {
		if r <= 0 {
			return "1"
		}
		return strconv.FormatFloat(r, 'g', -1, 64)
	})
	return append(args,
		"-mct", strconv.Itoa(cfg.MCT),
		"-r", strings.Join(rates, ","),
		"-threads", strconv.Itoa(threads),
	)
}

// WriteRawPlanes writes planes one after another as unsigned little-endian
// samples: one byte each up to 8 bits, two bytes above.
func WriteRawPlanes(w io.Writer, planes [][]int32, bitDepth int) error {
	const chunk = 1 << 15
	buf := make([]byte, 0, 2*chunk)
	for _, p := range planes {
		for start := 0; start < len(p); start += chunk {
			buf = buf[:0]
			for _, v := range p[start:min(start+chunk, len(p))] {
				if bitDepth <= 8 {
					buf = append(buf, byte(v))
				} else {
					buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
				}
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	return nil
}
