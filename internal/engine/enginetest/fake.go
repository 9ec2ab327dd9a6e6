// Package enginetest provides an in-memory engine that writes a synthetic
// JP2 container, for tests that must not depend on opj_compress.
package enginetest

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/AnyUserName/tiff2jp2/internal/engine"
	"github.com/AnyUserName/tiff2jp2/internal/jp2/jp2test"
	"github.com/AnyUserName/tiff2jp2/internal/params"
)

// Step names accepted by Fake.FailAt and Fake.PanicAt.
const (
	StepSetup  = "setup"
	StepStart  = "start"
	StepEncode = "encode"
	StepFinish = "finish"
)

var ErrInjected = errors.New("injected failure")

// Fake records what it was asked to encode.
type Fake struct {
	FailAt  string
	PanicAt string

	mu      sync.Mutex
	setups  int
	closes  int
	configs []params.Config
	images  []engine.ImageDesc
	planes  [][][]int32
}

func (f *Fake) Name() string    { return "fake" }
func (f *Fake) Available() bool { return true }

func (f *Fake) step(name string) error {
	if f.PanicAt == name {
		panic("fake engine: " + name)
	}
	if f.FailAt == name {
		return ErrInjected
	}
	return nil
}

func (f *Fake) Setup(cfg params.Config, img engine.ImageDesc, _ engine.Options) (engine.Session, error) {
	if err := f.step(StepSetup); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.setups++
	f.configs = append(f.configs, cfg)
	f.images = append(f.images, img)
	f.mu.Unlock()
	return &session{f: f, img: img}, nil
}

// Setups is the number of successful Setup calls.
func (f *Fake) Setups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setups
}

// Closes is the number of sessions closed.
func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// Configs returns every config passed to Setup.
func (f *Fake) Configs() []params.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]params.Config(nil), f.configs...)
}

// Images returns every image description passed to Setup.
func (f *Fake) Images() []engine.ImageDesc {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.ImageDesc(nil), f.images...)
}

// Planes returns the planes of every Encode call.
func (f *Fake) Planes() [][][]int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][][]int32(nil), f.planes...)
}

type session struct {
	f      *Fake
	img    engine.ImageDesc
	out    string
	closed bool
}

func (s *session) Start(_ context.Context, outPath string) error {
	if err := s.f.step(StepStart); err != nil {
		return err
	}
	s.out = outPath
	return nil
}

func (s *session) Encode(planes [][]int32) error {
	if err := s.f.step(StepEncode); err != nil {
		return err
	}
	s.f.mu.Lock()
	s.f.planes = append(s.f.planes, planes)
	s.f.mu.Unlock()
	return nil
}

func (s *session) Finish() error {
	if err := s.f.step(StepFinish); err != nil {
		return err
	}
	data := jp2test.Container(s.img.Width, s.img.Height, s.img.Components, s.img.BitDepth)
	return os.WriteFile(s.out, data, 0o644)
}

func (s *session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.f.mu.Lock()
	s.f.closes++
	s.f.mu.Unlock()
	return nil
}
