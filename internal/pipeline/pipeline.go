// Package pipeline runs the per-frame scanning loop: locate the QR symbol,
// project and extract the code region, recognize its text, stabilize the
// reading across frames and forward finished codes.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/matthew-graves/the-zyndicator/internal/barcode"
	"github.com/matthew-graves/the-zyndicator/internal/recognizer"
	"github.com/matthew-graves/the-zyndicator/internal/roi"
	"github.com/matthew-graves/the-zyndicator/internal/stabilizer"
)

// ForwardMode selects which codes reach the forwarder.
type ForwardMode string

const (
	// ForwardStabilized forwards the majority-vote code.
	ForwardStabilized ForwardMode = "stabilized"
	// ForwardCandidate forwards every sufficiently long raw reading.
	ForwardCandidate ForwardMode = "candidate"
	// ForwardBoth forwards both, stabilized first.
	ForwardBoth ForwardMode = "both"
	// ForwardNone only displays codes.
	ForwardNone ForwardMode = "none"
)

// Config holds configuration for a scanning session.
type Config struct {
	Projector  roi.ProjectorConfig
	Stabilizer stabilizer.Config
	Binarize   bool
	Forward    ForwardMode
	// FPS paces Run; zero processes frames as fast as they arrive.
	FPS float64
	// OverlayDir receives a PNG per recognized frame when set.
	OverlayDir       string
	WarmupIterations int
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		Projector:  roi.DefaultProjectorConfig(),
		Stabilizer: stabilizer.DefaultConfig(),
		Binarize:   true,
		Forward:    ForwardStabilized,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Forward {
	case ForwardStabilized, ForwardCandidate, ForwardBoth, ForwardNone:
	default:
		return fmt.Errorf("unknown forward mode %q", c.Forward)
	}
	if c.FPS < 0 {
		return fmt.Errorf("fps must be non-negative, got %v", c.FPS)
	}
	if c.WarmupIterations < 0 {
		return fmt.Errorf("warmup iterations must be non-negative, got %d", c.WarmupIterations)
	}
	if c.Stabilizer.HistorySize <= 0 {
		return fmt.Errorf("history size must be positive, got %d", c.Stabilizer.HistorySize)
	}
	if c.Projector.AspectRatio <= 0 {
		return fmt.Errorf("aspect ratio must be positive, got %v", c.Projector.AspectRatio)
	}
	return nil
}

// Builder constructs a Session with fluent configuration.
type Builder struct {
	cfg       Config
	locator   barcode.Locator
	rec       recognizer.TextRecognizer
	forwarder Forwarder
	observer  func(*FrameResult)
	logger    *slog.Logger
}

// NewBuilder creates a new session builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithLocator sets the QR locator.
func (b *Builder) WithLocator(l barcode.Locator) *Builder {
	b.locator = l
	return b
}

// WithRecognizer sets the text recognizer. The session owns it and closes
// it on Close.
func (b *Builder) WithRecognizer(r recognizer.TextRecognizer) *Builder {
	b.rec = r
	return b
}

// WithForwarder sets where finished codes are sent.
func (b *Builder) WithForwarder(f Forwarder) *Builder {
	b.forwarder = f
	return b
}

// WithForwardMode selects which codes are forwarded.
func (b *Builder) WithForwardMode(m ForwardMode) *Builder {
	if m != "" {
		b.cfg.Forward = m
	}
	return b
}

// WithObserver registers a callback invoked after every frame.
func (b *Builder) WithObserver(fn func(*FrameResult)) *Builder {
	b.observer = fn
	return b
}

// WithLogger overrides the default logger.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithOverlayDir enables overlay dumps.
func (b *Builder) WithOverlayDir(dir string) *Builder {
	b.cfg.OverlayDir = dir
	return b
}

// WithFPS sets the frame pacing for Run.
func (b *Builder) WithFPS(fps float64) *Builder {
	if fps >= 0 {
		b.cfg.FPS = fps
	}
	return b
}

// WithWarmupIterations sets recognizer warmup runs performed by Open.
func (b *Builder) WithWarmupIterations(n int) *Builder {
	if n >= 0 {
		b.cfg.WarmupIterations = n
	}
	return b
}

// Build validates the configuration and returns an unopened session.
func (b *Builder) Build() (*Session, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	if b.locator == nil {
		return nil, errors.New("locator is required")
	}
	if b.rec == nil {
		return nil, errors.New("recognizer is required")
	}
	return newSession(b.cfg, b.locator, b.rec, b.forwarder, b.observer, b.logger), nil
}
