package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthew-graves/the-zyndicator/internal/barcode"
	"github.com/matthew-graves/the-zyndicator/internal/recognizer"
	"github.com/matthew-graves/the-zyndicator/internal/roi"
	"github.com/matthew-graves/the-zyndicator/internal/stabilizer"
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotReady is returned by Tick and Run outside the Ready state.
	ErrNotReady = errors.New("session not ready")
	// ErrSessionClosed is returned by Open after Close.
	ErrSessionClosed = errors.New("session closed")
)

// Session owns one scanning run: its recognizer, its stabilizer history and
// the forwarding state. Ticks are serialized.
type Session struct {
	id        string
	cfg       Config
	locator   barcode.Locator
	projector *roi.Projector
	extractor *roi.Extractor
	rec       recognizer.TextRecognizer
	stab      *stabilizer.Stabilizer
	forwarder Forwarder
	observer  func(*FrameResult)
	log       *slog.Logger

	stateMu sync.Mutex
	state   State

	// tickMu is held for the whole of a tick, so Close waits for an
	// in-flight frame before releasing the recognizer.
	tickMu sync.Mutex
	last   lastSent
}

func newSession(
	cfg Config,
	locator barcode.Locator,
	rec recognizer.TextRecognizer,
	fwd Forwarder,
	observer func(*FrameResult),
	logger *slog.Logger,
) *Session {
	id := uuid.NewString()
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        id,
		cfg:       cfg,
		locator:   locator,
		projector: roi.NewProjector(cfg.Projector),
		extractor: roi.NewExtractor(),
		rec:       rec,
		stab:      stabilizer.New(cfg.Stabilizer),
		forwarder: fwd,
		observer:  observer,
		log:       logger.With("session_id", id),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Stabilizer exposes the voting state for display.
func (s *Session) Stabilizer() *stabilizer.Stabilizer { return s.stab }

// Open warms up the recognizer and moves the session to Ready. Opening a
// ready session is a no-op.
func (s *Session) Open(ctx context.Context) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateShuttingDown, StateClosed:
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.WarmupIterations > 0 {
		start := time.Now()
		if err := s.rec.Warmup(s.cfg.WarmupIterations); err != nil {
			return fmt.Errorf("recognizer warmup: %w", err)
		}
		s.log.Debug("Recognizer warmed up", "iterations", s.cfg.WarmupIterations, "duration", time.Since(start))
	}
	s.state = StateReady
	s.log.Info("Session ready", "forward", string(s.cfg.Forward), "binarize", s.cfg.Binarize)
	return nil
}

// Reset clears the voting history and forwarding memory, as when a new
// scanning run starts on the same session.
func (s *Session) Reset() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.stab.Reset()
	s.last = lastSent{}
}

// Tick processes one frame. Frame-level failures (no symbol, degenerate
// geometry, recognition errors) are reported in the result's Outcome and
// never returned as errors. A tick that returns an error reports no result
// to the observer or the frame metrics.
func (s *Session) Tick(ctx context.Context, f Frame) (out *FrameResult, err error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.State() != StateReady {
		return nil, ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	res := &FrameResult{Index: f.Index, Name: f.Name}
	defer func() {
		if err != nil {
			return
		}
		res.Duration = time.Since(start)
		framesTotal.WithLabelValues(string(res.Outcome)).Inc()
		if s.observer != nil {
			s.observer(res)
		}
	}()

	quad, ok, err := s.locator.Locate(ctx, f.Image)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("QR locate failed", "frame", f.Index, "error", err)
		res.Outcome = OutcomeLocateError
		return res, nil
	}
	if !ok {
		res.Outcome = OutcomeNoQR
		return res, nil
	}
	res.Quad = &quad

	rect, err := s.projector.Project(quad)
	if err != nil {
		s.log.Debug("Skipping frame", "frame", f.Index, "reason", err)
		res.Outcome = OutcomeDegenerate
		return res, nil
	}
	res.ROI = &rect

	patch, err := s.extractor.Extract(f.Image, rect)
	if err != nil {
		s.log.Debug("Skipping frame", "frame", f.Index, "reason", err)
		res.Outcome = OutcomeEmptyPatch
		return res, nil
	}
	if s.cfg.Binarize {
		patch = recognizer.Binarize(patch)
	}

	recStart := time.Now()
	text, err := s.rec.Recognize(ctx, patch)
	recognitionDuration.Observe(time.Since(recStart).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Error("OCR error", "frame", f.Index, "error", err)
		res.Outcome = OutcomeOCRError
		return res, nil
	}

	text = recognizer.PostProcessText(text, recognizer.DefaultCleanOptions())
	res.Outcome = OutcomeRecognized
	res.Text = text
	res.Update = s.stab.Observe(text)
	if res.Update.HasStabilized {
		res.Stable = res.Update.Stabilized
		s.log.Info("Stabilized code", "code", res.Stable, "history", s.stab.Len())
	}
	if res.Update.HasCandidate {
		res.Candidate = res.Update.Candidate
		s.log.Debug("Candidate code", "code", res.Candidate)
	}

	s.forward(ctx, res)

	if s.cfg.OverlayDir != "" {
		path, err := SaveOverlay(s.cfg.OverlayDir, f.Image, res)
		if err != nil {
			s.log.Warn("Overlay failed", "frame", f.Index, "error", err)
		} else {
			res.Overlay = path
		}
	}
	return res, nil
}

// Run ticks over src until it is exhausted or ctx is done. One frame is
// fully processed before the next is requested. Unreadable frames are
// logged and skipped; any other source error ends the run.
func (s *Session) Run(ctx context.Context, src FrameSource) (summary RunSummary, err error) {
	summary = RunSummary{SessionID: s.id}
	start := time.Now()
	defer func() { summary.Duration = time.Since(start) }()

	if s.State() != StateReady {
		return summary, ErrNotReady
	}

	var pace <-chan time.Time
	if s.cfg.FPS > 0 {
		ticker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.FPS))
		defer ticker.Stop()
		pace = ticker.C
	}

	for {
		f, err := src.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
			return summary, nil
		case isFrameError(err):
			s.log.Warn("Skipping unreadable frame", "error", err)
			continue
		case err != nil:
			return summary, err
		}

		res, err := s.Tick(ctx, f)
		if err != nil {
			return summary, err
		}
		summary.add(res)

		if pace != nil {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-pace:
			}
		}
	}
}

// Close waits for an in-flight tick and releases the recognizer. It is safe
// to call more than once; only the first call closes anything.
func (s *Session) Close() error {
	s.stateMu.Lock()
	if s.state == StateShuttingDown || s.state == StateClosed {
		s.stateMu.Unlock()
		return nil
	}
	s.state = StateShuttingDown
	s.stateMu.Unlock()

	s.tickMu.Lock()
	err := s.rec.Close()
	s.tickMu.Unlock()

	s.stateMu.Lock()
	s.state = StateClosed
	s.stateMu.Unlock()

	s.log.Info("Session closed")
	if err != nil {
		return fmt.Errorf("close recognizer: %w", err)
	}
	return nil
}
