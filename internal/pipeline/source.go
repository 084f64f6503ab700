package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/matthew-graves/the-zyndicator/internal/utils"
)

// Frame is one captured image.
type Frame struct {
	Index int
	Name  string
	Image image.Image
	Time  time.Time
}

// FrameSource yields frames until io.EOF.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// FrameError reports a single frame that could not be read. Run skips it
// and keeps going.
type FrameError struct {
	Index int
	Name  string
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// SliceSource replays in-memory images.
type SliceSource struct {
	mu     sync.Mutex
	images []image.Image
	next   int
}

// NewSliceSource creates a source over images.
func NewSliceSource(images ...image.Image) *SliceSource {
	return &SliceSource{images: images}
}

// Next implements FrameSource.
func (s *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.images) {
		return Frame{}, io.EOF
	}
	f := Frame{
		Index: s.next,
		Name:  fmt.Sprintf("frame-%04d", s.next),
		Image: s.images[s.next],
		Time:  time.Now(),
	}
	s.next++
	return f, nil
}

// Close implements FrameSource.
func (s *SliceSource) Close() error { return nil }

// FileSource decodes image files in order.
type FileSource struct {
	mu    sync.Mutex
	paths []string
	next  int
}

// NewFileSource creates a source over explicit image paths.
func NewFileSource(paths []string) *FileSource {
	return &FileSource{paths: paths}
}

// OpenSource opens path as a frame source. A directory yields its supported
// images in lexical order; a file yields itself. A missing path or a
// directory without images is an error.
func OpenSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open frame source: %w", err)
	}
	if !info.IsDir() {
		if !utils.IsSupportedImage(path) {
			return nil, fmt.Errorf("open frame source: unsupported image %s", path)
		}
		return NewFileSource([]string{path}), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("open frame source: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(path, e.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("open frame source: no images in %s", path)
	}
	sort.Strings(paths)
	return NewFileSource(paths), nil
}

// Len returns the number of frames.
func (s *FileSource) Len() int { return len(s.paths) }

// Next implements FrameSource.
func (s *FileSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.paths) {
		return Frame{}, io.EOF
	}
	idx, path := s.next, s.paths[s.next]
	s.next++

	img, _, err := utils.LoadImage(path)
	if err != nil {
		return Frame{}, &FrameError{Index: idx, Name: filepath.Base(path), Err: err}
	}
	return Frame{Index: idx, Name: filepath.Base(path), Image: img, Time: time.Now()}, nil
}

// Close implements FrameSource.
func (s *FileSource) Close() error { return nil }

// isFrameError reports whether err only affects a single frame.
func isFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}
