package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore is an append-only newline-delimited code file with an
// in-memory index. All operations are serialized.
type FileStore struct {
	mu     sync.Mutex
	path   string
	fsync  bool
	f      *os.File
	set    map[string]struct{}
	order  []string
	closed bool
	// needsBreak is set when the existing file does not end in a newline.
	needsBreak bool
}

// OpenFile loads path (a missing file is an empty set) and opens it for
// appending.
func OpenFile(path string, fsync bool) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		fsync: fsync,
		set:   make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}
	s.f = f
	return s, nil
}

func (s *FileStore) load() error {
	codes, needsBreak, err := readCodes(s.path)
	if err != nil {
		return err
	}
	for _, code := range codes {
		s.insert(code)
	}
	s.needsBreak = needsBreak
	return nil
}

// readCodes reads a code file, trimming lines and skipping blank ones. A
// missing file yields no codes.
func readCodes(path string) (codes []string, needsBreak bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open store file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			needsBreak = !strings.HasSuffix(line, "\n")
			if code := strings.TrimSpace(line); code != "" {
				codes = append(codes, code)
			}
		}
		if errors.Is(err, io.EOF) {
			return codes, needsBreak, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("read store file: %w", err)
		}
	}
}

func (s *FileStore) insert(code string) {
	if _, ok := s.set[code]; ok {
		return
	}
	s.set[code] = struct{}{}
	s.order = append(s.order, code)
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Add appends code to the file and only then records it in memory, so a
// failed write leaves the code absent and a retry can succeed.
func (s *FileStore) Add(ctx context.Context, code string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusError, err
	}
	if err := checkCode(code); err != nil {
		return StatusError, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return StatusError, ErrClosed
	}
	if _, ok := s.set[code]; ok {
		return StatusDuplicate, nil
	}

	line := code + "\n"
	if s.needsBreak {
		line = "\n" + line
	}
	if _, err := s.f.WriteString(line); err != nil {
		return StatusError, fmt.Errorf("append code: %w", err)
	}
	s.needsBreak = false
	if s.fsync {
		if err := s.f.Sync(); err != nil {
			return StatusError, fmt.Errorf("sync store file: %w", err)
		}
	}
	s.insert(code)
	return StatusSaved, nil
}

// Contains reports whether code has been stored.
func (s *FileStore) Contains(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[code]
	return ok, nil
}

// Codes returns stored codes in insertion order.
func (s *FileStore) Codes(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

// Len returns the number of stored codes.
func (s *FileStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order), nil
}

// Close closes the file. It is safe to call more than once.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
