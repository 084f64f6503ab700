package server

import (
	"context"
	"errors"
	"sync"

	"github.com/matthew-graves/the-zyndicator/internal/store"
)

// memStore is an in-memory store.Store with injectable failures.
type memStore struct {
	mu      sync.Mutex
	codes   []string
	seen    map[string]bool
	addErr  error
	listErr error
	closed  bool
}

func newMemStore(codes ...string) *memStore {
	m := &memStore{seen: make(map[string]bool)}
	for _, c := range codes {
		m.seen[c] = true
		m.codes = append(m.codes, c)
	}
	return m
}

func (m *memStore) Add(_ context.Context, code string) (store.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code == "" {
		return store.StatusError, store.ErrEmptyCode
	}
	if m.addErr != nil {
		return store.StatusError, m.addErr
	}
	if m.seen[code] {
		return store.StatusDuplicate, nil
	}
	m.seen[code] = true
	m.codes = append(m.codes, code)
	return store.StatusSaved, nil
}

func (m *memStore) Contains(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[code], nil
}

func (m *memStore) Codes(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]string(nil), m.codes...), nil
}

func (m *memStore) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return 0, m.listErr
	}
	return len(m.codes), nil
}

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var errDiskFull = errors.New("disk full")

func newTestServer(st store.Store, mutate func(*Config)) *Server {
	cfg := DefaultConfig()
	cfg.StaticDir = ""
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg, st)
	if err != nil {
		panic(err)
	}
	return s
}
