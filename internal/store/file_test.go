package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenFile_LoadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte("  ABCDEFGHJK \n\n\nBCDEFGHJKL\nABCDEFGHJK\n"), 0o644))

	s, err := OpenFile(path, false)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	codes, err := s.Codes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ABCDEFGHJK", "BCDEFGHJKL"}, codes)

	ok, err := s.Contains(context.Background(), "ABCDEFGHJK")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOpenFile_MissingIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "codes.txt")

	s, err := OpenFile(path, true)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	n, err := s.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.FileExists(t, path)
}

func TestFileStore_AddSavedThenDuplicate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "codes.txt")
	s, err := OpenFile(path, false)
	require.NoError(t, err)

	st, err := s.Add(ctx, "ABCDEFGHJK")
	require.NoError(t, err)
	assert.Equal(t, StatusSaved, st)

	st, err = s.Add(ctx, "ABCDEFGHJK")
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, st)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHJK\n", string(data))

	// Reopening sees the persisted code as a duplicate.
	s, err = OpenFile(path, false)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	st, err = s.Add(ctx, "ABCDEFGHJK")
	require.NoError(t, err)
	assert.Equal(t, StatusDuplicate, st)
}

func TestFileStore_MissingTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.txt")
	require.NoError(t, os.WriteFile(path, []byte("ABCDEFGHJK"), 0o644))

	s, err := OpenFile(path, false)
	require.NoError(t, err)
	_, err = s.Add(context.Background(), "BCDEFGHJKL")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHJK\nBCDEFGHJKL\n", string(data))
}

func TestFileStore_WriteFailureKeepsSetConsistent(t *testing.T) {
	ctx := context.Background()
	s, err := OpenFile(filepath.Join(t.TempDir(), "codes.txt"), false)
	require.NoError(t, err)

	// Closing the handle underneath the store makes the next append fail.
	require.NoError(t, s.f.Close())

	st, err := s.Add(ctx, "ABCDEFGHJK")
	require.Error(t, err)
	assert.Equal(t, StatusError, st)

	ok, err := s.Contains(ctx, "ABCDEFGHJK")
	require.NoError(t, err)
	assert.False(t, ok, "a failed write must not mark the code as stored")
}

func TestFileStore_RejectsBadCodes(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "codes.txt"), false)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, err = s.Add(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyCode)
	_, err = s.Add(context.Background(), "ABC\nDEF")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestFileStore_Closed(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "codes.txt"), false)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Add(context.Background(), "ABCDEFGHJK")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFileStore_ConcurrentAddSameCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.txt")
	s, err := OpenFile(path, false)
	require.NoError(t, err)

	var saved atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st, err := s.Add(context.Background(), "ABCDEFGHJK")
			if err == nil && st == StatusSaved {
				saved.Add(1)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	assert.Equal(t, int32(1), saved.Load())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHJK\n", string(data))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"empty path", Config{Backend: BackendFile}, true},
		{"redis", Config{Backend: BackendRedis, RedisAddr: "localhost:6379", RedisKey: "k"}, false},
		{"redis without addr", Config{Backend: BackendRedis, RedisKey: "k"}, true},
		{"redis without key", Config{Backend: BackendRedis, RedisAddr: "localhost:6379"}, true},
		{"redis seed without path", Config{Backend: BackendRedis, RedisAddr: "x:1", RedisKey: "k", SeedFromFile: true}, true},
		{"unknown", Config{Backend: "sqlite"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpen_File(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "codes.txt")

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	assert.IsType(t, &FileStore{}, s)
}
