// Package store keeps the set of submitted codes.
//
// Two backends are available. The file backend keeps an append-only,
// newline-delimited file plus an in-memory set and is the default. The
// redis backend keeps the set in a redis SET so several server instances
// can share it.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Status is the outcome of adding a code.
type Status string

const (
	StatusSaved     Status = "saved"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

// Backend names.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

var (
	ErrClosed      = errors.New("store closed")
	ErrEmptyCode   = errors.New("empty code")
	ErrInvalidCode = errors.New("code contains a line break")
)

// Store is a set of unique codes with durable insertion.
type Store interface {
	// Add inserts code. A duplicate is not an error.
	Add(ctx context.Context, code string) (Status, error)
	Contains(ctx context.Context, code string) (bool, error)
	// Codes lists stored codes; file stores keep insertion order.
	Codes(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Backend string

	// File backend.
	Path  string
	Fsync bool

	// Redis backend.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	// SeedFromFile loads Path into the redis set at startup.
	SeedFromFile bool
}

// DefaultConfig returns the file backend writing to codes.txt.
func DefaultConfig() Config {
	return Config{
		Backend:  BackendFile,
		Path:     "codes.txt",
		RedisKey: "zyndicator:codes",
	}
}

// Validate checks the configuration for the selected backend.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile:
		if c.Path == "" {
			return errors.New("store path cannot be empty")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("redis address cannot be empty")
		}
		if c.RedisKey == "" {
			return errors.New("redis key cannot be empty")
		}
		if c.RedisDB < 0 {
			return fmt.Errorf("redis db must be non-negative, got %d", c.RedisDB)
		}
		if c.SeedFromFile && c.Path == "" {
			return errors.New("store path is required to seed redis")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	return nil
}

// Open creates the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendRedis:
		return OpenRedis(ctx, cfg)
	default:
		return OpenFile(cfg.Path, cfg.Fsync)
	}
}

// checkCode rejects codes that cannot be stored one per line.
func checkCode(code string) error {
	if code == "" {
		return ErrEmptyCode
	}
	if strings.ContainsAny(code, "\r\n") {
		return ErrInvalidCode
	}
	return nil
}
