package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/matthew-graves/the-zyndicator/internal/store"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	store       store.Store
	validate    *validator.Validate
	corsOrigin  string
	staticDir   string
	rateLimiter *RateLimiter
	msgRate     rate.Limit
	msgBurst    int
	maxMsgBytes int64
	pongWait    time.Duration
	pingPeriod  time.Duration
	started     time.Time
}

// RateLimitConfig controls request and message throttling.
type RateLimitConfig struct {
	Enabled bool
	// HTTP requests per second and burst, per client IP.
	RequestsPerSecond float64
	Burst             int
	// Websocket messages per second and burst, per connection.
	MessagesPerSecond float64
	MessageBurst      int
}

// Config holds server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	StaticDir       string
	TimeoutSec      int
	ShutdownTimeout int
	MaxMessageBytes int64
	// PublicURL is printed as a terminal QR code at startup when set.
	PublicURL string
	RateLimit RateLimitConfig
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            3000,
		CORSOrigin:      "*",
		StaticDir:       "public",
		TimeoutSec:      30,
		ShutdownTimeout: 10,
		MaxMessageBytes: 4096,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			MessagesPerSecond: 10,
			MessageBurst:      20,
		},
	}
}

// CodeMessage is sent by scanning clients.
type CodeMessage struct {
	Event   string `json:"event" validate:"required,eq=code"`
	Payload string `json:"payload" validate:"required,max=256"`
}

// StatusMessage acknowledges a CodeMessage.
type StatusMessage struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
}

// Reply statuses beyond the store outcomes.
const (
	StatusInvalid     = "invalid"
	StatusRateLimited = "rate_limited"
)

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Uptime  string `json:"uptime,omitempty"`
	Codes   int    `json:"codes"`
}

type CodesResponse struct {
	Codes []string `json:"codes"`
	Count int      `json:"count"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a server backed by st. The server takes ownership of st
// and closes it in Close.
func NewServer(config Config, st store.Store) (*Server, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	s := &Server{
		store:       st,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		corsOrigin:  config.CORSOrigin,
		staticDir:   config.StaticDir,
		maxMsgBytes: config.MaxMessageBytes,
		pongWait:    60 * time.Second,
		pingPeriod:  30 * time.Second,
		started:     time.Now(),
		msgRate:     rate.Inf,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(rate.Limit(config.RateLimit.RequestsPerSecond), config.RateLimit.Burst)
		s.msgRate = rate.Limit(config.RateLimit.MessagesPerSecond)
		s.msgBurst = config.RateLimit.MessageBurst
	}
	return s, nil
}

// StartJanitor forgets idle rate limit clients in the background until ctx
// is done. It does nothing when rate limiting is disabled.
func (s *Server) StartJanitor(ctx context.Context, every time.Duration) {
	if s.rateLimiter == nil {
		return
	}
	go s.rateLimiter.PruneEvery(ctx, every, 2*every)
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/codes", s.corsMiddleware(s.rateLimitMiddleware(s.codesHandler)))
	mux.HandleFunc("/ws", s.corsMiddleware(s.rateLimitMiddleware(s.codeWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
}
