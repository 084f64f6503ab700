package support

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/matthew-graves/the-zyndicator/internal/client"
	"github.com/matthew-graves/the-zyndicator/internal/pipeline"
	"github.com/matthew-graves/the-zyndicator/internal/server"
	"github.com/matthew-graves/the-zyndicator/internal/store"
)

// stepTimeout bounds every network round trip made by a step.
const stepTimeout = 5 * time.Second

// TestContext holds the state of one scenario. Everything runs in-process:
// the code server behind httptest, the websocket client and the scanning
// session.
type TestContext struct {
	TempDir   string
	CodeFile  string
	FramesDir string

	// Code server
	Server     *server.Server
	HTTPServer *httptest.Server
	Client     *client.Client

	// Last websocket reply
	LastReply client.Reply
	LastError error

	// Last HTTP response
	LastHTTPStatus int
	LastHTTPBody   []byte

	// Scanning
	frameCount int
	Readings   []string
	Results    []*pipeline.FrameResult
	Summary    pipeline.RunSummary
}

// NewTestContext creates a scenario context rooted in a fresh temp directory.
func NewTestContext() (*TestContext, error) {
	dir, err := os.MkdirTemp("", "zyndicator-it-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	return &TestContext{
		TempDir:   dir,
		CodeFile:  filepath.Join(dir, "codes.txt"),
		FramesDir: filepath.Join(dir, "frames"),
	}, nil
}

// Register wires every step definition into sc.
func (testCtx *TestContext) Register(sc *godog.ScenarioContext) {
	testCtx.RegisterServerSteps(sc)
	testCtx.RegisterScanSteps(sc)
}

// StartServer opens the file store and serves it on a loopback listener.
func (testCtx *TestContext) StartServer(cfg server.Config) error {
	if testCtx.HTTPServer != nil {
		return errors.New("server already running")
	}
	st, err := store.OpenFile(testCtx.CodeFile, false)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	srv, err := server.NewServer(cfg, st)
	if err != nil {
		_ = st.Close()
		return err
	}
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	testCtx.Server = srv
	testCtx.HTTPServer = httptest.NewServer(mux)
	return nil
}

// WebSocketURL returns the ws:// address of the running server.
func (testCtx *TestContext) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(testCtx.HTTPServer.URL, "http") + "/ws"
}

// ConnectClient dials the running server with the scanning client.
func (testCtx *TestContext) ConnectClient() error {
	if testCtx.HTTPServer == nil {
		return errors.New("no server is running")
	}
	if testCtx.Client != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	c, err := client.Dial(ctx, client.Config{
		URL:          testCtx.WebSocketURL(),
		DialTimeout:  stepTimeout,
		ReplyTimeout: stepTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	testCtx.Client = c
	return nil
}

// Cleanup stops the server and removes the scenario directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.Client != nil {
		errs = append(errs, testCtx.Client.Close())
		testCtx.Client = nil
	}
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if testCtx.Server != nil {
		errs = append(errs, testCtx.Server.Close())
		testCtx.Server = nil
	}
	if testCtx.TempDir != "" {
		errs = append(errs, os.RemoveAll(testCtx.TempDir))
	}
	return errors.Join(errs...)
}
