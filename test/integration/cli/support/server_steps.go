package support

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"

	"github.com/matthew-graves/the-zyndicator/internal/client"
	"github.com/matthew-graves/the-zyndicator/internal/server"
)

func testServerConfig() server.Config {
	cfg := server.DefaultConfig()
	cfg.StaticDir = ""
	return cfg
}

// aCodeServerWithAnEmptyCodeFile starts a server on a code file that does
// not exist yet.
func (testCtx *TestContext) aCodeServerWithAnEmptyCodeFile() error {
	return testCtx.StartServer(testServerConfig())
}

// aCodeServerWhoseCodeFileContains seeds the code file before starting.
func (testCtx *TestContext) aCodeServerWhoseCodeFileContains(doc *godog.DocString) error {
	content := doc.Content
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(testCtx.CodeFile, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to seed code file: %w", err)
	}
	return testCtx.StartServer(testServerConfig())
}

// aCodeServerAllowingABurstOf starts a server with websocket
// message throttling enabled.
func (testCtx *TestContext) aCodeServerAllowingABurstOf(burst int) error {
	cfg := testServerConfig()
	cfg.RateLimit = server.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 100,
		Burst:             100,
		MessagesPerSecond: 0.001,
		MessageBurst:      burst,
	}
	return testCtx.StartServer(cfg)
}

// theClientSubmits forwards code through the scanning client.
func (testCtx *TestContext) theClientSubmits(code string) error {
	if err := testCtx.ConnectClient(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	testCtx.LastReply, testCtx.LastError = testCtx.Client.Forward(ctx, code)
	return testCtx.LastError
}

// aRawWebSocketMessageIsSent bypasses the client to send arbitrary text.
func (testCtx *TestContext) aRawWebSocketMessageIsSent(raw string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("no server is running")
	}
	conn, resp, err := websocket.DefaultDialer.Dial(testCtx.WebSocketURL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial websocket: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(stepTimeout))

	var reply client.Reply
	if err := conn.ReadJSON(&reply); err != nil {
		return fmt.Errorf("failed to read reply: %w", err)
	}
	testCtx.LastReply = reply
	return nil
}

func (testCtx *TestContext) theReplyStatusShouldBe(status string) error {
	if testCtx.LastReply.Status != status {
		return fmt.Errorf("expected reply status %q, got %q (payload %q)",
			status, testCtx.LastReply.Status, testCtx.LastReply.Payload)
	}
	return nil
}

func (testCtx *TestContext) theReplyPayloadShouldBe(payload string) error {
	if testCtx.LastReply.Payload != payload {
		return fmt.Errorf("expected reply payload %q, got %q", payload, testCtx.LastReply.Payload)
	}
	return nil
}

func (testCtx *TestContext) theReplyPayloadShouldStartWith(prefix string) error {
	if !strings.HasPrefix(testCtx.LastReply.Payload, prefix) {
		return fmt.Errorf("expected reply payload starting with %q, got %q", prefix, testCtx.LastReply.Payload)
	}
	return nil
}

// codeFileLines reads the code file, one code per line.
func (testCtx *TestContext) codeFileLines() ([]string, error) {
	f, err := os.Open(testCtx.CodeFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open code file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

func (testCtx *TestContext) theCodeFileShouldContainLines(n int) error {
	lines, err := testCtx.codeFileLines()
	if err != nil {
		return err
	}
	if len(lines) != n {
		return fmt.Errorf("expected %d lines in code file, got %d: %q", n, len(lines), lines)
	}
	return nil
}

func (testCtx *TestContext) theCodeFileShouldContain(code string) error {
	lines, err := testCtx.codeFileLines()
	if err != nil {
		return err
	}
	if !slices.Contains(lines, code) {
		return fmt.Errorf("code file does not contain %q: %q", code, lines)
	}
	return nil
}

// iRequest performs a GET against the running server.
func (testCtx *TestContext) iRequest(path string) error {
	if testCtx.HTTPServer == nil {
		return fmt.Errorf("no server is running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, testCtx.HTTPServer.URL+path, nil)
	if err != nil {
		return err
	}
	resp, err := testCtx.HTTPServer.Client().Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastHTTPStatus = resp.StatusCode
	testCtx.LastHTTPBody, err = io.ReadAll(resp.Body)
	return err
}

func (testCtx *TestContext) theResponseStatusShouldBe(status int) error {
	if testCtx.LastHTTPStatus != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastHTTPStatus, testCtx.LastHTTPBody)
	}
	return nil
}

func (testCtx *TestContext) theCodesListShouldHold(n int) error {
	var resp server.CodesResponse
	if err := json.Unmarshal(testCtx.LastHTTPBody, &resp); err != nil {
		return fmt.Errorf("invalid codes response: %w", err)
	}
	if resp.Count != n || len(resp.Codes) != n {
		return fmt.Errorf("expected %d codes, got count %d with %q", n, resp.Count, resp.Codes)
	}
	return nil
}

func (testCtx *TestContext) theHealthStatusShouldBe(status string) error {
	var resp server.HealthResponse
	if err := json.Unmarshal(testCtx.LastHTTPBody, &resp); err != nil {
		return fmt.Errorf("invalid health response: %w", err)
	}
	if resp.Status != status {
		return fmt.Errorf("expected health status %q, got %q", status, resp.Status)
	}
	return nil
}

// RegisterServerSteps registers the code server step definitions.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	// Server lifecycle
	sc.Step(`^a code server with an empty code file$`, testCtx.aCodeServerWithAnEmptyCodeFile)
	sc.Step(`^a code server whose code file contains:$`, testCtx.aCodeServerWhoseCodeFileContains)
	sc.Step(`^a code server allowing a burst of (\d+) messages?$`, testCtx.aCodeServerAllowingABurstOf)

	// Websocket submissions
	sc.Step(`^the client submits "([^"]*)"$`, testCtx.theClientSubmits)
	sc.Step(`^the raw message '([^']*)' is sent$`, testCtx.aRawWebSocketMessageIsSent)
	sc.Step(`^the reply status should be "([^"]*)"$`, testCtx.theReplyStatusShouldBe)
	sc.Step(`^the reply payload should be "([^"]*)"$`, testCtx.theReplyPayloadShouldBe)
	sc.Step(`^the reply payload should start with "([^"]*)"$`, testCtx.theReplyPayloadShouldStartWith)

	// Code file
	sc.Step(`^the code file should contain (\d+) lines?$`, testCtx.theCodeFileShouldContainLines)
	sc.Step(`^the code file should contain "([^"]*)"$`, testCtx.theCodeFileShouldContain)

	// HTTP endpoints
	sc.Step(`^I request "([^"]*)"$`, testCtx.iRequest)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the codes list should hold (\d+) codes?$`, testCtx.theCodesListShouldHold)
	sc.Step(`^the health status should be "([^"]*)"$`, testCtx.theHealthStatusShouldBe)
}
