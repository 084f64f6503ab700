// Package client forwards scanned codes to a zyndicator server over a
// websocket and waits for the per-code acknowledgement.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("client closed")

// Message is a code submission.
type Message struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

// Reply is the server acknowledgement of one submission.
type Reply struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
}

// Accepted reports whether the server now holds the code.
func (r Reply) Accepted() bool {
	return r.Status == "saved" || r.Status == "duplicate"
}

// Config controls the client.
type Config struct {
	URL          string
	DialTimeout  time.Duration
	ReplyTimeout time.Duration
	Header       http.Header
}

// DefaultConfig targets a server on localhost.
func DefaultConfig() Config {
	return Config{
		URL:          "ws://localhost:3000/ws",
		DialTimeout:  10 * time.Second,
		ReplyTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("server url must use ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("server url has no host")
	}
	if c.ReplyTimeout <= 0 {
		return errors.New("reply timeout must be positive")
	}
	return nil
}

// Client is a websocket connection to the code server. Forward calls are
// serialized so each reply is paired with its submission.
type Client struct {
	mu     sync.Mutex
	cfg    Config
	dialer *websocket.Dialer
	link   *link
	closed bool
}

// link is one connection and the goroutine reading from it.
type link struct {
	ws      *websocket.Conn
	replies chan Reply
	done    chan struct{}
	err     error // read error, set before done is closed
}

func newLink(ws *websocket.Conn) *link {
	l := &link{
		ws:      ws,
		replies: make(chan Reply, 1),
		done:    make(chan struct{}),
	}
	go l.pump()
	return l
}

// pump reads until the connection fails. Reading between submissions keeps
// the default ping handler answering server pings while the client is idle.
func (l *link) pump() {
	defer close(l.done)
	for {
		var r Reply
		if err := l.ws.ReadJSON(&r); err != nil {
			l.err = err
			return
		}
		// Ignore anything that is not an acknowledgement.
		if r.Event != "status" {
			continue
		}
		select {
		case l.replies <- r:
		default:
			slog.Debug("Dropping unsolicited reply", "payload", r.Payload)
		}
	}
}

// alive reports whether the pump is still reading.
func (l *link) alive() bool {
	select {
	case <-l.done:
		return false
	default:
		return true
	}
}

func (l *link) close() error {
	err := l.ws.Close()
	<-l.done
	return err
}

// Dial connects to the server.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	c.link = newLink(conn)
	slog.Debug("Connected to code server", "url", c.cfg.URL)
	return nil
}

// Forward submits code and returns the server's reply. A connection the
// server dropped while idle is re-established first; one that fails during
// the exchange is dropped and re-established on the next call.
func (c *Client) Forward(ctx context.Context, code string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Reply{}, ErrClosed
	}
	if c.link != nil && !c.link.alive() {
		slog.Debug("Code server connection lost, reconnecting", "error", c.link.err)
		_ = c.link.close()
		c.link = nil
	}
	if c.link == nil {
		if err := c.connect(ctx); err != nil {
			return Reply{}, err
		}
	}

	deadline := time.Now().Add(c.cfg.ReplyTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	reply, err := c.roundTrip(ctx, deadline, code)
	if err != nil {
		_ = c.link.close()
		c.link = nil
		return Reply{}, err
	}
	return reply, nil
}

func (c *Client) roundTrip(ctx context.Context, deadline time.Time, code string) (Reply, error) {
	l := c.link
	_ = l.ws.SetWriteDeadline(deadline)
	if err := l.ws.WriteJSON(Message{Event: "code", Payload: code}); err != nil {
		return Reply{}, fmt.Errorf("send code: %w", err)
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case r := <-l.replies:
		return r, nil
	case <-l.done:
		return Reply{}, fmt.Errorf("read reply: %w", l.err)
	case <-timer.C:
		return Reply{}, errors.New("read reply: timed out")
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.link == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.link.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.link.close()
	c.link = nil
	return err
}
