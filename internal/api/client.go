package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/logger"
)

// Actions understood by the collector.
const (
	ActionScreenshot = "screenshot"
	ActionIdleStart  = "idle_start"
	ActionIdleEnd    = "idle_end"
	ActionHeartbeat  = "heartbeat"
)

const DefaultTimeout = 30 * time.Second

// Failure classes. Callers treat them alike; they exist for logging and tests.
var (
	ErrTransport = errors.New("transport error")
	ErrStatus    = errors.New("unexpected status")
	ErrBadBody   = errors.New("response body is not JSON")
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Envelope is the uniform body of every report.
type Envelope struct {
	Action string `json:"action"`
	UserID string `json:"user_id"`
	Data   any    `json:"data,omitempty"`
}

// ScreenshotData is the payload of a screenshot report.
type ScreenshotData struct {
	ImageBase64 string `json:"image_base64"`
}

// HeartbeatData is the payload of a heartbeat report.
type HeartbeatData struct {
	AgentVersion string `json:"agent_version"`
	Hostname     string `json:"hostname,omitempty"`
}

// Outcome is the classified result of one Send.
type Outcome struct {
	Action     string
	StatusCode int
	Body       json.RawMessage
	Err        error
}

// OK reports whether the collector accepted the report.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Config holds the gateway settings.
type Config struct {
	URL     string
	APIKey  string
	UserID  string
	Timeout time.Duration
	Version string
}

// Client is the reporting gateway. It is stateless apart from its settings
// and safe for concurrent use; concurrent sends are not ordered.
type Client struct {
	url     string
	apiKey  string
	userID  string
	timeout time.Duration
	agent   string
	http    Doer
	log     *logger.Logger
}

// NewClient creates a gateway. A nil doer uses an http.Client with the
// configured timeout.
func NewClient(cfg Config, doer Doer, log *logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		userID:  cfg.UserID,
		timeout: cfg.Timeout,
		agent:   fmt.Sprintf("TimeTrack-Agent/%s (%s/%s)", cfg.Version, runtime.GOOS, runtime.GOARCH),
		http:    doer,
		log:     log,
	}
}

// Send delivers one report. There is exactly one attempt; a failed report
// is dropped.
func (c *Client) Send(ctx context.Context, action string, data any) Outcome {
	out := c.send(ctx, action, data)
	if out.OK() {
		c.log.Info("report sent", zap.String("action", action))
	} else {
		c.log.Warn("report dropped",
			zap.String("action", action),
			zap.Int("status", out.StatusCode),
			zap.Error(out.Err))
	}
	return out
}

func (c *Client) send(ctx context.Context, action string, data any) Outcome {
	out := Outcome{Action: action}

	body, err := json.Marshal(Envelope{Action: action, UserID: c.userID, Data: data})
	if err != nil {
		out.Err = fmt.Errorf("encode envelope: %w", err)
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrTransport, err)
		return out
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.agent)

	resp, err := c.http.Do(req)
	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrTransport, err)
		return out
	}
	defer resp.Body.Close()
	out.StatusCode = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		out.Err = fmt.Errorf("%w: read body: %v", ErrTransport, err)
		return out
	}

	if resp.StatusCode/100 != 2 {
		out.Err = fmt.Errorf("%w %s: %s", ErrStatus, resp.Status, snippet(raw))
		return out
	}
	if !json.Valid(raw) {
		out.Err = fmt.Errorf("%w: %s", ErrBadBody, snippet(raw))
		return out
	}
	out.Body = raw
	return out
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
