package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client talks to a messaging bridge over HTTP on behalf of one bot. The
// bridge owns the real wire protocol; the client only opens a named session,
// persists the pairing QR the bridge hands back, and posts outbound messages.
type Client struct {
	config     Config
	httpClient *http.Client
	semaphore  chan struct{} // bounds concurrent sends

	// Connection state
	connected bool
	sessionID string

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains bridge client configuration
type Config struct {
	Name          string // bot name, scopes the bridge session
	Endpoint      string
	APIKey        string
	DataDir       string // where the pairing QR artifact is written
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
}

// sessionRequest opens or resumes a named bridge session
type sessionRequest struct {
	Name string `json:"name"`
}

// sessionResponse carries the bridge session handle and, on first pairing,
// the QR code image to scan
type sessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	QRPNG     []byte `json:"qr_png,omitempty"`
}

// messageRequest is one outbound message envelope
type messageRequest struct {
	RequestID string    `json:"request_id"`
	SessionID string    `json:"session_id"`
	Recipient string    `json:"recipient"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	Connected       bool          `json:"connected"`
}

// NewClient creates a new bridge client for one bot
func NewClient(config Config) (*Client, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("bot name cannot be empty")
	}

	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}

	if config.DataDir == "" {
		config.DataDir = "."
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, config.MaxConcurrent),
	}, nil
}

// Name returns the bot name this client is scoped to
func (c *Client) Name() string {
	return c.config.Name
}

// Connect opens the named session on the bridge. When the bridge responds
// with a pairing QR image it is persisted as <data_dir>/<name>.qr.png so the
// operator can scan it out of band.
func (c *Client) Connect(ctx context.Context) error {
	body, err := json.Marshal(sessionRequest{Name: c.config.Name})
	if err != nil {
		return fmt.Errorf("failed to encode session request: %w", err)
	}

	respBody, err := c.post(ctx, "/session", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("bridge session handshake failed: %w", err)
	}

	var sess sessionResponse
	if err := json.Unmarshal(respBody, &sess); err != nil {
		return fmt.Errorf("failed to parse session response: %w", err)
	}

	if sess.SessionID == "" {
		return fmt.Errorf("bridge returned empty session id")
	}

	if len(sess.QRPNG) > 0 {
		if err := c.writePairingArtifact(sess.QRPNG); err != nil {
			return fmt.Errorf("failed to persist pairing artifact: %w", err)
		}
	}

	c.mu.Lock()
	c.connected = true
	c.sessionID = sess.SessionID
	c.mu.Unlock()

	return nil
}

// Instance returns the live sender, or ErrNotConnected before a successful
// Connect
func (c *Client) Instance() (Sender, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return nil, fmt.Errorf("%w: session %s", ErrNotConnected, c.config.Name)
	}

	return c, nil
}

// SendMessage posts one outbound message to the bridge with bounded retries.
// Safe for concurrent use.
func (c *Client) SendMessage(ctx context.Context, recipient string, payload any) error {
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.RLock()
	sessionID := c.sessionID
	connected := c.connected
	c.mu.RUnlock()

	if !connected {
		return fmt.Errorf("%w: session %s", ErrNotConnected, c.config.Name)
	}

	req := messageRequest{
		RequestID: uuid.NewString(),
		SessionID: sessionID,
		Recipient: recipient,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode message request: %w", err)
	}

	startTime := time.Now()
	c.incrementTotalRequests()

	var lastErr error

	// Retry loop with exponential backoff
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()

			backoffTime := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoffTime > 30*time.Second {
				backoffTime = 30 * time.Second
			}

			select {
			case <-time.After(backoffTime):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, err := c.post(ctx, "/messages", bytes.NewReader(body))
		if err == nil {
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(time.Since(startTime))
			return nil
		}

		lastErr = err

		if !isRetryableError(err) {
			break
		}
	}

	c.incrementFailedRequests()
	return fmt.Errorf("send to %s failed after %d attempts: %w", recipient, c.config.MaxRetries+1, lastErr)
}

// post performs a single authenticated POST against the bridge
func (c *Client) post(ctx context.Context, path string, body io.Reader) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "wa-multi-instance/1.0")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// writePairingArtifact persists the QR image under a tenant-named file
func (c *Client) writePairingArtifact(png []byte) error {
	if err := os.MkdirAll(c.config.DataDir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(PairingArtifactPath(c.config.DataDir, c.config.Name), png, 0o644)
}

// PairingArtifactPath returns where a bot's pairing QR image lives
func PairingArtifactPath(dataDir, name string) string {
	return filepath.Join(dataDir, name+".qr.png")
}

// isRetryableError reports whether a failed request is worth retrying:
// transport-level failures and 5xx/429 responses are, 4xx are not.
func isRetryableError(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	errStr := err.Error()

	if strings.Contains(errStr, "HTTP error 5") {
		return true
	}

	if strings.Contains(errStr, "HTTP error 429") {
		return true
	}

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "refused") {
		return true
	}

	return false
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple moving average
	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// GetStats returns current client statistics
func (c *Client) GetStats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		Connected:       c.connected,
	}
}

// Close marks the client disconnected and waits for in-flight sends
func (c *Client) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	for i := 0; i < c.config.MaxConcurrent; i++ {
		c.semaphore <- struct{}{}
	}

	return nil
}
