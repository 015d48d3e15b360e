// Package httpapi implements chat.Backend over the compliance REST API:
// JSON one-shot replies, SSE reply streams, and query-log writes.
package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/encompliance/encompliance/chat"
)

const (
	chatPath      = "/api/v1/chat"
	streamPath    = "/api/v1/chat/stream"
	queryLogsPath = "/api/v1/query-logs"
)

// Client talks to the compliance backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAccessToken sets the bearer token attached to every request.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		// No overall timeout: streams are long-lived and bounded by ctx.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Prompt        string  `json:"prompt"`
	OperationType string  `json:"operation_type,omitempty"`
	Model         string  `json:"model,omitempty"`
	DocumentIDs   []int64 `json:"document_ids,omitempty"`
}

type chatResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// streamEvent is one SSE data payload on the stream endpoint. Exactly one
// of Text, Done, or Error is meaningful per event.
type streamEvent struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

type queryLogRequest struct {
	Query         string  `json:"query"`
	Response      string  `json:"response"`
	OperationType string  `json:"operation_type,omitempty"`
	DocumentIDs   []int64 `json:"document_ids,omitempty"`
}

// GetReply implements chat.Backend.
func (c *Client) GetReply(ctx context.Context, message string, rc chat.RequestContext) (string, error) {
	body := chatRequest{
		Prompt:        message,
		OperationType: rc.OperationType,
		Model:         rc.ModelID,
		DocumentIDs:   rc.DocumentIDs,
	}

	resp, err := c.post(ctx, chatPath, body, "")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.Wrap(err, "decode chat response")
	}
	if decoded.Error != "" {
		return "", errors.Errorf("chat request failed: %s", decoded.Error)
	}
	return decoded.Text, nil
}

// StreamReply implements chat.Backend. It consumes the SSE stream and
// forwards each text fragment to onChunk in arrival order, returning nil
// on the done sentinel and an error on a stream error event or transport
// failure.
func (c *Client) StreamReply(ctx context.Context, message string, rc chat.RequestContext, onChunk func(string)) error {
	body := chatRequest{
		Prompt:        message,
		OperationType: rc.OperationType,
		Model:         rc.ModelID,
		DocumentIDs:   rc.DocumentIDs,
	}

	resp, err := c.post(ctx, streamPath, body, "text/event-stream")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp); err != nil {
		return err
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// Stream ended without the done sentinel.
				return errors.New("reply stream closed unexpectedly")
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "read reply stream")
		}

		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return errors.Wrapf(err, "decode stream event %q", payload)
		}
		switch {
		case event.Error != "":
			return errors.Errorf("reply stream failed: %s", event.Error)
		case event.Done:
			return nil
		case event.Text != "":
			onChunk(event.Text)
		}
	}
}

// LogExchange implements chat.Backend. Best effort by contract; the
// controller logs and swallows any error returned here.
func (c *Client) LogExchange(ctx context.Context, userMessage, assistantReply string, rc chat.RequestContext) error {
	body := queryLogRequest{
		Query:         userMessage,
		Response:      assistantReply,
		OperationType: rc.OperationType,
		DocumentIDs:   rc.DocumentIDs,
	}

	resp, err := c.post(ctx, queryLogsPath, body, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	return checkStatus(resp)
}

func (c *Client) post(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "POST %s", path)
	}
	return resp, nil
}

// checkStatus maps non-2xx responses to errors carrying the server's
// message when one is present.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var apiErr struct {
		Message string `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		return errors.Errorf("%s (status %d)", apiErr.Message, resp.StatusCode)
	}
	return errors.Errorf("request failed with status %d", resp.StatusCode)
}

// DefaultHTTPClient returns a client suitable for one-shot calls where an
// overall timeout is wanted.
func DefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
