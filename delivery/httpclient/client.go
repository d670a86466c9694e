package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

/* Client performs a single POST per call
 * It never retries internally; retry policy lives with the caller.
 * One shared transport pools connections across all destinations
 */
type Client struct {
	hc *http.Client
}

// Response is the normalized outcome of a completed HTTP exchange
type Response struct {
	StatusCode int
	Body       string
	Latency    time.Duration
}

// maxResponseBody caps how much of the destination's response is kept
const maxResponseBody = 4 * 1024

// New creates a client with connection pooling tuned for webhook fan-out
func New() *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		hc: &http.Client{
			Transport: transport,
			// per-call deadlines come from the request context
		},
	}
}

/* Post performs exactly one POST with a client-side timeout
 * Returns the response for any completed exchange regardless of status;
 * returns an error only when no HTTP response was received
 */
func (c *Client) Post(ctx context.Context, url string, payload []byte, headers map[string]string, timeout time.Duration) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.hc.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Response{Latency: latency}, fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		// the status line arrived; keep it and note the truncated body
		return Response{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Latency:    latency,
		}, nil
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		Latency:    latency,
	}, nil
}

// CloseIdleConnections releases pooled connections
func (c *Client) CloseIdleConnections() {
	c.hc.CloseIdleConnections()
}
