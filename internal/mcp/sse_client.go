package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"code.cloudfoundry.org/lager/v3"
	"github.com/cenkalti/backoff/v5"
	"github.com/vito/go-sse/sse"
)

// SSEConn talks to an SSEServer: requests are POSTed to the session endpoint
// and responses are read from the event stream.
type SSEConn struct {
	httpClient *http.Client
	endpoint   string
	stream     *sse.ReadCloser
	cancel     context.CancelFunc
	logger     lager.Logger

	sendMu    sync.Mutex
	abandoned abandonedIDs

	messages chan []byte
	readErr  error
	done     chan struct{}
}

// OpenSSE opens the event stream at baseURL+"/sse" and waits for the
// endpoint event. Connection attempts are retried with exponential backoff.
func OpenSSE(ctx context.Context, httpClient *http.Client, baseURL string, maxTries uint, logger lager.Logger) (*SSEConn, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	streamURL := base.JoinPath("sse").String()

	open := func() (*SSEConn, error) {
		streamCtx, cancel := context.WithCancel(context.Background())
		req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, streamURL, nil)
		if err != nil {
			cancel()
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "text/event-stream")

		resp, err := httpClient.Do(req)
		if err != nil {
			cancel()
			logger.Info("connect-retry", lager.Data{"error": err.Error()})
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			cancel()
			return nil, fmt.Errorf("open stream: unexpected status %s", resp.Status)
		}

		stream := sse.NewReadCloser(resp.Body)
		ev, err := stream.Next()
		if err != nil {
			stream.Close()
			cancel()
			return nil, fmt.Errorf("read endpoint event: %w", err)
		}
		if ev.Name != EventEndpoint {
			stream.Close()
			cancel()
			return nil, backoff.Permanent(fmt.Errorf("expected %s event, got %q", EventEndpoint, ev.Name))
		}
		ref, err := url.Parse(string(ev.Data))
		if err != nil {
			stream.Close()
			cancel()
			return nil, backoff.Permanent(fmt.Errorf("parse endpoint: %w", err))
		}

		c := &SSEConn{
			httpClient: httpClient,
			endpoint:   base.ResolveReference(ref).String(),
			stream:     stream,
			cancel:     cancel,
			logger:     logger.Session("sse-conn"),
			abandoned:  abandonedIDs{},
			messages:   make(chan []byte),
			done:       make(chan struct{}),
		}
		go c.readLoop(streamCtx)
		return c, nil
	}

	return backoff.Retry[*SSEConn](ctx, open,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxTries),
	)
}

func (c *SSEConn) readLoop(ctx context.Context) {
	defer close(c.done)
	for {
		ev, err := c.stream.Next()
		if err != nil {
			c.readErr = err
			return
		}
		if ev.Name != EventMessage {
			continue
		}
		select {
		case c.messages <- ev.Data:
		case <-ctx.Done():
			return
		}
	}
}

// Endpoint returns the session's POST URL.
func (c *SSEConn) Endpoint() string { return c.endpoint }

func (c *SSEConn) post(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("post: unexpected status %s", resp.Status)
	}
	return nil
}

func (c *SSEConn) Send(ctx context.Context, req Request) (Response, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.post(ctx, req); err != nil {
		if ctx.Err() != nil {
			// the server may have accepted it before the cancel
			c.abandoned.add(req.ID)
		}
		return Response{}, err
	}
	for {
		select {
		case data := <-c.messages:
			if c.abandoned.take(data) {
				c.logger.Debug("dropped-late-response")
				continue
			}
			return decodeResponse(data, req.ID)
		case <-c.done:
			return Response{}, fmt.Errorf("%w: %v", ErrConnClosed, c.readErr)
		case <-ctx.Done():
			c.abandoned.add(req.ID)
			return Response{}, ctx.Err()
		}
	}
}

func (c *SSEConn) Notify(ctx context.Context, req Request) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.post(ctx, req)
}

func (c *SSEConn) Close() error {
	c.cancel()
	return c.stream.Close()
}

// DialSSE connects a Client to an SSE tool server.
func DialSSE(ctx context.Context, baseURL string, logger lager.Logger) (*Client, error) {
	conn, err := OpenSSE(ctx, nil, baseURL, 5, logger)
	if err != nil {
		return nil, err
	}
	client := NewClient(conn, logger)
	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
