package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/hashicorp/go-multierror"
)

// Conn carries requests to a server. Send performs one request/response
// exchange; Notify sends a message that expects no reply.
type Conn interface {
	Send(ctx context.Context, req Request) (Response, error)
	Notify(ctx context.Context, req Request) error
	Close() error
}

// ErrConnClosed is returned once the peer has gone away.
var ErrConnClosed = errors.New("mcp: connection closed")

// StreamConn speaks newline-delimited JSON over a reader/writer pair.
type StreamConn struct {
	out    *LineWriter
	closer io.Closer

	// one exchange in flight at a time
	sendMu    sync.Mutex
	abandoned abandonedIDs

	lines   chan []byte
	readErr error
	done    chan struct{}

	quit      chan struct{}
	closeOnce sync.Once
}

// NewStreamConn starts reading responses from r. closer, if non-nil, is
// closed by Close.
func NewStreamConn(r io.Reader, w io.Writer, closer io.Closer) *StreamConn {
	c := &StreamConn{
		out:       NewLineWriter(w),
		closer:    closer,
		abandoned: abandonedIDs{},
		lines:     make(chan []byte),
		done:      make(chan struct{}),
		quit:      make(chan struct{}),
	}
	go c.readLoop(r)
	return c
}

func (c *StreamConn) readLoop(r io.Reader) {
	defer close(c.done)
	sc := newLineScanner(r)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case c.lines <- append([]byte(nil), line...):
		case <-c.quit:
			return
		}
	}
	c.readErr = sc.Err()
}

func (c *StreamConn) Send(ctx context.Context, req Request) (Response, error) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := c.out.Write(req); err != nil {
		return Response{}, err
	}
	for {
		select {
		case line := <-c.lines:
			if c.abandoned.take(line) {
				continue
			}
			return decodeResponse(line, req.ID)
		case <-c.done:
			if c.readErr != nil {
				return Response{}, fmt.Errorf("%w: %v", ErrConnClosed, c.readErr)
			}
			return Response{}, ErrConnClosed
		case <-ctx.Done():
			c.abandoned.add(req.ID)
			return Response{}, ctx.Err()
		}
	}
}

func (c *StreamConn) Notify(_ context.Context, req Request) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.out.Write(req)
}

func (c *StreamConn) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// abandonedIDs holds ids of requests whose caller stopped waiting. Their
// responses may still arrive and are dropped instead of being matched
// against a later request.
type abandonedIDs map[string]struct{}

func (a abandonedIDs) add(id json.RawMessage) {
	a[string(bytes.TrimSpace(id))] = struct{}{}
}

// take reports whether raw answers an abandoned request, forgetting the id.
func (a abandonedIDs) take(raw []byte) bool {
	if len(a) == 0 {
		return false
	}
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return false
	}
	id := string(bytes.TrimSpace(head.ID))
	if _, ok := a[id]; !ok {
		return false
	}
	delete(a, id)
	return true
}

func decodeResponse(raw []byte, wantID json.RawMessage) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(resp.ID), bytes.TrimSpace(wantID)) {
		return Response{}, fmt.Errorf("%w: got %s want %s", ErrMismatchedID, resp.ID, wantID)
	}
	if err := resp.Validate(); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// processCloser shuts down a server subprocess: close its stdin, then wait,
// killing it if it does not exit within the grace period.
type processCloser struct {
	cmd   *exec.Cmd
	stdin io.Closer
	grace time.Duration
}

func (p *processCloser) Close() error {
	var result error
	if err := p.stdin.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close stdin: %w", err))
	}

	waited := make(chan error, 1)
	go func() { waited <- p.cmd.Wait() }()

	select {
	case err := <-waited:
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("wait: %w", err))
		}
	case <-time.After(p.grace):
		if err := p.cmd.Process.Kill(); err != nil {
			result = multierror.Append(result, fmt.Errorf("kill: %w", err))
		}
		<-waited
	}
	return result
}

// serverEnv quiets the server's logging, which shares the caller's terminal,
// unless a level was chosen explicitly.
func serverEnv(environ []string) []string {
	for _, kv := range environ {
		if strings.HasPrefix(kv, "AGT_LOG_LEVEL=") {
			return environ
		}
	}
	return append(environ, "AGT_LOG_LEVEL=error")
}

// DialStdio starts the server command and connects to it over its stdin and
// stdout. The server's stderr is forwarded to stderr.
func DialStdio(ctx context.Context, logger lager.Logger, stderr io.Writer, name string, args ...string) (*Client, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = serverEnv(os.Environ())
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	logger.Info("server-started", lager.Data{"command": name, "pid": cmd.Process.Pid})

	conn := NewStreamConn(stdout, stdin, &processCloser{cmd: cmd, stdin: stdin, grace: 5 * time.Second})
	client := NewClient(conn, logger)
	if err := client.Connect(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
