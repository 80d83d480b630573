package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"code.cloudfoundry.org/lager/v3"
)

// MaxMessageBytes caps a single newline-delimited message.
const MaxMessageBytes = 10 * 1024 * 1024

// LineWriter writes one JSON value per line; safe for concurrent use.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Write encodes v followed by a newline.
func (lw *LineWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if _, err := lw.w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxMessageBytes)
	return sc
}

// errLineTooLong reports a line over MaxMessageBytes. The rest of the line
// has been consumed, so reading can resume at the next one.
var errLineTooLong = fmt.Errorf("message exceeds %d bytes", MaxMessageBytes)

type lineReader struct {
	r   *bufio.Reader
	max int
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, 64*1024), max: MaxMessageBytes}
}

// next returns the next line without its newline. A final unterminated line
// is returned before io.EOF.
func (lr *lineReader) next() ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		frag, err := lr.r.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(bytes.TrimSuffix(frag, []byte("\n"))) > lr.max {
				tooLong, line = true, nil
			} else {
				line = append(line, frag...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if tooLong {
				return nil, errLineTooLong
			}
			if len(line) == 0 {
				return nil, io.EOF
			}
			return line, nil
		case err != nil:
			return nil, err
		}
		if tooLong {
			return nil, errLineTooLong
		}
		return bytes.TrimSuffix(line, []byte("\n")), nil
	}
}

// StdioServer serves one session over newline-delimited JSON.
type StdioServer struct {
	dispatcher *Dispatcher
	in         io.Reader
	out        *LineWriter
	logger     lager.Logger
}

func NewStdioServer(d *Dispatcher, in io.Reader, out io.Writer, logger lager.Logger) *StdioServer {
	return &StdioServer{dispatcher: d, in: in, out: NewLineWriter(out), logger: logger.Session("stdio")}
}

type scanResult struct {
	line []byte
	err  error
}

// Serve reads, dispatches and answers one message at a time until EOF (nil
// error) or ctx is cancelled. The next line is read only after the previous
// response has been written.
func (s *StdioServer) Serve(ctx context.Context) error {
	s.logger.Info("listening")
	defer s.dispatcher.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan scanResult)
	next := make(chan struct{})
	go func() {
		defer close(results)
		lr := newLineReader(s.in)
		for {
			line, err := lr.next()
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case results <- scanResult{line: line, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !errors.Is(err, errLineTooLong) {
				return
			}
			select {
			case <-next:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-results:
			if !ok {
				s.logger.Info("eof")
				return nil
			}
			switch {
			case errors.Is(r.err, errLineTooLong):
				if err := s.out.Write(s.dispatcher.parseFailure(r.err, MaxMessageBytes)); err != nil {
					return err
				}
			case r.err != nil:
				return fmt.Errorf("read: %w", r.err)
			default:
				if err := s.handle(ctx, r.line); err != nil {
					return err
				}
			}
			select {
			case next <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *StdioServer) handle(ctx context.Context, line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}
	resp, ok := s.dispatcher.HandleMessage(ctx, line)
	if !ok {
		return nil
	}
	return s.out.Write(resp)
}
