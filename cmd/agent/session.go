package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/petasbytes/mcp-chat/internal/runner"
	"github.com/petasbytes/mcp-chat/memory"
)

// session is the interactive loop around one Runner and Conversation.
type session struct {
	runner      *runner.Runner
	conv        *memory.Conversation
	persistPath string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	you, assistant, notice func(a ...any) string

	// models lists backend models for /models, when the backend can.
	models func(ctx context.Context) ([]string, error)
}

const helpText = `Commands:
  /stats   show message counts
  /clear   forget the conversation
  /models  list available models
  /help    show this help
Ctrl-C or Ctrl-D quits.`

func (s *session) loop(ctx context.Context) error {
	fmt.Fprintln(s.out, "Chat started (/help for commands, Ctrl-C to quit)")

	// stdin reader goroutine -> lines into channel
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		fmt.Fprintf(s.out, "%s: ", s.you("You"))
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out, "\nExiting...")
			return nil
		case l, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						fmt.Fprintf(s.errOut, "warning: stdin read error: %v\n", err)
					}
				default:
				}
				fmt.Fprintln(s.out)
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			s.command(ctx, line)
			continue
		}
		s.turn(ctx, line)
	}
}

func (s *session) turn(ctx context.Context, text string) {
	fmt.Fprintf(s.out, "%s: ", s.assistant("Assistant"))
	res, err := s.runner.RunTurn(ctx, s.conv, text)
	fmt.Fprintln(s.out)
	if err != nil {
		fmt.Fprintf(s.errOut, "error: %v\n", err)
		return
	}
	if res.Err != nil && !res.Failed() {
		fmt.Fprintln(s.out, s.notice("(some tool calls failed)"))
	}
	s.persist()
}

func (s *session) command(ctx context.Context, line string) {
	switch strings.Fields(line)[0] {
	case "/stats":
		st := s.conv.Stats()
		fmt.Fprintf(s.out, "Messages: %d (user %d, assistant %d)\n", st.Total(), st.User, st.Assistant)
	case "/clear":
		s.conv.Clear()
		s.persist()
		fmt.Fprintln(s.out, "Conversation cleared.")
	case "/models":
		if s.models == nil {
			fmt.Fprintln(s.out, "Model listing is not supported by this provider.")
			return
		}
		models, err := s.models(ctx)
		if err != nil {
			fmt.Fprintf(s.errOut, "error: %v\n", err)
			return
		}
		for _, m := range models {
			fmt.Fprintf(s.out, "  %s\n", m)
		}
	case "/help":
		fmt.Fprintln(s.out, helpText)
	default:
		fmt.Fprintf(s.out, "Unknown command %s\n", line)
	}
}

func (s *session) persist() {
	if s.persistPath == "" {
		return
	}
	if err := s.conv.Save(s.persistPath); err != nil {
		fmt.Fprintf(s.errOut, "warning: failed to save conversation: %v\n", err)
	}
}
