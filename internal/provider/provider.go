// Package provider adapts text generation backends to a chunk stream.
package provider

import (
	"context"
	"errors"

	"github.com/petasbytes/mcp-chat/memory"
)

// Chunk is one piece of a streamed reply. The last chunk on a channel has
// Done or Err set; the channel is closed after it.
type Chunk struct {
	Delta string
	Done  bool
	Err   error
}

// Generator streams a reply to a conversation.
type Generator interface {
	Stream(ctx context.Context, msgs []memory.Message) (<-chan Chunk, error)
}

// ErrUnavailable reports that the backend could not be reached.
var ErrUnavailable = errors.New("provider unavailable")

// send delivers c unless ctx ends first.
func send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
