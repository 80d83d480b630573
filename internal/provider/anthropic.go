package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/petasbytes/mcp-chat/memory"
)

const DefaultModel = anthropic.ModelClaude3_7SonnetLatest
const APIVersion = "2023-06-01"

const defaultMaxTokens = 1024

// NewAnthropicClient returns a client using the API key from the env unless
// opts override it.
func NewAnthropicClient(opts ...option.RequestOption) *anthropic.Client {
	c := anthropic.NewClient(opts...)
	return &c
}

// Anthropic streams replies from the Messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

func NewAnthropic(client *anthropic.Client, model string) *Anthropic {
	m := anthropic.Model(model)
	if model == "" {
		m = DefaultModel
	}
	return &Anthropic{client: client, model: m, maxTokens: defaultMaxTokens}
}

// params maps the conversation onto a request. System messages are joined
// into the system prompt.
func (a *Anthropic) params(msgs []memory.Message) anthropic.MessageNewParams {
	p := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(msgs)),
	}
	for _, m := range msgs {
		switch m.Role {
		case memory.RoleSystem:
			p.System = append(p.System, anthropic.TextBlockParam{Text: m.Content})
		case memory.RoleAssistant:
			p.Messages = append(p.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			p.Messages = append(p.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return p
}

func (a *Anthropic) Stream(ctx context.Context, msgs []memory.Message) (<-chan Chunk, error) {
	stream := a.client.Messages.NewStreaming(ctx, a.params(msgs))

	ch := make(chan Chunk, 64)
	go func() {
		defer close(ch)
		defer stream.Close()

		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
					if !send(ctx, ch, Chunk{Delta: d.Text}) {
						return
					}
				}
			case anthropic.MessageStopEvent:
				send(ctx, ch, Chunk{Done: true})
				return
			}
		}
		if err := stream.Err(); err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("anthropic stream: %w", err)})
			return
		}
		send(ctx, ch, Chunk{Done: true})
	}()
	return ch, nil
}
