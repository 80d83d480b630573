package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/petasbytes/mcp-chat/memory"
)

const DefaultOllamaURL = "http://localhost:11434"

const probeTimeout = 5 * time.Second

// Ollama streams replies from a local Ollama server's native chat API.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllama(baseURL, model string, client *http.Client) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Ollama{baseURL: strings.TrimRight(baseURL, "/"), model: model, client: client}
}

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

// SetModel switches the model used by later calls.
func (o *Ollama) SetModel(model string) { o.model = model }

// IsAvailable reports whether the server answers /api/tags.
func (o *Ollama) IsAvailable(ctx context.Context) bool {
	resp, err := o.get(ctx, "/api/tags")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Models lists the installed models.
func (o *Ollama) Models(ctx context.Context) ([]string, error) {
	resp, err := o.get(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama: list models: status %s", resp.Status)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama: decode models: %w", err)
	}
	names := make([]string, 0, len(result.Models))
	for _, m := range result.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (o *Ollama) get(ctx context.Context, path string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

// Stream posts to /api/chat and relays the NDJSON reply. Each line carries
// message.content and done; a line with an error field ends the stream.
func (o *Ollama) Stream(ctx context.Context, msgs []memory.Message) (<-chan Chunk, error) {
	if o.model == "" {
		return nil, fmt.Errorf("ollama: no model selected")
	}
	body := ollamaChatRequest{Model: o.model, Stream: true, Messages: make([]ollamaMessage, 0, len(msgs))}
	for _, m := range msgs {
		body.Messages = append(body.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama: chat: status %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	ch := make(chan Chunk, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			if !gjson.ValidBytes(line) {
				send(ctx, ch, Chunk{Err: fmt.Errorf("ollama: malformed stream line")})
				return
			}
			if e := gjson.GetBytes(line, "error"); e.Exists() {
				send(ctx, ch, Chunk{Err: fmt.Errorf("ollama: %s", e.String())})
				return
			}
			if delta := gjson.GetBytes(line, "message.content").String(); delta != "" {
				if !send(ctx, ch, Chunk{Delta: delta}) {
					return
				}
			}
			if gjson.GetBytes(line, "done").Bool() {
				send(ctx, ch, Chunk{Done: true})
				return
			}
		}
		if err := sc.Err(); err != nil {
			send(ctx, ch, Chunk{Err: fmt.Errorf("ollama: read stream: %w", err)})
			return
		}
		// Stream closed without a done line; treat as end of reply.
		send(ctx, ch, Chunk{Done: true})
	}()
	return ch, nil
}
