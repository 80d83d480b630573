package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/mcp-chat/internal/config"
	"github.com/petasbytes/mcp-chat/internal/provider"
	"github.com/petasbytes/mcp-chat/internal/runner"
	"github.com/petasbytes/mcp-chat/memory"
	"github.com/petasbytes/mcp-chat/tools"
)

type echoGen struct{}

func (echoGen) Stream(ctx context.Context, msgs []memory.Message) (<-chan provider.Chunk, error) {
	last := msgs[len(msgs)-1].Content
	ch := make(chan provider.Chunk, 2)
	ch <- provider.Chunk{Delta: "echo: " + last}
	ch <- provider.Chunk{Done: true}
	close(ch)
	return ch, nil
}

type stubClient struct {
	descs []tools.Descriptor
	calls []string
	err   error
}

func (s *stubClient) ListTools(context.Context) ([]tools.Descriptor, error) { return s.descs, nil }

func (s *stubClient) CallTool(_ context.Context, name string, args map[string]any) (string, error) {
	s.calls = append(s.calls, fmt.Sprintf("%s %v", name, args))
	if s.err != nil {
		return "", s.err
	}
	return "Result: 14", nil
}

func plain(a ...any) string { return fmt.Sprint(a...) }

func newSession(t *testing.T, input string) (*session, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	return &session{
		runner:      runner.New(echoGen{}, runner.WithDisplay(&out)),
		conv:        memory.NewConversation(),
		persistPath: filepath.Join(t.TempDir(), "conversation.json"),
		in:          strings.NewReader(input),
		out:         &out,
		errOut:      &errOut,
		you:         plain,
		assistant:   plain,
		notice:      plain,
	}, &out, &errOut
}

func TestSession_TurnsArePersisted(t *testing.T) {
	s, out, errOut := newSession(t, "hello\n\n/stats\n")
	require.NoError(t, s.loop(context.Background()))

	assert.Contains(t, out.String(), "Assistant: echo: hello")
	assert.Contains(t, out.String(), "Messages: 2 (user 1, assistant 1)")
	assert.Empty(t, errOut.String())

	loaded, err := memory.Load(s.persistPath)
	require.NoError(t, err)
	assert.Equal(t, []memory.Message{
		memory.UserMessage("hello"),
		memory.AssistantMessage("echo: hello"),
	}, loaded.Messages())
}

func TestSession_Commands(t *testing.T) {
	s, out, _ := newSession(t, "hi\n/clear\n/stats\n/models\n/bogus\n/help\n")
	require.NoError(t, s.loop(context.Background()))

	assert.Contains(t, out.String(), "Conversation cleared.")
	assert.Contains(t, out.String(), "Messages: 0 (user 0, assistant 0)")
	assert.Contains(t, out.String(), "Model listing is not supported")
	assert.Contains(t, out.String(), "Unknown command /bogus")
	assert.Contains(t, out.String(), "/models  list available models")
	assert.Equal(t, 0, s.conv.Len())
}

func TestSession_ModelsListed(t *testing.T) {
	s, out, _ := newSession(t, "/models\n")
	s.models = func(context.Context) ([]string, error) { return []string{"llama3.2", "qwen2.5"}, nil }
	require.NoError(t, s.loop(context.Background()))
	assert.Contains(t, out.String(), "  llama3.2\n  qwen2.5\n")
}

func TestSession_CancelledContextExits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, out, _ := newSession(t, "")
	s.in = blockingReader{}
	require.NoError(t, s.loop(ctx))
	assert.Contains(t, out.String(), "Exiting...")
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }

func TestCallTool(t *testing.T) {
	var out bytes.Buffer
	c := &stubClient{}
	require.NoError(t, callTool(context.Background(), c, "calculator", `{"expression":"2+3*4"}`, &out))
	assert.Equal(t, "Result: 14\n", out.String())
	assert.Equal(t, []string{"calculator map[expression:2+3*4]"}, c.calls)
}

func TestCallTool_Errors(t *testing.T) {
	var out bytes.Buffer
	err := callTool(context.Background(), &stubClient{}, "calculator", `[1,2]`, &out)
	assert.ErrorContains(t, err, "--args must be a JSON object")

	err = callTool(context.Background(), &stubClient{err: errors.New("boom")}, "calculator", `{}`, &out)
	assert.EqualError(t, err, "calculator: boom")
	assert.Empty(t, out.String())
}

func TestListTools(t *testing.T) {
	var out bytes.Buffer
	c := &stubClient{descs: []tools.Descriptor{{
		Name:        "file_writer",
		Description: "Write a file.",
		InputSchema: tools.InputSchema{Type: "object", Properties: map[string]tools.Property{
			"file_path": {Type: "string", Description: "Path."},
			"content":   {Type: "string", Description: "Text."},
		}},
	}}}
	require.NoError(t, listTools(context.Background(), c, &out))
	assert.Equal(t, "file_writer\n    Write a file.\n    - content (string): Text.\n    - file_path (string): Path.\n", out.String())
}

func TestApply(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)
	cfg = AgentCommand{Provider: "ollama", Model: "llama3.2", MCPURL: "http://127.0.0.1:8000", Conversation: "c.json"}.apply(cfg)
	assert.Equal(t, config.ProviderOllama, cfg.Provider)
	assert.Equal(t, "llama3.2", cfg.Model)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.MCPURL)
	assert.Equal(t, "c.json", cfg.ConversationPath)
	assert.Equal(t, "mcp-server", cfg.MCPCommand)
}

func TestApply_FlagRepairsInvalidEnv(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"AGT_PROVIDER": "bogus"})
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
	assert.NoError(t, AgentCommand{Provider: "ollama"}.apply(cfg).Validate())
}

func TestNewGenerator_AnthropicNeedsKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)
	_, err = newGenerator(context.Background(), cfg, &bytes.Buffer{})
	assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
}

func TestNewGenerator_OllamaUnreachable(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"AGT_PROVIDER": "ollama", "OLLAMA_URL": "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = newGenerator(context.Background(), cfg, &bytes.Buffer{})
	assert.ErrorContains(t, err, "ollama is not reachable")
}
