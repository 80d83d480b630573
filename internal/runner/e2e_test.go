package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/lager/v3/lagertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/mcp-chat/internal/fsops"
	"github.com/petasbytes/mcp-chat/internal/mcp"
	"github.com/petasbytes/mcp-chat/internal/runner"
	"github.com/petasbytes/mcp-chat/memory"
	"github.com/petasbytes/mcp-chat/tools"
)

// connect starts a stdio tool server over in-memory pipes, sandboxed to dir,
// and returns a connected client.
func connect(t *testing.T, dir string) *mcp.Client {
	t.Helper()
	fs, err := fsops.New(dir, dir)
	require.NoError(t, err)
	ex := tools.NewExecutor(tools.Default(fs), tools.WithTimeout(5*time.Second))
	d := mcp.NewDispatcher(ex, lagertest.NewTestLogger("server"))

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = mcp.NewStdioServer(d, reqR, respW, lagertest.NewTestLogger("server")).Serve(context.Background())
		respW.Close()
	}()

	client := mcp.NewClient(mcp.NewStreamConn(respR, reqW, reqW), lagertest.NewTestLogger("client"))
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() {
		client.Close()
		<-done
	})
	return client
}

func TestRunTurn_EndToEnd_ListFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "src"), 0o755))

	client := connect(t, dir)
	gen := reply("Sure.\n", `TOOL_CALL: {"name":"list_files","arguments":{"directory":"."}}`)
	var display bytes.Buffer
	r := newRunner(gen, &display, runner.WithTools(client))
	conv := memory.NewConversation()

	res, err := r.RunTurn(context.Background(), conv, "List files in .")
	require.NoError(t, err)
	require.NoError(t, res.Err)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, memory.UserMessage("List files in ."), msgs[0])
	assert.Equal(t, memory.RoleAssistant, msgs[1].Role)
	assert.True(t, strings.HasPrefix(msgs[1].Content, "Sure."))
	assert.Contains(t, msgs[1].Content, "\n\nTool results:\n[list_files] Files in '.':\n  [file] notes.txt\n  [dir] src/")

	sent := gen.lastSent()
	require.Equal(t, memory.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, "list_files")
}

func TestRunTurn_EndToEnd_ToolErrorsInline(t *testing.T) {
	client := connect(t, t.TempDir())
	gen := reply(
		`TOOL_CALL: {"name":"calculator","arguments":{"expression":"__import__('os')"}}`+"\n",
		`TOOL_CALL: {"name":"no_such_tool","arguments":{}}`+"\n",
		`TOOL_CALL: {"name":"calculator","arguments":{"expression":"sqrt(16) + 1"}}`,
	)
	var display bytes.Buffer
	r := newRunner(gen, &display, runner.WithTools(client))
	conv := memory.NewConversation()

	res, err := r.RunTurn(context.Background(), conv, "go")
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	assert.Error(t, res.Results[0].Err)
	assert.EqualError(t, res.Results[1].Err, "Unknown tool: no_such_tool")
	assert.Equal(t, "Result: 5", res.Results[2].Text)

	last, _ := conv.Last()
	assert.Contains(t, last.Content, "[no_such_tool] error: Unknown tool: no_such_tool")
	assert.Contains(t, last.Content, "[calculator] Result: 5")
}

func TestRunTurn_EmitsTurnCompleted(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGT_OBSERVE_JSON", "1")
	t.Setenv("AGT_ARTIFACTS_DIR", dir)

	client := connect(t, t.TempDir())
	gen := reply(`TOOL_CALL: {"name":"calculator","arguments":{"expression":"1+1"}}`)
	var display bytes.Buffer
	r := newRunner(gen, &display, runner.WithTools(client))

	res, err := r.RunTurn(context.Background(), memory.NewConversation(), "secret question")
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret question")

	var turn map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		if ev["event"] == "turn_completed" {
			turn = ev
		}
	}
	require.NotNil(t, turn, "no turn_completed event")
	assert.Equal(t, res.TurnID, turn["turn_id"])
	assert.Equal(t, float64(1), turn["tool_calls"])
	assert.Equal(t, false, turn["failed"])
}
