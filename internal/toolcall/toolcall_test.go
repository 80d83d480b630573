package toolcall_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/mcp-chat/internal/toolcall"
)

func TestExtract_GoodAndMalformed(t *testing.T) {
	text := "Let me check.\n" +
		`TOOL_CALL: {"name":"calculator","arguments":{"expression":"2+2"}}` + "\n" +
		`TOOL_CALL: {"name": "calculator", "arguments": {"expression": ` + "\n" +
		"Done."

	calls := toolcall.Extract(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "calculator", calls[0].Name)
	assert.Equal(t, map[string]any{"expression": "2+2"}, calls[0].Arguments)
}

func TestExtract_Cases(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []toolcall.Call
	}{
		{"no markers", "just prose\nmore prose", nil},
		{"empty", "", nil},
		{
			"indented marker",
			"  \tTOOL_CALL: {\"name\":\"system_info\",\"arguments\":{\"info_type\":\"time\"}}",
			[]toolcall.Call{{Name: "system_info", Arguments: map[string]any{"info_type": "time"}}},
		},
		{
			"absent arguments",
			`TOOL_CALL: {"name":"list_files"}`,
			[]toolcall.Call{{Name: "list_files", Arguments: map[string]any{}}},
		},
		{
			"null arguments",
			`TOOL_CALL: {"name":"list_files","arguments":null}`,
			[]toolcall.Call{{Name: "list_files", Arguments: map[string]any{}}},
		},
		{
			"numbers and nesting",
			`TOOL_CALL: {"name":"x","arguments":{"n":3,"f":1.5,"o":{"k":[1,"a"]}}}`,
			[]toolcall.Call{{Name: "x", Arguments: map[string]any{
				"n": float64(3),
				"f": 1.5,
				"o": map[string]any{"k": []any{float64(1), "a"}},
			}}},
		},
		{"arguments not object", `TOOL_CALL: {"name":"x","arguments":[1]}`, nil},
		{"name not string", `TOOL_CALL: {"name":7,"arguments":{}}`, nil},
		{"empty name", `TOOL_CALL: {"name":"","arguments":{}}`, nil},
		{"payload not object", `TOOL_CALL: ["calculator"]`, nil},
		{"marker mid-line", `I would write TOOL_CALL: {"name":"x"} here`, nil},
		{"lowercase marker", `tool_call: {"name":"x"}`, nil},
		{
			"order preserved",
			"TOOL_CALL: {\"name\":\"b\"}\nprose\nTOOL_CALL: {\"name\":\"a\"}",
			[]toolcall.Call{{Name: "b", Arguments: map[string]any{}}, {Name: "a", Arguments: map[string]any{}}},
		},
		{
			"crlf line endings",
			"TOOL_CALL: {\"name\":\"a\"}\r\nok",
			[]toolcall.Call{{Name: "a", Arguments: map[string]any{}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toolcall.Extract(tt.text))
		})
	}
}

func TestExtract_Restartable(t *testing.T) {
	text := `TOOL_CALL: {"name":"calculator","arguments":{"expression":"1"}}`
	assert.Equal(t, toolcall.Extract(text), toolcall.Extract(text))
}

func TestFormatCall_InverseOfExtract(t *testing.T) {
	c := toolcall.Call{Name: "file_writer", Arguments: map[string]any{"file_path": "a.txt", "content": "line1\nline2"}}
	line := toolcall.FormatCall(c)
	assert.NotContains(t, line, "\n")

	got := toolcall.Extract("prose\n" + line)
	require.Len(t, got, 1)
	assert.Equal(t, c, got[0])
}

func TestFormatCall_NilArguments(t *testing.T) {
	assert.Equal(t, `TOOL_CALL: {"name":"list_files","arguments":{}}`, toolcall.FormatCall(toolcall.Call{Name: "list_files"}))
}
