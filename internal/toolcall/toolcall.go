// Package toolcall finds tool invocation requests embedded in model output.
//
// A request is a single line of the form
//
//	TOOL_CALL: {"name": "calculator", "arguments": {"expression": "2+2"}}
//
// Leading whitespace before the marker is ignored. Lines whose payload is not
// a JSON object with a string name are skipped.
package toolcall

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Marker prefixes a tool call line.
const Marker = "TOOL_CALL:"

// Call is one requested tool invocation.
type Call struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Extract returns the calls in text in order of appearance.
func Extract(text string) []Call {
	var calls []Call
	for _, line := range strings.Split(text, "\n") {
		if c, ok := parseLine(line); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

func parseLine(line string) (Call, bool) {
	line = strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(line, Marker) {
		return Call{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, Marker))
	if !gjson.Valid(payload) {
		return Call{}, false
	}
	doc := gjson.Parse(payload)
	if !doc.IsObject() {
		return Call{}, false
	}

	name := doc.Get("name")
	if name.Type != gjson.String || name.String() == "" {
		return Call{}, false
	}

	call := Call{Name: name.String(), Arguments: map[string]any{}}
	switch args := doc.Get("arguments"); {
	case !args.Exists(), args.Type == gjson.Null:
	case args.IsObject():
		m, ok := args.Value().(map[string]any)
		if !ok {
			return Call{}, false
		}
		call.Arguments = m
	default:
		return Call{}, false
	}
	return call, true
}

// FormatCall renders c as a marker line, the inverse of Extract.
func FormatCall(c Call) string {
	if c.Arguments == nil {
		c.Arguments = map[string]any{}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return Marker + ` {"name":` + jsonString(c.Name) + `,"arguments":{}}`
	}
	return Marker + " " + string(b)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
