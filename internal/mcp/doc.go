// Package mcp implements the tool-invocation protocol: JSON-RPC 2.0 messages,
// a per-session dispatcher, newline-delimited stdio and SSE transports, and a
// client for both transports.
//
// Session lifecycle:
//
//	Uninitialized --initialize--> Ready --Close--> Closed
//
// Every request carrying an id gets exactly one response echoing that id
// verbatim. Requests without an id are answered with id "unknown", except
// notifications (methods under "notifications/"), which get no response.
package mcp
