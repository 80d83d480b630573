// Package runner drives one chat turn at a time: it streams a reply from a
// text generator, finds tool call markers in the finished reply, runs the
// calls through a tool client and folds their results into the stored
// assistant message.
//
// Phases of a turn:
//
//	Idle -> Streaming -> Finalizing -> (ToolDispatch) -> Idle
//
// The tool prompt is added to the outbound request only; stored history
// never contains it.
package runner
