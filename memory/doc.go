// Package memory holds the chat conversation and its persistence.
//
// Persistence model:
//   - Only text messages are stored (role + content). Tool results are folded
//     into the assistant message that requested them.
//   - The transient tool prompt is never stored.
package memory
