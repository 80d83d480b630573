// Package tools defines the tool catalogue and its executor.
//
// Includes:
//   - Definition: name, description, JSON input schema, handler.
//   - GenerateSchema[T](): derive an input schema from a Go struct.
//   - Registry: ordered, name-unique catalogue (Describe, Lookup).
//   - Executor: argument validation, timeout and typed failures
//     (UnknownToolError, InvalidArgumentsError, ExecutionFailureError).
//   - Tools: calculator, file_reader, file_writer, list_files, system_info.
package tools
