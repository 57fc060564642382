/*
Package domain contains the core values shared by every part of the tool execution subsystem.

It is kept pure and free of I/O so that capabilities, the registry and the adapters
can all depend on it without pulling in each other.

# Key Entities

  - ToolContext: the per-invocation sandboxing context supplied by the caller.
  - Definition: what the model is told about a capability (name, description, JSON schema).
  - Result: the domain outcome of a capability that ran (output text plus an error flag).
  - ToolError: a protocol error, raised when a capability could not run at all.
  - Memory: a persisted note used by the remember/recall capabilities.
*/
package domain
