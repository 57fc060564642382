/*
Package ports defines the driven ports (interfaces) of the tool execution subsystem.

These interfaces decouple capabilities from storage backends so the same remember/recall
capabilities work against memory, files, redis or sqlite.

# Key Interfaces

  - MemoryStore: persists per-user notes for the remember/recall/forget capabilities.
*/
package ports
