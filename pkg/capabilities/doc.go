/*
Package capabilities implements the built-in sandboxed capabilities.

Every capability follows the same shape: decode and validate its parameters, apply the
sandbox path policy where the filesystem is involved, perform the operation and return
a domain.Result. Missing parameters and policy violations are returned as protocol errors
before any side effect happens; operations that ran but failed (a non-zero exit code,
an empty search, a missing file) come back as results with IsError set.

# Catalogue

  - shell_execute: run one command line in the platform shell, with a blocklist and a timeout.
  - file_read, file_write, file_edit, file_delete, file_list: plain file operations.
  - glob_search, grep_search: recursive search that skips hidden entries.
  - web_fetch: fetch a URL and reduce HTML to Markdown-like text.
  - remember, recall, forget: per-user persistent memory backed by a ports.MemoryStore.
*/
package capabilities
