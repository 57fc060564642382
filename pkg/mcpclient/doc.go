// Package mcpclient talks to external capability servers over the Model Context Protocol.
//
// A Config holds the server declarations and global settings. A Pool owns at most one
// live connection per server, reusing it while it stays inside the idle window and
// respawning it afterwards. A Client discovers the tools of every enabled server, caches
// them under namespaced names (mcp_<server>_<tool>) and forwards invocations through the
// pool. Capability adapts a cached tool to the registry.Capability interface so external
// tools dispatch exactly like built-in ones.
package mcpclient
