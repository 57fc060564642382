/*
Package sandbox derives the single directory a capability may touch and enforces the
path policy shared by every filesystem capability.

A relative path is accepted only if it is not absolute, has no ".." segment and does not
traverse a symbolic link below the sandbox root. Capabilities never join paths themselves;
they call Resolve so the rules cannot drift between them.
*/
package sandbox
