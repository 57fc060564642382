package registry

import (
	"fmt"
	"sort"
	"strings"
)

var dangerous = map[string]struct{}{
	"shell_execute":   {},
	"execute_command": {},
	"file_delete":     {},
	"file_write":      {},
	"system_access":   {},
}

const maxPreviewLen = 200

// RequiresConfirmation reports whether a call to name must be confirmed by a human
// first. It is true only for the fixed dangerous set, and only when enabled.
func RequiresConfirmation(name string, enabled bool) bool {
	if !enabled {
		return false
	}
	_, ok := dangerous[name]
	return ok
}

// DangerousCapabilities lists the names that need confirmation, sorted.
func DangerousCapabilities() []string {
	names := make([]string, 0, len(dangerous))
	for name := range dangerous {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfirmationMessage renders the question shown to the user before a dangerous call.
func ConfirmationMessage(name string, params map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The assistant wants to run '%s'", name)

	if cmd, ok := params["command"].(string); ok && cmd != "" {
		fmt.Fprintf(&b, ":\n\n    %s\n", preview(cmd))
	} else if len(params) > 0 {
		b.WriteString(" with:\n")
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, preview(fmt.Sprint(params[k])))
		}
	} else {
		b.WriteString(".\n")
	}

	b.WriteString("Allow execution? (yes/no)")
	return b.String()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= maxPreviewLen {
		return s
	}
	return string(r[:maxPreviewLen]) + "..."
}
