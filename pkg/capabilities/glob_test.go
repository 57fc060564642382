package capabilities_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/aretw0/toolbox/pkg/capabilities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.txt", "test.txt", true},
		{"*.rs", "test.txt", false},
		{"src/*.rs", "src/main.rs", true},
		{"**/*.rs", "src/main.rs", true},
		{"**/*.rs", "lib/test/mod.rs", true},
		{"**/*.rs", "main.rs", true},
		{"*.rs", "src/main.rs", false},
		{"src/*.rs", "src/a/main.rs", false},
		{"src/**/*.rs", "src/a/main.rs", true},
		{"src?main.rs", "src/main.rs", false},
		{"src/**", "src/a/b/c.go", true},
		{"src/**/c.go", "src/c.go", true},
		{"file?.md", "file1.md", true},
		{"file?.md", "file10.md", false},
		{"?", "/", false},
		{"", "", true},
		{"résumé-*.pdf", "résumé-2024.pdf", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s~%s", tt.pattern, tt.name), func(t *testing.T) {
			assert.Equal(t, tt.want, capabilities.MatchGlob(tt.pattern, tt.name))
		})
	}
}

func TestGlobSearch_SortedAndSkipsHidden(t *testing.T) {
	tc := newToolContext(t)
	writeFixture(t, tc, "src/main.rs", "")
	writeFixture(t, tc, "lib/test/mod.rs", "")
	writeFixture(t, tc, "a.rs", "")
	writeFixture(t, tc, ".git/hook.rs", "")
	writeFixture(t, tc, "src/.hidden.rs", "")
	writeFixture(t, tc, "readme.md", "")

	res, err := run(t, capabilities.NewGlobSearch(), map[string]any{"pattern": "**/*.rs"}, tc)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "a.rs\nlib/test/mod.rs\nsrc/main.rs", res.Output)
}

func TestGlobSearch_Subdirectory(t *testing.T) {
	tc := newToolContext(t)
	writeFixture(t, tc, "src/main.rs", "")
	writeFixture(t, tc, "other/main.rs", "")

	res, err := run(t, capabilities.NewGlobSearch(), map[string]any{"pattern": "*.rs", "path": "src"}, tc)
	require.NoError(t, err)
	assert.Equal(t, "main.rs", res.Output)
}

func TestGlobSearch_NoMatches(t *testing.T) {
	tc := newToolContext(t)
	writeFixture(t, tc, "a.txt", "")

	res, err := run(t, capabilities.NewGlobSearch(), map[string]any{"pattern": "*.go"}, tc)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Output, "No files match")
}

func TestGlobSearch_Cap(t *testing.T) {
	tc := newToolContext(t)
	for i := 0; i < 1005; i++ {
		writeFixture(t, tc, fmt.Sprintf("f%04d.txt", i), "")
	}

	res, err := run(t, capabilities.NewGlobSearch(), map[string]any{"pattern": "*.txt"}, tc)
	require.NoError(t, err)
	lines := strings.Split(res.Output, "\n")
	require.Len(t, lines, 1001)
	assert.Equal(t, "... +5 more", lines[1000])
}
