package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmEnabled(t *testing.T) {
	t.Setenv(EnvConfirm, "false")
	assert.False(t, ConfirmEnabled(true))

	t.Setenv(EnvConfirm, "1")
	assert.True(t, ConfirmEnabled(false))

	t.Setenv(EnvConfirm, "maybe")
	assert.True(t, ConfirmEnabled(true))
}

func TestPromptConfirmer_Answers(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			confirm := PromptConfirmer(strings.NewReader(tt.input), &out, true)

			ok, err := confirm(context.Background(), registry.Call{Name: "shell_execute"}, "Run `ls`?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), "Run `ls`?")
		})
	}
}

func TestPromptConfirmer_DeniesWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	confirm := PromptConfirmer(strings.NewReader("y\n"), &out, false)

	ok, err := confirm(context.Background(), registry.Call{Name: "file_delete"}, "Delete?")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "file_delete")
}

type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	time.Sleep(time.Hour)
	return 0, nil
}

func TestPromptConfirmer_HonorsContext(t *testing.T) {
	var out bytes.Buffer
	confirm := PromptConfirmer(blockingReader{}, &out, true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ok, err := confirm(ctx, registry.Call{Name: "shell_execute"}, "Run?")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	PrintResult(&buf, domain.Success("plain output\n"), false)
	assert.Equal(t, "plain output\n", buf.String())

	buf.Reset()
	PrintResult(&buf, domain.Failure("boom %d", 1), false)
	assert.Contains(t, buf.String(), "boom 1")
}

func TestNewLogger_EmptyLevelIsSilent(t *testing.T) {
	logger := NewLogger("", false)
	assert.False(t, logger.Enabled(context.Background(), -100))
	assert.True(t, NewLogger("debug", true).Enabled(context.Background(), -4))
}
