package capabilities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/sandbox"
)

const (
	DefaultShellTimeout = 30 * time.Second
	MaxShellTimeout     = 60 * time.Second

	maxShellOutput = 64 * 1024
)

// blockedPatterns is a heuristic substring blocklist, matched case-insensitively against
// the whitespace-normalized command. It may over-block benign commands and cannot catch
// every obfuscation; it is not a shell parser.
var blockedPatterns = []string{
	// destructive filesystem operations
	"rm -rf /", "rm -rf ~", "rm -rf *", "rm -fr /", "rm -fr ~", "rm -r /",
	"--no-preserve-root", "mkfs", "dd if=", "of=/dev/", "> /dev/sd", "shred ", "wipefs",
	"chmod -r 777 /", "chown -r ",
	// fork bombs
	":(){", ":() {",
	// privilege escalation
	"sudo ", "su -", "su root", "doas ", "pkexec", "chmod +s", "chmod u+s",
	// host state
	"shutdown", "reboot", "poweroff", "init 0", "init 6", "kill -9 -1", "killall ",
	// outbound network mutation
	"curl -x post", "curl -x put", "curl -x patch", "curl -x delete", "curl -d ", "curl --data",
	"curl -f ", "curl --form", "curl -t ", "curl --upload", "wget --post", "nc -", "ncat ",
	"netcat ", "scp ", "rsync ", "ssh ", "ftp ", "telnet ",
	// command substitution
	"$(", "`", "<(", ">(",
	// obfuscated or decoded execution
	"base64 -d", "base64 --decode", "xxd -r", "| sh", "|sh", "| bash", "|bash",
	"eval ", "exec ", "python -c", "python3 -c", "perl -e", "ruby -e", "node -e", `\x`,
}

// Blocked reports the first blocklist pattern found in command.
func Blocked(command string) (string, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(command), " "))
	for _, pattern := range blockedPatterns {
		if strings.Contains(normalized, pattern) {
			return pattern, true
		}
	}
	return "", false
}

// ClampTimeout converts a requested timeout in seconds into the enforced duration.
func ClampTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return DefaultShellTimeout
	}
	d := time.Duration(seconds) * time.Second
	if d > MaxShellTimeout {
		return MaxShellTimeout
	}
	return d
}

type shellParams struct {
	Command string `json:"command" jsonschema_description:"Command line to run in the platform shell"`
	Timeout int    `json:"timeout,omitempty" jsonschema_description:"Timeout in seconds (default 30 and at most 60)"`
}

// Shell runs one command line in the caller's output directory.
type Shell struct {
	meta
	logger *slog.Logger
}

// NewShell creates the shell_execute capability.
func NewShell(logger *slog.Logger) *Shell {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Shell{
		meta: meta{
			name: "shell_execute",
			description: "Run a shell command in the user's output directory. " +
				"Destructive, privileged, networked and command-substitution constructs are rejected.",
			schema: schemaOf(&shellParams{}),
		},
		logger: logger.With("component", "shell"),
	}
}

func (s *Shell) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p shellParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("command", p.Command); err != nil {
		return domain.Result{}, err
	}

	command, err := SanitizeText(p.Command)
	if err != nil {
		return domain.Result{}, domain.InvalidParams("command: %w", err)
	}
	if pattern, blocked := Blocked(command); blocked {
		s.logger.Warn("Blocked shell command", "user_id", tc.UserID, "pattern", pattern)
		return domain.Result{}, domain.PermissionDenied("command contains blocked pattern %q", pattern)
	}

	dir, err := sandbox.EnsureOutputDir(tc)
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("%w", err)
	}

	timeout := ClampTimeout(p.Timeout)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := &cappedBuffer{limit: maxShellOutput}
	cmd := shellCommand(runCtx, command)
	cmd.Dir = dir
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		s.logger.Warn("Shell command timed out", "user_id", tc.UserID, "timeout", timeout)
		return domain.Result{}, domain.ExecutionFailed("command timed out after %s", timeout)
	}
	if ctx.Err() != nil {
		return domain.Result{}, domain.ExecutionFailed("command cancelled: %w", ctx.Err())
	}

	text := out.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.logger.Debug("Shell command failed", "user_id", tc.UserID, "exit_code", exitErr.ExitCode(), "duration", elapsed)
			return domain.Failure("Command exited with code %d\n%s", exitErr.ExitCode(), text), nil
		}
		return domain.Result{}, domain.ExecutionFailed("failed to start command: %w", err)
	}

	s.logger.Debug("Shell command completed", "user_id", tc.UserID, "duration", elapsed)
	if strings.TrimSpace(text) == "" {
		text = "(no output)"
	}
	return domain.Success(text), nil
}

// cappedBuffer keeps the first limit bytes written to it and counts the rest.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     strings.Builder
	limit   int
	dropped int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room := c.limit - c.buf.Len()
	if room >= len(p) {
		c.buf.Write(p)
		return len(p), nil
	}
	if room > 0 {
		c.buf.Write(p[:room])
	}
	c.dropped += len(p) - max(room, 0)
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped == 0 {
		return c.buf.String()
	}
	return fmt.Sprintf("%s\n[output truncated: %d more bytes]", c.buf.String(), c.dropped)
}
