package process

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/registry"
	"github.com/aretw0/toolbox/pkg/sandbox"
)

const (
	// DefaultTimeout bounds a script run when its declaration sets none.
	DefaultTimeout = 30 * time.Second

	// EnvArgsJSON carries every parameter as one JSON object.
	EnvArgsJSON = "TOOLBOX_ARGS"
	// EnvArgPrefix starts the per-parameter variables, e.g. TOOLBOX_ARG_QUERY.
	EnvArgPrefix = "TOOLBOX_ARG_"

	maxScriptOutput = 64 * 1024
)

var envKey = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Script runs an allow-listed local command. Parameters never reach the command line;
// they are passed as environment variables so they cannot inject flags or shell syntax.
type Script struct {
	config ScriptConfig
	logger *slog.Logger
}

var _ registry.Capability = (*Script)(nil)

// NewScript wraps one declaration.
func NewScript(config ScriptConfig, logger *slog.Logger) *Script {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Script{config: config, logger: logger.With("component", "script", "tool", config.Name)}
}

// Capabilities wraps every declaration.
func Capabilities(configs []ScriptConfig, logger *slog.Logger) []registry.Capability {
	caps := make([]registry.Capability, 0, len(configs))
	for _, c := range configs {
		caps = append(caps, NewScript(c, logger))
	}
	return caps
}

func (s *Script) Name() string { return s.config.Name }

func (s *Script) Description() string {
	if s.config.Description != "" {
		return s.config.Description
	}
	return "Runs the local script " + s.config.Name
}

func (s *Script) Schema() map[string]any {
	if s.config.Parameters != nil {
		return s.config.Parameters
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (s *Script) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	command, args := s.config.Command, s.config.Args
	if len(args) == 0 {
		words, err := shellwords.Parse(command)
		if err != nil || len(words) == 0 {
			return domain.Result{}, domain.ExecutionFailed("invalid command for %s: %q", s.config.Name, command)
		}
		command, args = words[0], words[1:]
	}

	env, err := argEnv(params)
	if err != nil {
		return domain.Result{}, err
	}
	for k, v := range s.config.Environment {
		env = append(env, k+"="+v)
	}

	dir, err := sandbox.EnsureOutputDir(tc)
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("%w", err)
	}

	timeout := DefaultTimeout
	if s.config.TimeoutSeconds > 0 {
		timeout = time.Duration(s.config.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Dir = dir
	cmd.Env = append(cmd.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return domain.Result{}, domain.ExecutionFailed("%s timed out after %s", s.config.Name, timeout)
	}
	if ctx.Err() != nil {
		return domain.Result{}, domain.ExecutionFailed("%s cancelled: %w", s.config.Name, ctx.Err())
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			s.logger.Debug("Script failed", "user_id", tc.UserID, "exit_code", exitErr.ExitCode())
			return domain.Failure("%s exited with code %d\n%s", s.config.Name, exitErr.ExitCode(), truncate(stderr.String()+stdout.String())), nil
		}
		return domain.Failure("%s could not start: %v", s.config.Name, err), nil
	}

	s.logger.Debug("Script completed", "user_id", tc.UserID, "duration", time.Since(start))
	out := strings.TrimSpace(stdout.String())
	if out == "" {
		out = "(no output)"
	}
	return domain.Success(truncate(out)), nil
}

// argEnv turns params into TOOLBOX_ARG_<KEY> variables plus the TOOLBOX_ARGS JSON blob.
// Scalars are formatted as-is; maps and slices are JSON encoded.
func argEnv(params map[string]any) ([]string, error) {
	all, err := json.Marshal(params)
	if err != nil {
		return nil, domain.InvalidParams("parameters are not JSON encodable: %w", err)
	}
	env := []string{EnvArgsJSON + "=" + string(all)}

	for k, v := range params {
		if !envKey.MatchString(k) {
			return nil, domain.InvalidParams("parameter name %q must be alphanumeric", k)
		}
		var val string
		switch v.(type) {
		case string, bool, int, int64, float64, json.Number:
			val = fmt.Sprint(v)
		case nil:
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return nil, domain.InvalidParams("parameter %s: %w", k, err)
			}
			val = string(b)
		}
		env = append(env, EnvArgPrefix+strings.ToUpper(k)+"="+val)
	}
	return env, nil
}

func truncate(s string) string {
	if len(s) <= maxScriptOutput {
		return s
	}
	return s[:maxScriptOutput] + fmt.Sprintf("\n... [truncated, %d more bytes]", len(s)-maxScriptOutput)
}
