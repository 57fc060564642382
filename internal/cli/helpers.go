package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/aretw0/toolbox/internal/logging"
	"github.com/aretw0/toolbox/internal/presentation/tui"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/registry"
)

// EnvConfirm toggles the confirmation gate for dangerous capabilities.
const EnvConfirm = "TOOLBOX_CONFIRM"

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	once   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sc.sigCh:
			sc.mu.Lock()
			sc.sigVal = sig
			sc.mu.Unlock()
			sc.Cancel()
		case <-sc.Context.Done():
		}
		sc.once.Do(func() {
			signal.Stop(sc.sigCh)
		})
	}()

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// NewLogger configures the application logger. Logs always go to stderr so stdout
// stays free for tool output and the stdio MCP transport.
func NewLogger(level string, jsonFormat bool) *slog.Logger {
	if level == "" {
		return logging.NewNop()
	}
	if jsonFormat {
		return logging.NewJSON(os.Stderr, logging.ParseLevel(level))
	}
	return logging.New(logging.ParseLevel(level))
}

// ConfirmEnabled reports whether dangerous capabilities need confirmation.
// EnvConfirm, when set to a boolean, overrides def.
func ConfirmEnabled(def bool) bool {
	v, ok := os.LookupEnv(EnvConfirm)
	if !ok {
		return def
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return enabled
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f any) bool {
	file, ok := f.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

// PromptConfirmer asks on out and reads a y/N answer from in.
// When in is not a terminal and interactive is false, every request is denied.
func PromptConfirmer(in io.Reader, out io.Writer, interactive bool) registry.Confirmer {
	reader := bufio.NewReader(in)
	var mu sync.Mutex
	return func(ctx context.Context, call registry.Call, message string) (bool, error) {
		if !interactive && !IsTerminal(in) {
			fmt.Fprintln(out, tui.Faint(fmt.Sprintf("Denied '%s': no terminal to confirm on.", call.Name)))
			return false, nil
		}

		mu.Lock()
		defer mu.Unlock()

		fmt.Fprintf(out, "%s\n%s ", message, tui.Bold("Allow? [y/N]"))
		answer := make(chan string, 1)
		go func() {
			line, _ := reader.ReadString('\n')
			answer <- line
		}()

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case line := <-answer:
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "y", "yes":
				return true, nil
			}
			return false, nil
		}
	}
}

// PrintResult writes a capability result. Successful output is rendered as
// Markdown when render is set.
func PrintResult(w io.Writer, res domain.Result, render bool) {
	if res.IsError {
		fmt.Fprintln(w, tui.Error(res.Output))
		return
	}
	out := res.Output
	if render {
		if rendered, err := tui.NewRenderer()(out); err == nil {
			out = rendered
		}
	}
	fmt.Fprintln(w, strings.TrimRight(out, "\n"))
}
