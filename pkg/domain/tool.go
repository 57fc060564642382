package domain

import (
	"fmt"
	"time"
)

// ToolContext is the sandboxing context supplied by the caller before every invocation.
// It is immutable for the duration of a call and scopes filesystem access to a single directory.
type ToolContext struct {
	UserID       string `json:"user_id" yaml:"user_id" mapstructure:"user_id"`
	DisplayName  string `json:"display_name" yaml:"display_name" mapstructure:"display_name"`
	ChannelID    string `json:"channel_id" yaml:"channel_id" mapstructure:"channel_id"`
	OutputRoot   string `json:"output_root" yaml:"output_root" mapstructure:"output_root"`
	OutputSubdir string `json:"output_subdir,omitempty" yaml:"output_subdir,omitempty" mapstructure:"output_subdir"` // Overrides the dated per-user directory
}

// Definition describes a capability to the model.
type Definition struct {
	Name        string         `json:"name" yaml:"name" mapstructure:"name"`
	Description string         `json:"description" yaml:"description" mapstructure:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters" mapstructure:"parameters"`
}

// Result is the outcome of a capability that ran.
// IsError marks a domain failure the model should read and react to.
type Result struct {
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

// Success builds a successful Result.
func Success(output string) Result {
	return Result{Output: output}
}

// Failure builds a domain failure Result.
func Failure(format string, args ...any) Result {
	return Result{Output: fmt.Sprintf(format, args...), IsError: true}
}

// Memory is a note persisted on behalf of a user.
type Memory struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
