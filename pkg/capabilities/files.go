package capabilities

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/sandbox"
)

const maxReadBytes = 256 * 1024

// resolve applies the path policy to rel inside the caller's output directory.
func resolve(tc domain.ToolContext, rel string) (root, path string, err error) {
	root, err = sandbox.EnsureOutputDir(tc)
	if err != nil {
		return "", "", domain.ExecutionFailed("%w", err)
	}
	path, err = sandbox.Resolve(root, rel)
	if err != nil {
		return "", "", err
	}
	return root, path, nil
}

type readParams struct {
	Path   string `json:"path" jsonschema_description:"File path relative to the output directory"`
	Offset int    `json:"offset,omitempty" jsonschema_description:"First line to return (1-based)"`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum number of lines to return"`
}

// FileRead returns the content of a file.
type FileRead struct{ meta }

func NewFileRead() *FileRead {
	return &FileRead{meta{
		name:        "file_read",
		description: "Read a text file from the output directory, optionally a window of lines.",
		schema:      schemaOf(&readParams{}),
	}}
}

func (c *FileRead) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p readParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("path", p.Path); err != nil {
		return domain.Result{}, err
	}
	if p.Offset < 0 || p.Limit < 0 {
		return domain.Result{}, domain.InvalidParams("offset and limit must not be negative")
	}
	_, path, err := resolve(tc, p.Path)
	if err != nil {
		return domain.Result{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Failure("File not found: %s", p.Path), nil
		}
		return domain.Result{}, domain.ExecutionFailed("opening %s: %w", p.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("stat %s: %w", p.Path, err)
	}
	if info.IsDir() {
		return domain.Failure("%s is a directory; use file_list instead", p.Path), nil
	}

	data, err := io.ReadAll(io.LimitReader(f, maxReadBytes))
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("reading %s: %w", p.Path, err)
	}
	content := string(data)

	if p.Offset > 0 || p.Limit > 0 {
		lines := strings.Split(content, "\n")
		start := max(p.Offset-1, 0)
		if start >= len(lines) {
			return domain.Failure("%s has only %d lines", p.Path, len(lines)), nil
		}
		end := len(lines)
		if p.Limit > 0 {
			end = min(start+p.Limit, len(lines))
		}
		content = strings.Join(lines[start:end], "\n")
	}

	if info.Size() > maxReadBytes {
		content += fmt.Sprintf("\n[file truncated: showing first %d of %d bytes]", maxReadBytes, info.Size())
	}
	return domain.Success(content), nil
}

type writeParams struct {
	Path    string `json:"path" jsonschema_description:"File path relative to the output directory"`
	Content string `json:"content" jsonschema_description:"Text to write"`
	Append  bool   `json:"append,omitempty" jsonschema_description:"Append instead of overwriting"`
}

// FileWrite creates or overwrites a file.
type FileWrite struct{ meta }

func NewFileWrite() *FileWrite {
	return &FileWrite{meta{
		name:        "file_write",
		description: "Create or overwrite a text file in the output directory. Parent directories are created.",
		schema:      schemaOf(&writeParams{}),
	}}
}

func (c *FileWrite) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p writeParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("path", p.Path); err != nil {
		return domain.Result{}, err
	}
	if _, ok := params["content"]; !ok {
		return domain.Result{}, domain.InvalidParams("missing required parameter %q", "content")
	}
	_, path, err := resolve(tc, p.Path)
	if err != nil {
		return domain.Result{}, err
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return domain.Failure("%s is a directory", p.Path), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.Result{}, domain.ExecutionFailed("creating parent of %s: %w", p.Path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if p.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("opening %s: %w", p.Path, err)
	}
	n, err := f.WriteString(p.Content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("writing %s: %w", p.Path, err)
	}
	return domain.Success(fmt.Sprintf("Wrote %d bytes to %s", n, p.Path)), nil
}

type editParams struct {
	Path       string `json:"path" jsonschema_description:"File path relative to the output directory"`
	OldText    string `json:"old_text" jsonschema_description:"Exact text to replace"`
	NewText    string `json:"new_text,omitempty" jsonschema_description:"Replacement text"`
	ReplaceAll bool   `json:"replace_all,omitempty" jsonschema_description:"Replace every occurrence instead of requiring a unique match"`
}

// FileEdit replaces text inside an existing file.
type FileEdit struct{ meta }

func NewFileEdit() *FileEdit {
	return &FileEdit{meta{
		name: "file_edit",
		description: "Replace text in an existing file. Without replace_all the text must occur exactly once; " +
			"ambiguous matches are rejected with the number of occurrences.",
		schema: schemaOf(&editParams{}),
	}}
}

func (c *FileEdit) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p editParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("path", p.Path); err != nil {
		return domain.Result{}, err
	}
	if p.OldText == "" {
		return domain.Result{}, domain.InvalidParams("missing required parameter %q", "old_text")
	}
	_, path, err := resolve(tc, p.Path)
	if err != nil {
		return domain.Result{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Failure("File not found: %s", p.Path), nil
		}
		return domain.Result{}, domain.ExecutionFailed("stat %s: %w", p.Path, err)
	}
	if info.IsDir() {
		return domain.Failure("%s is a directory", p.Path), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Result{}, domain.ExecutionFailed("reading %s: %w", p.Path, err)
	}
	content := string(data)

	count := strings.Count(content, p.OldText)
	switch {
	case count == 0:
		return domain.Failure("Text not found in %s", p.Path), nil
	case count > 1 && !p.ReplaceAll:
		return domain.Failure("Text appears %d times in %s; add surrounding context to make it unique or set replace_all", count, p.Path), nil
	}

	var updated string
	if p.ReplaceAll {
		updated = strings.ReplaceAll(content, p.OldText, p.NewText)
	} else {
		updated = strings.Replace(content, p.OldText, p.NewText, 1)
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return domain.Result{}, domain.ExecutionFailed("writing %s: %w", p.Path, err)
	}
	return domain.Success(fmt.Sprintf("Replaced %d occurrence(s) in %s", count, p.Path)), nil
}

type deleteParams struct {
	Path string `json:"path" jsonschema_description:"File path relative to the output directory"`
}

// FileDelete removes a single file.
type FileDelete struct{ meta }

func NewFileDelete() *FileDelete {
	return &FileDelete{meta{
		name:        "file_delete",
		description: "Delete a file from the output directory. Directories are never deleted.",
		schema:      schemaOf(&deleteParams{}),
	}}
}

func (c *FileDelete) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p deleteParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("path", p.Path); err != nil {
		return domain.Result{}, err
	}
	_, path, err := resolve(tc, p.Path)
	if err != nil {
		return domain.Result{}, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Failure("File not found: %s", p.Path), nil
		}
		return domain.Result{}, domain.ExecutionFailed("stat %s: %w", p.Path, err)
	}
	if info.IsDir() {
		return domain.Failure("%s is a directory; only files can be deleted", p.Path), nil
	}
	if err := os.Remove(path); err != nil {
		return domain.Result{}, domain.ExecutionFailed("deleting %s: %w", p.Path, err)
	}
	return domain.Success("Deleted " + p.Path), nil
}

type listParams struct {
	Path string `json:"path,omitempty" jsonschema_description:"Directory relative to the output directory (default: the output directory itself)"`
}

// FileList enumerates one directory level. Hidden entries are included.
type FileList struct{ meta }

func NewFileList() *FileList {
	return &FileList{meta{
		name:        "file_list",
		description: "List one level of a directory: sub-directories first (suffixed with /), then files.",
		schema:      schemaOf(&listParams{}),
	}}
}

func (c *FileList) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p listParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if p.Path == "" {
		p.Path = "."
	}
	_, path, err := resolve(tc, p.Path)
	if err != nil {
		return domain.Result{}, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Failure("Directory not found: %s", p.Path), nil
		}
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) && !isDir(path) {
			return domain.Failure("%s is not a directory", p.Path), nil
		}
		return domain.Result{}, domain.ExecutionFailed("listing %s: %w", p.Path, err)
	}

	return domain.Success(formatListing(entries)), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func formatListing(entries []fs.DirEntry) string {
	var dirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name()+"/")
		} else {
			files = append(files, e.Name())
		}
	}
	if len(dirs)+len(files) == 0 {
		return "(empty directory)"
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return strings.Join(append(dirs, files...), "\n")
}
