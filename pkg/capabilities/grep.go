package capabilities

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/sandbox"
)

const (
	maxGrepResults = 100
	maxGrepLineLen = 500
	binarySniffLen = 8000
)

type grepParams struct {
	Pattern         string `json:"pattern" jsonschema_description:"Regular expression (RE2 syntax)"`
	Path            string `json:"path,omitempty" jsonschema_description:"File or directory to search (default: the output directory)"`
	CaseInsensitive bool   `json:"case_insensitive,omitempty" jsonschema_description:"Ignore case when matching"`
	Extension       string `json:"extension,omitempty" jsonschema_description:"Only search files with this extension (for example go or .md)"`
}

// GrepSearch searches file contents with a regular expression.
type GrepSearch struct{ meta }

func NewGrepSearch() *GrepSearch {
	return &GrepSearch{meta{
		name: "grep_search",
		description: fmt.Sprintf("Search file contents with a regular expression and return path:line:text "+
			"for each matching line (at most %d). Hidden entries and symbolic links are skipped.", maxGrepResults),
		schema: schemaOf(&grepParams{}),
	}}
}

func (c *GrepSearch) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p grepParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("pattern", p.Pattern); err != nil {
		return domain.Result{}, err
	}
	expr := p.Pattern
	if p.CaseInsensitive {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return domain.Result{}, domain.InvalidParams("invalid pattern: %v", err)
	}
	if p.Path == "" {
		p.Path = "."
	}
	ext := p.Extension
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	root, base, err := resolve(tc, p.Path)
	if err != nil {
		return domain.Result{}, err
	}

	var results []string
	total := 0
	walkErr := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == base {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != base && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}
		if ext != "" && !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}

		rel := sandbox.Rel(root, path)
		return grepFile(path, rel, re, func(line string) {
			total++
			if len(results) < maxGrepResults {
				results = append(results, line)
			}
		})
	})
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return domain.Failure("Path not found: %s", p.Path), nil
		}
		return domain.Result{}, domain.ExecutionFailed("searching %s: %w", p.Path, walkErr)
	}

	if total == 0 {
		return domain.Failure("No matches for %q in %s", p.Pattern, p.Path), nil
	}
	out := strings.Join(results, "\n")
	if extra := total - len(results); extra > 0 {
		out += fmt.Sprintf("\n... +%d more matches", extra)
	}
	return domain.Success(out), nil
}

func grepFile(path, rel string, re *regexp.Regexp, emit func(string)) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	head, _ := reader.Peek(binarySniffLen)
	if bytes.IndexByte(head, 0) >= 0 {
		return nil
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if !re.MatchString(text) {
			continue
		}
		if r := []rune(text); len(r) > maxGrepLineLen {
			text = string(r[:maxGrepLineLen]) + "..."
		}
		emit(fmt.Sprintf("%s:%d:%s", rel, lineNo, text))
	}
	// Lines over the scanner limit end the scan for that file; earlier matches stand.
	return nil
}
