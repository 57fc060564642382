package capabilities

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/aretw0/toolbox/pkg/sandbox"
)

const maxGlobResults = 1000

// MatchGlob reports whether name (slash separated) matches pattern.
//
//	*   any run of characters inside one path segment, including none
//	?   exactly one character other than /
//	**  any run of characters across segments; a following / is optional
func MatchGlob(pattern, name string) bool {
	return matchRunes([]rune(pattern), []rune(name))
}

func matchRunes(pattern, name []rune) bool {
	for len(pattern) > 0 {
		switch {
		case len(pattern) >= 2 && pattern[0] == '*' && pattern[1] == '*':
			rest := pattern[2:]
			if len(rest) > 0 && rest[0] == '/' {
				rest = rest[1:]
			}
			for i := 0; i <= len(name); i++ {
				if matchRunes(rest, name[i:]) {
					return true
				}
			}
			return false

		case pattern[0] == '*':
			if matchRunes(pattern[1:], name) {
				return true
			}
			if len(name) > 0 && name[0] != '/' {
				return matchRunes(pattern, name[1:])
			}
			return false

		case pattern[0] == '?':
			if len(name) == 0 || name[0] == '/' {
				return false
			}

		default:
			if len(name) == 0 || name[0] != pattern[0] {
				return false
			}
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

type globParams struct {
	Pattern string `json:"pattern" jsonschema_description:"Glob pattern such as *.go or src/**/*.rs"`
	Path    string `json:"path,omitempty" jsonschema_description:"Directory to search from (default: the output directory)"`
}

// GlobSearch finds files by pattern below a directory.
type GlobSearch struct{ meta }

func NewGlobSearch() *GlobSearch {
	return &GlobSearch{meta{
		name: "glob_search",
		description: "Find files whose path relative to the search directory matches a glob pattern. " +
			"Supports *, ? and ** (across directories). Hidden entries are skipped.",
		schema: schemaOf(&globParams{}),
	}}
}

func (c *GlobSearch) Execute(ctx context.Context, params map[string]any, tc domain.ToolContext) (domain.Result, error) {
	var p globParams
	if err := decode(params, &p); err != nil {
		return domain.Result{}, err
	}
	if err := required("pattern", p.Pattern); err != nil {
		return domain.Result{}, err
	}
	if p.Path == "" {
		p.Path = "."
	}
	_, base, err := resolve(tc, p.Path)
	if err != nil {
		return domain.Result{}, err
	}
	pattern := filepath.ToSlash(p.Pattern)

	var matches []string
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
		if d.IsDir() {
			return nil
		}
		rel := sandbox.Rel(base, path)
		if MatchGlob(pattern, rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if walkErr != nil {
		if errors.Is(walkErr, fs.ErrNotExist) {
			return domain.Failure("Directory not found: %s", p.Path), nil
		}
		return domain.Result{}, domain.ExecutionFailed("searching %s: %w", p.Path, walkErr)
	}

	if len(matches) == 0 {
		return domain.Failure("No files match %q in %s", p.Pattern, p.Path), nil
	}
	sort.Strings(matches)

	var b strings.Builder
	shown := matches
	if len(shown) > maxGlobResults {
		shown = shown[:maxGlobResults]
	}
	b.WriteString(strings.Join(shown, "\n"))
	if extra := len(matches) - len(shown); extra > 0 {
		fmt.Fprintf(&b, "\n... +%d more", extra)
	}
	return domain.Success(b.String()), nil
}
