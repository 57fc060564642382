package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"
	"golang.org/x/text/unicode/norm"

	"github.com/aretw0/toolbox/pkg/domain"
)

var (
	// ErrAbsolutePath is returned for paths rooted at "/" or a volume.
	ErrAbsolutePath = errors.New("absolute paths are not allowed")
	// ErrParentSegment is returned for paths containing a ".." segment.
	ErrParentSegment = errors.New("parent directory segments are not allowed")
	// ErrSymlink is returned when a path resolves through a symbolic link.
	ErrSymlink = errors.New("symbolic links are not allowed")
)

var unsafeChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// SanitizeName makes s safe to use as a single directory name component.
// Path separators and characters reserved on common filesystems become "_";
// letters outside ASCII are kept as they are (after NFC normalization).
func SanitizeName(s string) string {
	clean := unsafeChars.Replace(norm.NFC.String(s))
	if strings.Trim(clean, ".") == "" {
		// "", "." and ".." would not stay inside the parent directory.
		return strings.Repeat("_", max(len(clean), 1))
	}
	return clean
}

// OutputDir returns the effective output directory for tc as of today.
func OutputDir(tc domain.ToolContext) string {
	return OutputDirAt(tc, time.Now())
}

// OutputDirAt returns the effective output directory for tc on the given day.
// A custom subdirectory wins; otherwise the directory is root/YYYY-MM-DD/{name}_{user}.
func OutputDirAt(tc domain.ToolContext, day time.Time) string {
	if tc.OutputSubdir != "" {
		return filepath.Join(tc.OutputRoot, SanitizeName(tc.OutputSubdir))
	}
	return filepath.Join(tc.OutputRoot, day.Format(time.DateOnly), SanitizeName(tc.DisplayName+"_"+tc.UserID))
}

// EnsureOutputDir creates the effective output directory if needed and returns it.
func EnsureOutputDir(tc domain.ToolContext) (string, error) {
	dir := OutputDir(tc)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return dir, nil
}

func segments(rel string) []string {
	return strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' })
}

// ValidateRelativePath applies the path policy to rel, interpreted below root.
// Components that do not exist yet are accepted so that new files can be created.
func ValidateRelativePath(root, rel string) error {
	if strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return fmt.Errorf("%w: %s", ErrAbsolutePath, rel)
	}

	parts := segments(rel)
	for _, seg := range parts {
		if seg == ".." {
			return fmt.Errorf("%w: %s", ErrParentSegment, rel)
		}
	}

	current := root
	for _, seg := range parts {
		if seg == "." {
			continue
		}
		current = filepath.Join(current, seg)
		info, err := os.Lstat(current)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to inspect %s: %w", rel, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrSymlink, rel)
		}
	}
	return nil
}

// Resolve validates rel and returns its absolute location below root.
// Policy violations are reported as permission-denied protocol errors.
func Resolve(root, rel string) (string, error) {
	if err := ValidateRelativePath(root, rel); err != nil {
		if errors.Is(err, ErrAbsolutePath) || errors.Is(err, ErrParentSegment) || errors.Is(err, ErrSymlink) {
			return "", domain.PermissionDenied("%w", err)
		}
		return "", domain.ExecutionFailed("%w", err)
	}

	path, err := securejoin.SecureJoin(root, filepath.FromSlash(rel))
	if err != nil {
		return "", domain.PermissionDenied("%w", err)
	}
	return path, nil
}

// Rel returns path relative to root using forward slashes, for display.
func Rel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
