// Package pathutil builds result file names and keeps result writes inside
// the data directory.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for error messages.
// For example, "/home/user/.wfsim/config.yaml" becomes ".../.wfsim/config.yaml".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	base := filepath.Base(cleaned)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ParameterName joins run parameters into the stem shared by every result
// file of a run, e.g. "HSE_1000_0.01_0". Separators and whitespace inside a
// part are replaced so the stem is always a single path component.
func ParameterName(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Map(func(r rune) rune {
			switch {
			case r == '/' || r == '\\' || r == os.PathSeparator:
				return '-'
			case r == ' ' || r == '\t' || r == '\n' || r == '\x00':
				return '-'
			}
			return r
		}, strings.TrimSpace(p))
		if p == "" || p == "." || p == ".." {
			p = "-"
		}
		cleaned = append(cleaned, p)
	}
	return strings.Join(cleaned, "_")
}

// FormatValue renders a parameter in the shortest form that parses back to
// the same float64.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ValidatePath checks that path resolves inside one of allowedDirs. Symlinks
// are resolved on the deepest existing ancestor so a link inside an allowed
// directory cannot point writes elsewhere.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("path validation failed: path is empty")
	case len(allowedDirs) == 0:
		return fmt.Errorf("path validation failed: no allowed directories configured")
	case strings.ContainsRune(path, '\x00'):
		return fmt.Errorf("path validation failed: path contains null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}
	dir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("path validation failed: cannot resolve parent directory: %w", err)
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, allowed := range allowedDirs {
		allowedAbs, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		root, err := resolveExisting(allowedAbs)
		if err != nil {
			continue
		}
		if resolved == root || strings.HasPrefix(resolved, root+string(os.PathSeparator)) {
			return nil
		}
	}
	return fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(abs))
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of dir
// and re-appends the part that does not exist yet.
func resolveExisting(dir string) (string, error) {
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
		}
		tail = append(tail, filepath.Base(dir))
		dir = parent
	}
}
