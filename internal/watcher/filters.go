package watcher

import (
	"path/filepath"
	"strings"
)

// ExtensionFilter accepts paths whose extension is one of exts. The match
// ignores case; an empty list accepts everything.
func ExtensionFilter(exts []string) FileFilter {
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		allowed[strings.ToLower(ext)] = true
	}
	return func(path string) bool {
		if len(allowed) == 0 {
			return true
		}
		return allowed[strings.ToLower(filepath.Ext(path))]
	}
}

// NoOutputFilter rejects files that a conversion wrote, so output is never
// converted again.
func NoOutputFilter(suffix string) FileFilter {
	return func(path string) bool {
		return suffix == "" || !strings.HasSuffix(path, suffix)
	}
}

// NoHiddenFilter rejects dotfiles and editor swap files.
func NoHiddenFilter(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return !strings.HasSuffix(base, "~") && !strings.HasSuffix(base, ".swp")
}

// NoGitFilter rejects anything inside a .git directory.
func NoGitFilter(path string) bool {
	slashed := filepath.ToSlash(path)
	return !strings.HasPrefix(slashed, ".git/") && !strings.Contains(slashed, "/.git/")
}

// Existing keeps events whose file can still be read: deletions and the
// old name of a rename are dropped.
func Existing(events []ChangeEvent) []ChangeEvent {
	out := make([]ChangeEvent, 0, len(events))
	for _, e := range events {
		if e.Type == EventTypeDeleted || e.Type == EventTypeRenamed {
			continue
		}
		out = append(out, e)
	}
	return out
}
