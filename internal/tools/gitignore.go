package tools

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type ignoreRule struct {
	pattern  string
	negate   bool
	dirOnly  bool
	anchored bool
}

// ignoreMatcher applies the root .gitignore to paths relative to the
// project root. .git is always ignored.
type ignoreMatcher struct {
	rules []ignoreRule
}

func loadIgnoreMatcher(root string) *ignoreMatcher {
	m := &ignoreMatcher{}
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return m
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var rule ignoreRule
		if strings.HasPrefix(line, "!") {
			rule.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			rule.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			rule.anchored = true
			line = strings.TrimPrefix(line, "/")
		} else if strings.Contains(line, "/") {
			// A slash anywhere anchors the pattern to the root.
			rule.anchored = true
		}
		if line == "" {
			continue
		}
		rule.pattern = line
		m.rules = append(m.rules, rule)
	}
	return m
}

// Ignored reports whether rel (slash-separated, relative to the root)
// is excluded. Later rules win, matching git's behavior. Callers skip
// ignored directories wholesale, so descendants are never tested.
func (m *ignoreMatcher) Ignored(rel string, isDir bool) bool {
	if rel == "" || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	if base == ".git" {
		return true
	}
	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		var matched bool
		if r.anchored {
			matched, _ = doublestar.Match(r.pattern, rel)
		} else {
			matched, _ = doublestar.Match(r.pattern, base)
			if !matched {
				matched, _ = doublestar.Match("**/"+r.pattern, rel)
			}
		}
		if matched {
			ignored = !r.negate
		}
	}
	return ignored
}
