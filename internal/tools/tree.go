package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/snapctx/snapctx/internal/llm"
)

const maxTreeDepth = 50

// TreeTool implements get_tree_structure. Listings honor the project's
// root .gitignore and never leave the project root.
type TreeTool struct {
	root string
}

// NewTreeTool creates a tree tool scoped to root, which must be absolute.
func NewTreeTool(root string) *TreeTool {
	return &TreeTool{root: filepath.Clean(root)}
}

// TreeArgs are the arguments for get_tree_structure.
type TreeArgs struct {
	Path string `json:"path,omitempty"`
}

func (t *TreeTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        TreeToolName,
		Description: "List the directory tree under a path inside the project. Directories come first, gitignored entries are omitted, file sizes are shown.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Directory relative to the project root (defaults to the root)",
				},
			},
			"additionalProperties": false,
		},
	}
}

func (t *TreeTool) Preview(args json.RawMessage) string {
	var a TreeArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return "."
	}
	return a.Path
}

func (t *TreeTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a TreeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	target, err := resolveWithinRoot(t.root, a.Path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("cannot stat %s: %w", a.Path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", a.Path)
	}

	matcher := loadIgnoreMatcher(t.root)

	var sb strings.Builder
	display := a.Path
	if display == "" {
		display = "."
	}
	sb.WriteString(display + "/\n")
	if err := t.writeTree(ctx, &sb, target, "", 0, matcher); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func (t *TreeTool) writeTree(ctx context.Context, sb *strings.Builder, dir, prefix string, depth int, matcher *ignoreMatcher) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth >= maxTreeDepth {
		sb.WriteString(prefix + "... (max depth reached)\n")
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		sb.WriteString(prefix + fmt.Sprintf("[error: %v]\n", err))
		return nil
	}

	// Directories first, then case-insensitive name order.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	kept := entries[:0]
	for _, e := range entries {
		rel, relErr := filepath.Rel(t.root, filepath.Join(dir, e.Name()))
		if relErr != nil {
			continue
		}
		if matcher.Ignored(rel, e.IsDir()) {
			continue
		}
		if skipFile(e) {
			continue
		}
		kept = append(kept, e)
	}

	for i, e := range kept {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(kept)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		name := e.Name()
		full := filepath.Join(dir, name)

		if e.Type()&os.ModeSymlink != 0 {
			// Symlinks are shown but never followed.
			target, linkErr := os.Readlink(full)
			if linkErr != nil {
				target = "?"
			}
			sb.WriteString(prefix + connector + name + " -> " + target + "\n")
			continue
		}

		if e.IsDir() {
			sb.WriteString(prefix + connector + name + "/\n")
			if err := t.writeTree(ctx, sb, full, childPrefix, depth+1, matcher); err != nil {
				return err
			}
			continue
		}

		size := ""
		if info, infoErr := e.Info(); infoErr == nil {
			size = " (" + humanSize(info.Size()) + ")"
		}
		sb.WriteString(prefix + connector + name + size + "\n")
	}
	return nil
}

// skipFile excludes regular files the read tool would refuse anyway:
// binary extensions and files over the read size cap.
func skipFile(e os.DirEntry) bool {
	if e.IsDir() || e.Type()&os.ModeSymlink != 0 {
		return false
	}
	if binaryExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
		return true
	}
	if info, err := e.Info(); err == nil && info.Size() > maxReadBytes {
		return true
	}
	return false
}

func humanSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKB", float64(n)/1024)
	case n < 1024*1024*1024:
		return fmt.Sprintf("%.1fMB", float64(n)/(1024*1024))
	default:
		return fmt.Sprintf("%.1fGB", float64(n)/(1024*1024*1024))
	}
}

// resolveWithinRoot joins rel onto root and rejects anything that
// escapes it, including absolute paths pointing elsewhere.
func resolveWithinRoot(root, rel string) (string, error) {
	if rel == "" || rel == "." {
		return root, nil
	}
	var clean string
	if filepath.IsAbs(rel) {
		clean = filepath.Clean(rel)
	} else {
		clean = filepath.Clean(filepath.Join(root, rel))
	}
	if clean != root && !strings.HasPrefix(clean, root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the project root", rel)
	}
	return clean, nil
}
