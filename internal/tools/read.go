package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/snapctx/snapctx/internal/llm"
)

const maxReadBytes = 100 * 1024 * 1024

var binaryExtensions = map[string]bool{
	".exe":   true,
	".bin":   true,
	".so":    true,
	".dll":   true,
	".dylib": true,
	".o":     true,
	".a":     true,
	".lib":   true,
}

// ReadFileTool implements get_file_content, scoped to the project root.
type ReadFileTool struct {
	root string
}

func NewReadFileTool(root string) *ReadFileTool {
	return &ReadFileTool{root: filepath.Clean(root)}
}

// ReadFileArgs are the arguments for get_file_content.
type ReadFileArgs struct {
	Path string `json:"path"`
}

func (t *ReadFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ReadToolName,
		Description: "Read one file's contents, verbatim. Binary files and files over 100MB are refused.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the project root",
				},
			},
			"required":             []string{"path"},
			"additionalProperties": false,
		},
	}
}

func (t *ReadFileTool) Preview(args json.RawMessage) string {
	var a ReadFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.Path
}

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a ReadFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	full, err := resolveWithinRoot(t.root, a.Path)
	if err != nil {
		return "", err
	}

	if ext := strings.ToLower(filepath.Ext(full)); binaryExtensions[ext] {
		return "", fmt.Errorf("%s is a binary file (%s), not readable as text", a.Path, ext)
	}

	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", a.Path)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, use %s instead", a.Path, TreeToolName)
	}
	if info.Size() > maxReadBytes {
		return "", fmt.Errorf("%s is too large to read (%s)", a.Path, humanSize(info.Size()))
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	if isBinaryContent(data) {
		return "", fmt.Errorf("%s appears to be a binary file", a.Path)
	}
	if len(data) == 0 {
		return "(empty file)", nil
	}
	return string(data), nil
}

// isBinaryContent detects if content is binary using http.DetectContentType.
func isBinaryContent(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}

	contentType := http.DetectContentType(sample)
	if strings.HasPrefix(contentType, "text/") {
		return false
	}
	if strings.Contains(contentType, "json") || strings.Contains(contentType, "xml") {
		return false
	}

	for _, b := range sample {
		if b == 0 {
			return true
		}
	}
	return false
}
