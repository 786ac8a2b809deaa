package exec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// NewFileTool returns a tool for file operations inside workingDir. Paths
// in params resolve relative to workingDir and may not escape it.
func NewFileTool(workingDir string) *Tool {
	return &Tool{
		Name: "file",
		Description: "Handles file operations inside the project directory. " +
			"Params: operation (read, write, append, list, delete, exists, mkdir), " +
			"path (required), content (for write and append).",
		Execute: func(ctx context.Context, params map[string]string) (string, error) {
			return runFileOperation(params, workingDir)
		},
	}
}

func runFileOperation(params map[string]string, workingDir string) (string, error) {
	operation := params["operation"]
	if operation == "" {
		return "", fmt.Errorf("operation is required")
	}

	path, err := resolvePath(workingDir, params["path"])
	if err != nil {
		return "", err
	}

	switch operation {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", params["path"], err)
		}
		return string(data), nil

	case "write":
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("failed to create parent directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(params["content"]), 0644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", params["path"], err)
		}
		return fmt.Sprintf("Wrote %d bytes to %s", len(params["content"]), params["path"]), nil

	case "append":
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return "", fmt.Errorf("failed to open %s: %w", params["path"], err)
		}
		defer f.Close()
		if _, err := f.WriteString(params["content"]); err != nil {
			return "", fmt.Errorf("failed to append to %s: %w", params["path"], err)
		}
		return fmt.Sprintf("Appended %d bytes to %s", len(params["content"]), params["path"]), nil

	case "list":
		entries, err := os.ReadDir(path)
		if err != nil {
			return "", fmt.Errorf("failed to list %s: %w", params["path"], err)
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		return strings.Join(names, "\n"), nil

	case "delete":
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("failed to delete %s: %w", params["path"], err)
		}
		return fmt.Sprintf("Deleted %s", params["path"]), nil

	case "exists":
		if _, err := os.Stat(path); err != nil {
			return "false", nil
		}
		return "true", nil

	case "mkdir":
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("failed to create %s: %w", params["path"], err)
		}
		return fmt.Sprintf("Created directory %s", params["path"]), nil

	default:
		return "", fmt.Errorf("unknown operation: %s", operation)
	}
}

// resolvePath joins the path onto workingDir and rejects escapes.
func resolvePath(workingDir, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(workingDir, path)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(workingDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes working directory: %s", path)
	}
	return full, nil
}
