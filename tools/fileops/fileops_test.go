package fileops

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStatFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	tool := New(dir)
	args, _ := json.Marshal(map[string]string{"path": "a.txt"})
	result, err := tool.Execute(context.Background(), "stat_file", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result.Output, `"size":5`) || !strings.Contains(result.Output, `"type":"file"`) {
		t.Fatalf("unexpected stat output: %q", result.Output)
	}
}

func TestStatFile_PathEscape(t *testing.T) {
	dir := t.TempDir()
	tool := New(dir)
	args, _ := json.Marshal(map[string]string{"path": "../../etc/passwd"})
	result, _ := tool.Execute(context.Background(), "stat_file", args)
	if !strings.Contains(result.Output, "error:") {
		t.Fatalf("expected path-escape error, got %q", result.Output)
	}
}

func TestStatFile_Missing(t *testing.T) {
	dir := t.TempDir()
	tool := New(dir)
	args, _ := json.Marshal(map[string]string{"path": "missing.txt"})
	result, _ := tool.Execute(context.Background(), "stat_file", args)
	if !strings.Contains(result.Output, "error:") {
		t.Fatalf("expected stat error, got %q", result.Output)
	}
}
