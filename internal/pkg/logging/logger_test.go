package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "checkout.log")

	logger, err := NewLogger(Options{Service: "minishop-checkout", Env: "test", File: path})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Info("checkout_test_line")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"msg":"checkout_test_line"`, `"service":"minishop-checkout"`, `"env":"test"`} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %s in %q", want, line)
		}
	}
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
