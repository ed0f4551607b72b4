package cli

import (
	"strings"
	"testing"
)

func TestExitErrorError(t *testing.T) {
	err := (&ExitError{Code: 2}).Error()
	if err != "exit status 2" {
		t.Fatalf("error() = %q, want %q", err, "exit status 2")
	}
}

func TestFormatValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{
			name: "plan invalid format",
			args: []string{"plan", "--query", "{}", "--key-pattern", `{"a":1}`, "--format", "xml"},
		},
		{
			name: "explain invalid format",
			args: []string{"explain", "--uri", "mongodb://stub", "--database", "d", "--collection", "c", "--format", "xml"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := execCLI(t, tc.args...)
			if err == nil {
				t.Fatal("expected invalid format error")
			}
			if !strings.Contains(err.Error(), "invalid --format") {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
