package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitCreatesFiles(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	_ = os.Chdir(dir)
	defer func() { _ = os.Chdir(origDir) }()

	out, _, err := execCLI(t, "init")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, ".mongospectre.yml") {
		t.Error("output should mention .mongospectre.yml")
	}

	data, err := os.ReadFile(filepath.Join(dir, ".mongospectre.yml"))
	if err != nil {
		t.Fatalf("expected .mongospectre.yml to exist: %v", err)
	}
	if len(data) == 0 {
		t.Error(".mongospectre.yml is empty")
	}
	if !strings.Contains(string(data), "planner:") {
		t.Error("expected generated config to contain a planner section")
	}
}

func TestInitSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	_ = os.Chdir(dir)
	defer func() { _ = os.Chdir(origDir) }()

	existing := "custom: true\n"
	_ = os.WriteFile(filepath.Join(dir, ".mongospectre.yml"), []byte(existing), 0o644)

	_, errOut, err := execCLI(t, "init")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(errOut, "skip") {
		t.Error("should report skipping existing file")
	}

	data, _ := os.ReadFile(filepath.Join(dir, ".mongospectre.yml"))
	if string(data) != existing {
		t.Errorf("existing file was overwritten: %q", string(data))
	}
}

func TestInitAllExist(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	_ = os.Chdir(dir)
	defer func() { _ = os.Chdir(origDir) }()

	_ = os.WriteFile(filepath.Join(dir, ".mongospectre.yml"), []byte("uri: mongodb://localhost\n"), 0o644)

	out, _, err := execCLI(t, "init")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Nothing to do") {
		t.Error("should report nothing to do when all files exist")
	}
}

func TestInitHelpFlags(t *testing.T) {
	out, _, err := execCLI(t, "init", "--help")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "starter") {
		t.Error("init help should mention starter configs")
	}
}
