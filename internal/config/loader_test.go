package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMergesUserAndProjectByName(t *testing.T) {
	userDir := t.TempDir()
	projectDir := t.TempDir()

	writeFile(t, filepath.Join(userDir, FileName), `
processes:
  - name: api
    command: /bin/sh
    args: ["-c", "echo user"]
  - name: worker
    command: /bin/sh
    args: ["-c", "echo worker"]
`)
	writeFile(t, filepath.Join(projectDir, ".sentinel", FileName), `
processes:
  - name: api
    command: /bin/sh
    args: ["-c", "echo project"]
`)

	specs, err := Load(userDir, projectDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("got %d specs, want 2", len(specs))
	}

	byName := make(map[string]string)
	for _, s := range specs {
		byName[s.Name] = s.Args[len(s.Args)-1]
	}
	if byName["api"] != "echo project" {
		t.Errorf("api spec = %q, want project override to win", byName["api"])
	}
	if byName["worker"] != "echo worker" {
		t.Errorf("worker spec = %q, want user-only entry preserved", byName["worker"])
	}
}

func TestLoadDefaultsCwdToProjectDir(t *testing.T) {
	projectDir := t.TempDir()
	writeFile(t, filepath.Join(projectDir, ".sentinel", FileName), `
processes:
  - name: api
    command: /bin/sh
`)
	specs, err := Load(t.TempDir(), projectDir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if specs[0].Cwd != projectDir {
		t.Errorf("Cwd = %q, want %q", specs[0].Cwd, projectDir)
	}
}

func TestLoadMissingFilesReturnsEmpty(t *testing.T) {
	specs, err := Load(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(specs) != 0 {
		t.Errorf("got %d specs, want 0", len(specs))
	}
}

func TestLoadRejectsMissingName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `
processes:
  - command: /bin/sh
`)
	if _, err := Load(dir, t.TempDir()); err == nil {
		t.Error("expected an error for a process entry missing a name")
	}
}
