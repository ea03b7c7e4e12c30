package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/AlfredDev/throttlecore/config"
)

func TestStaticLoaderAlwaysReturnsTheSameSnapshot(t *testing.T) {
	snap := &config.Snapshot{UniqueName: "svc"}
	loader := config.Static(snap)

	got, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != snap {
		t.Fatalf("expected Static to return the exact snapshot it was built with")
	}
}

func TestFileLoaderParsesAndBuildsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	yaml := `
uniqueName: svc
whiteList:
  - uriPattern: "/healthz"
rules:
  - id: r1
    uriPattern: "/v1/*"
    limitMethod:
      type: fixed_window
      permitLimit: 10
      intervalSeconds: 60
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}

	loader := config.FileLoader{Path: path}
	snap, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.UniqueName != "svc" {
		t.Fatalf("expected uniqueName svc, got %q", snap.UniqueName)
	}
	if len(snap.Rules) != 1 || len(snap.Whitelist) != 1 {
		t.Fatalf("expected one rule and one whitelist entry, got %d rules %d whitelist", len(snap.Rules), len(snap.Whitelist))
	}
}

func TestFileLoaderReportsMissingFile(t *testing.T) {
	loader := config.FileLoader{Path: filepath.Join(t.TempDir(), "does-not-exist.yaml")}
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatalf("expected an error reading a missing file")
	}
}

func TestFileLoaderReportsInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("rules: [this is not valid: yaml"), 0o644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}

	loader := config.FileLoader{Path: path}
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatalf("expected an error parsing malformed YAML")
	}
}

func TestFileLoaderReportsInvalidSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invalid.yaml")
	// Missing uniqueName, which Spec.Validate requires.
	yaml := `
rules:
  - id: r1
    limitMethod:
      type: fixed_window
      permitLimit: 10
      intervalSeconds: 60
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}

	loader := config.FileLoader{Path: path}
	if _, err := loader.Load(context.Background()); err == nil {
		t.Fatalf("expected an error building a spec missing its required uniqueName")
	}
}
