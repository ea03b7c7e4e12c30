package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader produces Config snapshots (spec §4.4). Parsing a config file
// is explicitly out of the core's scope, so Loader is the seam: the
// core only ever calls Load, never a file format directly.
type Loader interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context) (*Snapshot, error)

func (f LoaderFunc) Load(ctx context.Context) (*Snapshot, error) { return f(ctx) }

// Static wraps an already-built snapshot as a Loader that always
// returns it — useful for tests and for callers who build their
// Snapshot entirely in Go rather than from a file.
func Static(snap *Snapshot) Loader {
	return LoaderFunc(func(context.Context) (*Snapshot, error) { return snap, nil })
}

// FileLoader is a concrete, optional Loader that reads a YAML
// document shaped like Spec from Path. It exists so the module is
// runnable end to end (cmd/throttledemo uses it); the engine and
// Manager never require it — any Loader works.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(context.Context) (*Snapshot, error) {
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", l.Path, err)
	}

	var spec Spec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", l.Path, err)
	}

	snap, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("config: build %s: %w", l.Path, err)
	}
	return snap, nil
}
