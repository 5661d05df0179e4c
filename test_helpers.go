package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteTestCSV writes CSV content to a file under dir and returns its path.
func WriteTestCSV(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// SetupTestStore creates a store in a temp directory with the products and
// people fixtures loaded.
func SetupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "tabletalk-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	store, err := NewStore(tmpDir)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to initialize test store: %v", err)
	}

	productsPath := WriteTestCSV(t, tmpDir, "products.csv", productsCSV)
	if _, err := store.LoadCSV(productsPath, "products"); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to load products fixture: %v", err)
	}

	peoplePath := WriteTestCSV(t, tmpDir, "people.csv", peopleCSV)
	if _, err := store.LoadCSV(peoplePath, "people"); err != nil {
		store.Close()
		os.RemoveAll(tmpDir)
		t.Fatalf("failed to load people fixture: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}

	return store, cleanup
}

// ScriptedGenerator returns canned responses in order, recording the prompts
// it was called with.
type ScriptedGenerator struct {
	Responses []string
	Prompts   []string
	Err       error
}

func (g *ScriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.Prompts = append(g.Prompts, prompt)
	if g.Err != nil {
		return "", g.Err
	}
	if len(g.Responses) == 0 {
		return "", fmt.Errorf("scripted generator ran out of responses")
	}
	resp := g.Responses[0]
	g.Responses = g.Responses[1:]
	return resp, nil
}
