package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// JSONBackend keeps entries as one flat JSON object in a file.
type JSONBackend struct {
	path string
	mu   sync.Mutex
}

func NewJSONBackend(path string) *JSONBackend {
	return &JSONBackend{path: path}
}

// read returns the raw entries; non-string values are kept as-is so a
// rewrite does not change them.
func (b *JSONBackend) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	entries := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path, err)
	}
	return entries, nil
}

// entryText returns a string entry unquoted and any other value as its JSON text.
func entryText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (b *JSONBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.read()
	if err != nil {
		return "", err
	}
	raw, ok := entries[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return entryText(raw), nil
}

func (b *JSONBackend) Put(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.read()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	entries[key] = encoded

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".secrets-*.json")
	if err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}

func (b *JSONBackend) List(_ context.Context) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries, err := b.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for k, raw := range entries {
		out[k] = entryText(raw)
	}
	return out, nil
}

func (b *JSONBackend) Close() error { return nil }
