package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// DotenvBackend keeps entries as KEY=VALUE lines in a file. Put rewrites
// only the line of the key it sets; every other line is kept verbatim.
type DotenvBackend struct {
	path string
	mu   sync.Mutex
}

func NewDotenvBackend(path string) *DotenvBackend {
	return &DotenvBackend{path: path}
}

func (b *DotenvBackend) read() (map[string]string, error) {
	env, err := godotenv.Read(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	return env, nil
}

func (b *DotenvBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	env, err := b.read()
	if err != nil {
		return "", err
	}
	v, ok := env[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

func (b *DotenvBackend) Put(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", b.path, err)
	}

	var lines []string
	if text := strings.TrimSuffix(string(data), "\n"); text != "" {
		lines = strings.Split(text, "\n")
	}
	entry := dotenvLine(key, value)
	replaced := false
	out := lines[:0]
	for _, line := range lines {
		if lineKey(line) != key {
			out = append(out, line)
			continue
		}
		if !replaced {
			out = append(out, entry)
			replaced = true
		}
	}
	if !replaced {
		out = append(out, entry)
	}

	if err := os.WriteFile(b.path, []byte(strings.Join(out, "\n")+"\n"), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	return nil
}

func (b *DotenvBackend) List(_ context.Context) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read()
}

func (b *DotenvBackend) Close() error { return nil }

// lineKey returns the key of a KEY=VALUE line, or "" for comments and
// lines without a separator.
func lineKey(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	line = strings.TrimPrefix(line, "export ")
	k, _, ok := strings.Cut(line, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(k)
}

// dotenvLine renders key=value so that godotenv reads value back unchanged.
func dotenvLine(key, value string) string {
	if !strings.ContainsAny(value, "$#'\"\\ \t\n=") {
		return key + "=" + value
	}
	if !strings.ContainsAny(value, "'\n") {
		return key + "='" + value + "'"
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "\n", `\n`)
	return key + `="` + r.Replace(value) + `"`
}
