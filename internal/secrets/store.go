package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get for a missing entry.
var ErrNotFound = errors.New("secret not found")

// Backend is where entries live. Put must preserve the other entries.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
	List(ctx context.Context) (map[string]string, error)
	Close() error
}

// Store persists generated credentials such as the gateway access key,
// sealing values when a Cipher is configured.
type Store struct {
	backend Backend
	cipher  *Cipher
}

// NewStore creates a new secrets store
func NewStore(backend Backend, c *Cipher) *Store {
	return &Store{backend: backend, cipher: c}
}

// Open picks a backend from locator: redis:// and rediss:// URLs use a
// redis hash named after namespace, *.json uses a JSON object file and
// anything else is a dotenv file.
func Open(ctx context.Context, locator, namespace string, c *Cipher) (*Store, error) {
	var (
		b   Backend
		err error
	)
	switch {
	case strings.HasPrefix(locator, "redis://"), strings.HasPrefix(locator, "rediss://"):
		b, err = NewRedisBackend(ctx, locator, "gatewayctl:"+namespace+":secrets")
	case strings.HasSuffix(strings.ToLower(locator), ".json"):
		b = NewJSONBackend(locator)
	case locator == "":
		return nil, fmt.Errorf("secrets locator is empty")
	default:
		b = NewDotenvBackend(locator)
	}
	if err != nil {
		return nil, err
	}
	return NewStore(b, c), nil
}

// Put stores value under key.
func (s *Store) Put(ctx context.Context, key, value string) error {
	sealed, err := s.cipher.Seal(value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	if err := s.backend.Put(ctx, key, sealed); err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return s.cipher.Open(v)
}

// Keys returns the stored entry names.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	all, err := s.backend.List(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	return keys, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
