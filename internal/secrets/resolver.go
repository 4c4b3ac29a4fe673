package secrets

import (
	"context"
	"fmt"
	"strings"
)

const secretRefPrefix = "$SECRET:"

// Getter reads one stored entry.
type Getter interface {
	Get(ctx context.Context, key string) (string, error)
}

// Resolver resolves $SECRET:name references to stored values
type Resolver struct {
	store Getter
}

func NewResolver(store Getter) *Resolver {
	return &Resolver{store: store}
}

// ResolveEnvVars returns a copy of envVars with every $SECRET: reference
// replaced by the stored value.
func (r *Resolver) ResolveEnvVars(ctx context.Context, envVars map[string]string) (map[string]string, error) {
	if len(envVars) == 0 {
		return envVars, nil
	}
	resolved := make(map[string]string, len(envVars))
	for k, v := range envVars {
		rv, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", k, err)
		}
		resolved[k] = rv
	}
	return resolved, nil
}

// ResolveValue resolves a single value that may be a $SECRET:name reference
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	if !IsSecretRef(value) {
		return value, nil
	}
	name := strings.TrimPrefix(value, secretRefPrefix)
	if name == "" {
		return "", fmt.Errorf("empty secret name in reference")
	}
	v, err := r.store.Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get secret '%s': %w", name, err)
	}
	return v, nil
}

// IsSecretRef checks if a value is a secret reference
func IsSecretRef(value string) bool {
	return strings.HasPrefix(value, secretRefPrefix)
}
