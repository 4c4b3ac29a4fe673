package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestDotenvPutPreservesOtherEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DB_HOST=localhost\nAPI_KEY=old\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	store, err := Open(ctx, path, "dev", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Put(ctx, "API_KEY", "new-value"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if env["API_KEY"] != "new-value" {
		t.Errorf("API_KEY = %q", env["API_KEY"])
	}
	if env["DB_HOST"] != "localhost" {
		t.Errorf("DB_HOST was not preserved: %v", env)
	}
}

func TestDotenvPutKeepsRawLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	original := "# database\nDB_URL=postgres://${DB_HOST}/app\nAPI_KEY=old\nPASSWORD=pa$word\nexport REGION=\"eu-west-1\"\n"
	if err := os.WriteFile(path, []byte(original), 0o600); err != nil {
		t.Fatal(err)
	}
	backend := NewDotenvBackend(path)
	ctx := context.Background()

	if err := backend.Put(ctx, "API_KEY", "k"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "# database\nDB_URL=postgres://${DB_HOST}/app\nAPI_KEY=k\nPASSWORD=pa$word\nexport REGION=\"eu-west-1\"\n"
	if string(data) != want {
		t.Errorf("file =\n%s\nwant\n%s", data, want)
	}

	if err := backend.Put(ctx, "TOKEN", "a$b'c"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := backend.Put(ctx, "SEALED", "$ENC:abc="); err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.HasPrefix(string(data), want) {
		t.Errorf("existing lines changed: %s", data)
	}
	for key, value := range map[string]string{"API_KEY": "k", "TOKEN": "a$b'c", "SEALED": "$ENC:abc="} {
		got, err := backend.Get(ctx, key)
		if err != nil || got != value {
			t.Errorf("Get(%s) = %q, %v; want %q", key, got, err, value)
		}
	}
}

func TestDotenvCreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.env")
	store := NewStore(NewDotenvBackend(path), nil)
	ctx := context.Background()

	if _, err := store.Get(ctx, "API_KEY"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, "API_KEY", "abc"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "API_KEY")
	if err != nil || got != "abc" {
		t.Errorf("Get = %q, %v", got, err)
	}
}

func TestJSONBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(`{"OTHER": "keep"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	store, err := Open(ctx, path, "dev", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := store.backend.(*JSONBackend); !ok {
		t.Fatalf("expected JSON backend, got %T", store.backend)
	}
	if err := store.Put(ctx, "API_KEY", "xyz"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v, want OTHER and API_KEY", keys)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"OTHER": "keep"`) {
		t.Errorf("other entry lost: %s", data)
	}
}

func TestJSONBackendKeepsNonStringValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	if err := os.WriteFile(path, []byte(`{"PORT": 8080, "DEBUG": true, "DB": {"host": "db"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	backend := NewJSONBackend(path)
	ctx := context.Background()

	if err := backend.Put(ctx, "API_KEY", "k"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got map[string]any
	data, _ := os.ReadFile(path)
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("rewritten file is not JSON: %v", err)
	}
	if got["PORT"] != float64(8080) || got["DEBUG"] != true || got["API_KEY"] != "k" {
		t.Errorf("entries = %v", got)
	}
	if db, ok := got["DB"].(map[string]any); !ok || db["host"] != "db" {
		t.Errorf("nested entry = %v", got["DB"])
	}

	port, err := backend.Get(ctx, "PORT")
	if err != nil || port != "8080" {
		t.Errorf("Get(PORT) = %q, %v", port, err)
	}
	key, err := backend.Get(ctx, "API_KEY")
	if err != nil || key != "k" {
		t.Errorf("Get(API_KEY) = %q, %v", key, err)
	}
}

func TestOpenRejectsEmptyLocator(t *testing.T) {
	if _, err := Open(context.Background(), "", "dev", nil); err == nil {
		t.Fatal("expected error for empty locator")
	}
}

func TestSealedStore(t *testing.T) {
	c, err := NewCipher(testKey)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	path := filepath.Join(t.TempDir(), ".env")
	ctx := context.Background()
	store := NewStore(NewDotenvBackend(path), c)

	if err := store.Put(ctx, "API_KEY", "plain-secret"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	env, _ := godotenv.Read(path)
	if !IsSealed(env["API_KEY"]) {
		t.Errorf("stored value should be sealed, got %q", env["API_KEY"])
	}
	got, err := store.Get(ctx, "API_KEY")
	if err != nil || got != "plain-secret" {
		t.Errorf("Get = %q, %v", got, err)
	}

	unkeyed := NewStore(NewDotenvBackend(path), nil)
	if _, err := unkeyed.Get(ctx, "API_KEY"); err == nil {
		t.Error("reading a sealed value without a key should fail")
	}
}

func TestNewCipherRejectsShortKey(t *testing.T) {
	if _, err := NewCipher("abcd"); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := NewCipher("not-hex"); err == nil {
		t.Fatal("expected error for non-hex key")
	}
}

func TestCipherOpenPassesPlainValues(t *testing.T) {
	var c *Cipher
	got, err := c.Open("plain")
	if err != nil || got != "plain" {
		t.Errorf("Open = %q, %v", got, err)
	}
}

func TestResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	store := NewStore(NewDotenvBackend(path), nil)
	ctx := context.Background()
	if err := store.Put(ctx, "API_KEY", "k-123"); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(store)
	got, err := r.ResolveEnvVars(ctx, map[string]string{
		"GATEWAY_KEY": "$SECRET:API_KEY",
		"LOG_LEVEL":   "debug",
	})
	if err != nil {
		t.Fatalf("ResolveEnvVars: %v", err)
	}
	if got["GATEWAY_KEY"] != "k-123" || got["LOG_LEVEL"] != "debug" {
		t.Errorf("resolved = %v", got)
	}

	if _, err := r.ResolveValue(ctx, "$SECRET:"); err == nil {
		t.Error("expected error for empty reference")
	}
	if _, err := r.ResolveValue(ctx, "$SECRET:MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// newTestRedisClient skips when no local redis is running.
func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisBackend(t *testing.T) {
	client := newTestRedisClient(t)
	ctx := context.Background()
	hash := "gatewayctl:test:secrets"
	client.Del(ctx, hash)
	t.Cleanup(func() { client.Del(context.Background(), hash) })

	store := NewStore(NewRedisBackendWithClient(client, hash), nil)
	if err := store.Put(ctx, "API_KEY", "r-1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "API_KEY")
	if err != nil || got != "r-1" {
		t.Errorf("Get = %q, %v", got, err)
	}
	if _, err := store.Get(ctx, "MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
