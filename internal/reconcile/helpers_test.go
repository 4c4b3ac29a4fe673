package reconcile

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/logging"
	"github.com/oriys/gatewayctl/internal/remote/remotetest"
)

var testEnv = Env{Region: "us-east-1", AccountID: "123456789012", Stage: "dev"}

type memoryKeys struct {
	mu      sync.Mutex
	entries map[string]string
}

func (m *memoryKeys) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]string)
	}
	m.entries[key] = value
	return nil
}

type recordingCleaner struct {
	functions []string
}

func (c *recordingCleaner) CleanupPermissions(_ context.Context, fn string) error {
	c.functions = append(c.functions, fn)
	return nil
}

func newTestEngine(f *remotetest.Fake, opts ...Option) *Engine {
	return New(f, f.Routes(), f, testEnv, opts...)
}

func testSteps() *steps {
	return &steps{log: logging.Op()}
}

// captureLogs redirects the operational logger for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logging.SetOutput(&buf)
	t.Cleanup(func() { logging.SetOutput(io.Discard) })
	return &buf
}

func restGateway(name string) domain.GatewayDescriptor {
	return domain.GatewayDescriptor{
		Key:      name,
		Name:     name,
		Protocol: domain.ProtocolREST,
		Mode:     domain.ModeAuto,
		Integration: domain.Integration{
			Kind:         domain.IntegrationFunction,
			FunctionName: name + "-handler",
		},
		Authorizers: map[string]domain.AuthorizerDef{
			"auth1": {
				Name:           "auth1",
				Kind:           domain.AuthorizerToken,
				FunctionName:   "token-authorizer",
				IdentitySource: []string{"method.request.header.Authorization"},
				TTLSeconds:     300,
			},
		},
		Routes: []domain.Route{{
			Path:           "items",
			Methods:        []string{"GET"},
			Authorization:  map[string]string{"GET": "auth1"},
			APIKeyRequired: map[string]bool{"GET": true},
		}},
		UsagePlan: domain.UsagePlanPolicy{RateLimit: 100, BurstLimit: 20, QuotaLimit: 1000, QuotaPeriod: domain.QuotaMonth},
	}
}

func newFakeWithFunctions(gw ...domain.GatewayDescriptor) *remotetest.Fake {
	f := remotetest.New()
	f.AddFunction("token-authorizer")
	for _, g := range gw {
		if g.Integration.FunctionName != "" {
			f.AddFunction(g.Integration.FunctionName)
		}
	}
	return f
}

// assertInOrder checks that want appears in ops as a subsequence.
func assertInOrder(t *testing.T, ops []string, want ...string) {
	t.Helper()
	i := 0
	for _, op := range ops {
		if i < len(want) && op == want[i] {
			i++
		}
	}
	assert.Equal(t, len(want), i, "calls %v do not contain %v in order", ops, want)
}
