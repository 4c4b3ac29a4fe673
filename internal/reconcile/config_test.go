package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/gatewayctl/internal/config"
)

const unknownAuthorizerTOML = `
[stages.dev]
region = "us-east-1"
account_id = "123456789012"

[apis.orders]
name = "orders"
api_type = "REST"
integration_target = "LAMBDA"
lambda_function_name = "orders-handler"

[apis.orders.authorizers.pool]
type = "COGNITO_USER_POOLS"

[apis.orders.resources.items]
methods = ["GET"]
authorization = { GET = "pool" }

[apis.other]
name = "other"
api_type = "REST"
integration_target = "LAMBDA"
lambda_function_name = "other-handler"

[apis.other.resources.status]
methods = ["GET"]
`

func TestRun_UnknownAuthorizerKindFromConfig(t *testing.T) {
	logs := captureLogs(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(unknownAuthorizerTOML), 0o644))

	doc, err := config.Load(path)
	require.NoError(t, err)
	resolved, err := doc.Resolve("dev", func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	require.Len(t, resolved.Gateways, 2)

	f := newFakeWithFunctions(resolved.Gateways...)
	results := newTestEngine(f, WithKeyStore(&memoryKeys{})).Run(context.Background(), resolved.Gateways)
	require.Len(t, results, 2)
	for _, res := range results {
		require.NoError(t, res.Err, res.Gateway)
		assert.Equal(t, StateUsagePlanBound, res.State, res.Gateway)
	}

	orders := results[0]
	require.Equal(t, "orders", orders.Gateway)
	items := resourcesByPath(f.Resources(orders.APIID))["/items"]
	method, ok := f.Method(orders.APIID, items.ID, "GET")
	require.True(t, ok)
	assert.Equal(t, "NONE", method.AuthorizationType)
	assert.Zero(t, f.Count("CreateAuthorizer"))
	assert.Contains(t, logs.String(), "COGNITO_USER_POOLS")
	assert.Contains(t, logs.String(), "authorizer not available")
}
