package reconcile

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/remote"
	"github.com/oriys/gatewayctl/internal/remote/remotetest"
)

func TestRegistry_CreatesOncePerName(t *testing.T) {
	ctx := context.Background()
	gw := restGateway("orders")
	f := newFakeWithFunctions(gw)
	apiID := f.SeedRestAPI(gw.Name)

	reg := newRegistry(f, f, gw, apiID, testEnv, testSteps())
	require.NoError(t, reg.Discover(ctx))

	first, ok, err := reg.Resolve(ctx, "auth1")
	require.NoError(t, err)
	require.True(t, ok)
	second, ok, err := reg.Resolve(ctx, "auth1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.Count("CreateAuthorizer"))

	perms := f.Permissions("token-authorizer")
	require.Len(t, perms, 1)
	assert.Equal(t, "arn:aws:execute-api:us-east-1:123456789012:"+apiID+"/authorizers/*", perms[0].SourceARN)
	assert.True(t, strings.HasPrefix(perms[0].StatementID, "apigateway-auth-"))
}

func TestRegistry_ReusesDiscovered(t *testing.T) {
	ctx := context.Background()
	gw := restGateway("orders")
	f := newFakeWithFunctions(gw)
	apiID := f.SeedRestAPI(gw.Name)
	existing, err := f.CreateAuthorizer(ctx, apiID, remote.AuthorizerSpec{Name: "auth1"})
	require.NoError(t, err)
	f.ResetCalls()

	st := testSteps()
	reg := newRegistry(f, f, gw, apiID, testEnv, st)
	require.NoError(t, reg.Discover(ctx))
	id, ok, err := reg.Resolve(ctx, "auth1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, existing.ID, id)
	assert.Zero(t, f.Count("CreateAuthorizer"))
	assert.Zero(t, f.Count("AddPermission"))
	assert.Equal(t, 1, st.reused)
}

func TestRegistry_UnusableDefinitions(t *testing.T) {
	ctx := context.Background()
	gw := restGateway("orders")
	gw.Authorizers["jwt1"] = domain.AuthorizerDef{Name: "jwt1", Kind: domain.AuthorizerJWT, Issuer: "https://issuer"}
	gw.Authorizers["odd"] = domain.AuthorizerDef{Name: "odd", Kind: "COGNITO_USER_POOLS"}
	f := newFakeWithFunctions(gw)
	apiID := f.SeedRestAPI(gw.Name)

	st := testSteps()
	reg := newRegistry(f, f, gw, apiID, testEnv, st)
	require.NoError(t, reg.Discover(ctx))

	for _, name := range []string{"ghost", "jwt1", "odd", "ghost"} {
		_, ok, err := reg.Resolve(ctx, name)
		require.NoError(t, err)
		assert.False(t, ok, name)
	}
	assert.Zero(t, f.Count("CreateAuthorizer"))
	assert.Equal(t, 3, st.skipped, "each unusable name is reported once")
}

func TestRegistry_EnsureAllCreatesUnreferenced(t *testing.T) {
	ctx := context.Background()
	gw := restGateway("orders")
	gw.Authorizers["auth2"] = domain.AuthorizerDef{Name: "auth2", Kind: domain.AuthorizerRequest, FunctionName: "token-authorizer"}
	f := newFakeWithFunctions(gw)
	apiID := f.SeedRestAPI(gw.Name)

	reg := newRegistry(f, f, gw, apiID, testEnv, testSteps())
	require.NoError(t, reg.Discover(ctx))
	_, _, err := reg.Resolve(ctx, "auth1")
	require.NoError(t, err)
	require.NoError(t, reg.EnsureAll(ctx))

	assert.Equal(t, 2, f.Count("CreateAuthorizer"))
	// both authorizers use one function, which is granted once per pass
	assert.Len(t, f.Permissions("token-authorizer"), 1)
}

func TestRegistry_MissingFunctionFails(t *testing.T) {
	ctx := context.Background()
	gw := restGateway("orders")
	f := remotetest.New()
	apiID := f.SeedRestAPI(gw.Name)

	reg := newRegistry(f, f, gw, apiID, testEnv, testSteps())
	require.NoError(t, reg.Discover(ctx))
	_, _, err := reg.Resolve(ctx, "auth1")
	require.Error(t, err)
	assert.True(t, remote.IsNotFound(err))
}
