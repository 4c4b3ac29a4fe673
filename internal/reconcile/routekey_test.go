package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/gatewayctl/internal/domain"
)

func routeGateway(name string) domain.GatewayDescriptor {
	return domain.GatewayDescriptor{
		Key:      name,
		Name:     name,
		Protocol: domain.ProtocolHTTP,
		Mode:     domain.ModeAuto,
		Integration: domain.Integration{
			Kind:         domain.IntegrationFunction,
			FunctionName: name + "-handler",
		},
		CORS: domain.CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"GET", "POST"}, MaxAge: 3600},
		Authorizers: map[string]domain.AuthorizerDef{
			"jwt1": {
				Name:           "jwt1",
				Kind:           domain.AuthorizerJWT,
				Issuer:         "https://issuer.example.com",
				Audience:       []string{"orders"},
				IdentitySource: []string{"$request.header.Authorization"},
				TTLSeconds:     300,
			},
			"fn1": {
				Name:           "fn1",
				Kind:           domain.AuthorizerLambda,
				FunctionName:   "token-authorizer",
				IdentitySource: []string{"$request.header.Authorization"},
				TTLSeconds:     300,
				ResponseMode:   "simple",
			},
		},
		Routes: []domain.Route{{
			Path:           "items",
			Methods:        []string{"GET", "POST"},
			Authorization:  map[string]string{"GET": "jwt1", "POST": "fn1"},
			APIKeyRequired: map[string]bool{"GET": true},
			CORS:           true,
		}},
	}
}

func TestRouteKey_Reconcile(t *testing.T) {
	ctx := context.Background()
	gw := routeGateway("orders")
	f := newFakeWithFunctions(gw)
	routes := f.Routes()

	res := New(nil, routes, f, testEnv).Reconcile(ctx, gw)
	require.NoError(t, res.Err)
	assert.Equal(t, StateDeployed, res.State)
	assert.Nil(t, res.UsagePlan)
	assert.Equal(t, 2, res.Skipped, "api key flag and usage plan are skipped")

	assert.ElementsMatch(t, []string{"GET /items", "POST /items", "OPTIONS /items"}, f.RouteKeys(res.APIID))

	get, ok := f.Route(res.APIID, "GET /items")
	require.True(t, ok)
	assert.Equal(t, "JWT", get.AuthorizationType)
	post, ok := f.Route(res.APIID, "POST /items")
	require.True(t, ok)
	assert.Equal(t, "CUSTOM", post.AuthorizationType)
	assert.Equal(t, get.Target, post.Target)

	assert.Equal(t, 1, f.Count("CreateIntegration"))
	assert.Equal(t, 2, f.Count("CreateRouteAuthorizer"))
	assert.Len(t, f.Permissions("orders-handler"), 2)
	assert.Len(t, f.Permissions("token-authorizer"), 1)
	assertInOrder(t, f.Ops(), "CreateHTTPAPI", "ListRouteAuthorizers", "CreateIntegration", "CreateRoute", "CreateStage")
}

func TestRouteKey_SecondRunCreatesNothing(t *testing.T) {
	ctx := context.Background()
	gw := routeGateway("orders")
	f := newFakeWithFunctions(gw)
	engine := New(nil, f.Routes(), f, testEnv)

	first := engine.Reconcile(ctx, gw)
	require.NoError(t, first.Err)

	f.ResetCalls()
	second := engine.Reconcile(ctx, gw)
	require.NoError(t, second.Err)
	assert.Equal(t, first.APIID, second.APIID)
	assert.Zero(t, second.Created)
	assert.Zero(t, f.Count("CreateIntegration"), "integration is reused by URI")
	assert.Zero(t, f.Count("CreateRouteAuthorizer"))
}

func TestRouteKey_ProtocolIsImmutable(t *testing.T) {
	ctx := context.Background()
	gw := routeGateway("orders")
	f := newFakeWithFunctions(gw)
	f.SeedRestAPI(gw.Name)

	res := newTestEngine(f).Reconcile(ctx, gw)
	assert.ErrorIs(t, res.Err, ErrProtocolMismatch)
	assert.Zero(t, f.Count("CreateHTTPAPI"))
}

func TestRouteKey_HTTPBackendRoot(t *testing.T) {
	ctx := context.Background()
	gw := routeGateway("proxy")
	gw.Integration = domain.Integration{Kind: domain.IntegrationHTTP, URL: "https://backend.example.com", HTTPMethod: "POST"}
	gw.Authorizers = nil
	gw.Routes = []domain.Route{{Path: "", Methods: []string{"ANY"}}}
	f := newFakeWithFunctions(gw)

	res := newTestEngine(f).Reconcile(ctx, gw)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"ANY /"}, f.RouteKeys(res.APIID))
	assert.Zero(t, f.Count("AddPermission"))
}

func TestEngine_UnsupportedProtocol(t *testing.T) {
	gw := routeGateway("orders")
	gw.Protocol = "WEBSOCKET"
	res := newTestEngine(newFakeWithFunctions(gw)).Reconcile(context.Background(), gw)
	assert.ErrorIs(t, res.Err, ErrUnsupportedProtocol)
	assert.Equal(t, StatePending, res.State)
}
