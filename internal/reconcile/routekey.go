package reconcile

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/remote"
)

func (e *Engine) reconcileRouteKey(ctx context.Context, span trace.Span, gw domain.GatewayDescriptor, res *Result, st *steps) error {
	if e.routes == nil {
		return fmt.Errorf("%w: no route-key control plane configured", ErrUnsupportedProtocol)
	}

	gateway, err := e.ensureGateway(ctx, gw, st,
		e.routes.LookupHTTPAPI,
		e.otherLookup(domain.ProtocolHTTP),
		func(ctx context.Context) (string, error) { return e.routes.CreateHTTPAPI(ctx, gw.Name, gw.CORS) },
	)
	if err != nil {
		return err
	}
	res.APIID = gateway.ID
	advance(span, res, st, gatewayState(gateway))

	e.cleanupPermissions(ctx, gw, st)

	auth := newRegistry(e.routes, e.fns, gw, gateway.ID, e.env, st)
	if err := auth.Discover(ctx); err != nil {
		return err
	}
	advance(span, res, st, StateAuthorizersReady)

	be := &backend{fns: e.fns, integration: gw.Integration}
	integrationID, err := e.ensureRouteIntegration(ctx, gateway.ID, be, st)
	if err != nil {
		st.fail("integration", err)
		return err
	}
	target := "integrations/" + integrationID

	preflight := make(map[string]bool)
	for _, route := range gw.Routes {
		segments, err := domain.SplitPath(route.Path)
		if err != nil {
			return err
		}
		path := domain.CanonicalPath(segments)

		for _, method := range route.Methods {
			if method == "OPTIONS" {
				continue
			}
			if err := e.wireRoute(ctx, gateway.ID, target, path, route, method, auth, be, st); err != nil {
				st.fail("route", err, "method", method, "path", path)
				return err
			}
		}

		if route.CORS && !preflight[path] {
			out, err := createRoute(ctx, e.routes, remote.RouteSpec{APIID: gateway.ID, RouteKey: "OPTIONS " + path, Target: target})
			if err != nil {
				st.fail("cors_preflight", err, "path", path)
				return err
			}
			st.outcome("cors_preflight", out, "path", path)
			preflight[path] = true
		}
	}
	if err := auth.EnsureAll(ctx); err != nil {
		return err
	}
	advance(span, res, st, StateRoutesWired)

	err = e.routes.CreateStage(ctx, gateway.ID, e.env.Stage)
	switch {
	case err == nil:
		st.outcome("stage", Created(e.env.Stage))
	case remote.IsConflict(err):
		st.outcome("stage", Reused(e.env.Stage))
	default:
		st.fail("stage", err, "stage", e.env.Stage)
		return fmt.Errorf("create stage %s: %w", e.env.Stage, err)
	}
	advance(span, res, st, StateDeployed)

	st.skip("usage_plan", "route-key gateways have no usage plans")
	return nil
}

// ensureRouteIntegration reuses the gateway integration with the same URI,
// else creates one.
func (e *Engine) ensureRouteIntegration(ctx context.Context, apiID string, be *backend, st *steps) (string, error) {
	spec := remote.RouteIntegrationSpec{}
	if be.isFunction() {
		arn, err := be.functionARN(ctx)
		if err != nil {
			return "", err
		}
		spec.Type = "AWS_PROXY"
		spec.URI = invocationURI(e.env.Region, arn)
		spec.PayloadFormatVersion = "2.0"
	} else {
		spec.Type = "HTTP_PROXY"
		spec.URI = be.integration.URL
		spec.Method = be.integration.HTTPMethod
		spec.PayloadFormatVersion = "1.0"
	}

	existing, err := e.routes.ListIntegrations(ctx, apiID)
	if err != nil {
		return "", fmt.Errorf("list integrations: %w", err)
	}
	for _, in := range existing {
		if in.URI == spec.URI {
			st.outcome("integration", Reused(in.ID), "uri", spec.URI)
			return in.ID, nil
		}
	}

	in, err := e.routes.CreateIntegration(ctx, apiID, spec)
	if err != nil {
		return "", fmt.Errorf("create integration: %w", err)
	}
	st.outcome("integration", Created(in.ID), "uri", spec.URI)
	return in.ID, nil
}

func (e *Engine) wireRoute(ctx context.Context, apiID, target, path string, route domain.Route, method string, auth *Registry, be *backend, st *steps) error {
	spec := remote.RouteSpec{
		APIID:    apiID,
		RouteKey: method + " " + path,
		Target:   target,
	}

	if name, ok := route.AuthorizerFor(method); ok {
		id, found, err := auth.Resolve(ctx, name)
		if err != nil {
			return err
		}
		if found {
			spec.AuthorizerID = id
			spec.AuthorizationType = authCustom
			if auth.Kind(name) == domain.AuthorizerJWT {
				spec.AuthorizationType = authJWT
			}
		} else {
			st.log.Warn("authorizer not available, route is open", "authorizer", name, "route", spec.RouteKey)
		}
	}
	if route.ValidationFor(method) != domain.ValidateNone {
		st.skip("request_validator", "route-key gateways have no request validators", "route", spec.RouteKey)
	}

	out, err := createRoute(ctx, e.routes, spec)
	if err != nil {
		return err
	}
	st.outcome("route", out, "route", spec.RouteKey, "auth", spec.AuthorizationType)

	if be.isFunction() {
		if err := be.grant(ctx, e.env, apiID, method, path, st); err != nil {
			return err
		}
	}
	if route.RequiresAPIKey(method) {
		st.skip("api_key_required", "route-key gateways have no API keys", "route", spec.RouteKey)
	}
	return nil
}

func createRoute(ctx context.Context, api remote.RouteAPIs, spec remote.RouteSpec) (Outcome, error) {
	err := api.CreateRoute(ctx, spec)
	switch {
	case err == nil:
		return Created(spec.RouteKey), nil
	case remote.IsConflict(err):
		return Reused(spec.RouteKey), nil
	}
	return Outcome{}, fmt.Errorf("create route %s: %w", spec.RouteKey, err)
}
