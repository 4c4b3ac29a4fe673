package reconcile

import (
	"context"
	"fmt"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/remote"
)

const (
	authNone   = "NONE"
	authCustom = "CUSTOM"
	authJWT    = "JWT"
)

// backend is the integration target of a gateway, with the function ARN
// resolved on first use.
type backend struct {
	fns         remote.Functions
	integration domain.Integration
	arn         string
}

func (b *backend) isFunction() bool {
	return b.integration.Kind == domain.IntegrationFunction
}

func (b *backend) functionARN(ctx context.Context) (string, error) {
	if b.arn != "" {
		return b.arn, nil
	}
	arn, err := b.fns.FunctionARN(ctx, b.integration.FunctionName)
	if err != nil {
		return "", fmt.Errorf("resolve function %s: %w", b.integration.FunctionName, err)
	}
	b.arn = arn
	return arn, nil
}

// grant allows the gateway to invoke the backend function for one method.
// Every call adds a statement with a fresh id, so it is not counted as
// created; cleanup_permissions keeps the function policy bounded.
func (b *backend) grant(ctx context.Context, env Env, apiID, method, path string, st *steps) error {
	perm := remote.Permission{
		FunctionName: b.integration.FunctionName,
		StatementID:  statementID("apigateway-"),
		SourceARN:    executeAPIARN(env, apiID, "*/"+method+path),
	}
	err := b.fns.AddPermission(ctx, perm)
	switch {
	case err == nil:
		st.note("permission", perm.StatementID, "method", method, "path", path)
	case remote.IsConflict(err):
		st.outcome("permission", Reused(perm.StatementID), "method", method, "path", path)
	default:
		return fmt.Errorf("grant invoke on %s: %w", b.integration.FunctionName, err)
	}
	return nil
}

// validatorSet creates or reuses the three named request validators of a
// REST gateway, listing existing ones on first use.
type validatorSet struct {
	api    remote.RestAPIs
	apiID  string
	loaded bool
	ids    map[string]string
	steps  *steps
}

func (v *validatorSet) ensure(ctx context.Context, mode domain.ValidationMode) (string, error) {
	name := mode.ValidatorName()
	if name == "" {
		return "", nil
	}
	if !v.loaded {
		list, err := v.api.ListRequestValidators(ctx, v.apiID)
		if err != nil {
			return "", fmt.Errorf("list request validators: %w", err)
		}
		v.ids = make(map[string]string, len(list))
		for _, rv := range list {
			v.ids[rv.Name] = rv.ID
		}
		v.loaded = true
	}
	if id, ok := v.ids[name]; ok {
		return id, nil
	}

	rv, err := v.api.CreateRequestValidator(ctx, v.apiID, remote.ValidatorSpec{
		Name:           name,
		ValidateBody:   mode == domain.ValidateBody || mode == domain.ValidateBoth,
		ValidateParams: mode == domain.ValidateParameters || mode == domain.ValidateBoth,
	})
	if err != nil {
		return "", fmt.Errorf("create request validator %s: %w", name, err)
	}
	v.ids[name] = rv.ID
	v.steps.outcome("request_validator", Created(rv.ID), "validator", name)
	return rv.ID, nil
}

// methodWiring attaches methods, integrations and permissions to the
// resources of one REST gateway.
type methodWiring struct {
	api        remote.RestAPIs
	env        Env
	apiID      string
	backend    *backend
	auth       *Registry
	validators *validatorSet
	steps      *steps
}

// Wire puts one method on resourceID in dependency order: method,
// integration, invoke permission, then the API-key flag.
func (w *methodWiring) Wire(ctx context.Context, resourceID, path string, route domain.Route, method string) error {
	spec := remote.MethodSpec{
		APIID:             w.apiID,
		ResourceID:        resourceID,
		HTTPMethod:        method,
		AuthorizationType: authNone,
	}

	if name, ok := route.AuthorizerFor(method); ok {
		id, found, err := w.auth.Resolve(ctx, name)
		if err != nil {
			return err
		}
		if found {
			spec.AuthorizationType = authCustom
			spec.AuthorizerID = id
		} else {
			w.steps.log.Warn("authorizer not available, method is open",
				"authorizer", name, "method", method, "path", path)
		}
	}

	if mode := route.ValidationFor(method); mode != domain.ValidateNone {
		id, err := w.validators.ensure(ctx, mode)
		if err != nil {
			return err
		}
		spec.RequestValidatorID = id
	}

	methodOutcome := Created(method + " " + path)
	err := w.api.PutMethod(ctx, spec)
	if remote.IsConflict(err) {
		methodOutcome = Reused(methodOutcome.ID)
	} else if err != nil {
		return fmt.Errorf("put method %s %s: %w", method, path, err)
	}
	w.steps.outcome("method", methodOutcome, "auth", spec.AuthorizationType)

	if err := w.integrate(ctx, resourceID, path, method, methodOutcome); err != nil {
		return err
	}

	if w.backend.isFunction() {
		if err := w.backend.grant(ctx, w.env, w.apiID, method, path, w.steps); err != nil {
			return err
		}
	}

	if route.RequiresAPIKey(method) {
		err := w.api.SetAPIKeyRequired(ctx, w.apiID, resourceID, method)
		if err != nil && !remote.IsConflict(err) {
			return fmt.Errorf("require api key on %s %s: %w", method, path, err)
		}
		w.steps.outcome("api_key_required", methodOutcome)
	}
	return nil
}

func (w *methodWiring) integrate(ctx context.Context, resourceID, path, method string, methodOutcome Outcome) error {
	spec := remote.IntegrationSpec{
		APIID:      w.apiID,
		ResourceID: resourceID,
		HTTPMethod: method,
	}
	if w.backend.isFunction() {
		arn, err := w.backend.functionARN(ctx)
		if err != nil {
			return err
		}
		spec.Type = "AWS_PROXY"
		spec.IntegrationHTTPMethod = "POST"
		spec.URI = invocationURI(w.env.Region, arn)
	} else {
		spec.Type = "HTTP_PROXY"
		spec.IntegrationHTTPMethod = w.backend.integration.HTTPMethod
		spec.URI = w.backend.integration.URL
	}

	err := w.api.PutIntegration(ctx, spec)
	if err != nil && !remote.IsConflict(err) {
		return fmt.Errorf("put integration %s %s: %w", method, path, err)
	}
	w.steps.outcome("integration", Outcome{ID: spec.URI, Created: methodOutcome.Created}, "method", method, "path", path)
	return nil
}
