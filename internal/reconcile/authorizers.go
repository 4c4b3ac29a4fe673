package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/remote"
)

// authorizerAPI is the part of both control-plane variants the registry needs.
type authorizerAPI interface {
	ListAuthorizers(ctx context.Context, apiID string) ([]remote.Authorizer, error)
	CreateAuthorizer(ctx context.Context, apiID string, spec remote.AuthorizerSpec) (remote.Authorizer, error)
}

// Registry maps authorizer names to remote ids for one gateway pass.
// Existing authorizers are discovered once; missing ones are created on
// first reference and cached, so each name is created at most once per run.
type Registry struct {
	api      authorizerAPI
	fns      remote.Functions
	protocol domain.Protocol
	env      Env
	apiID    string
	defs     map[domain.AuthorizerName]domain.AuthorizerDef

	existing map[string]string
	resolved map[string]string
	missing  map[string]bool
	granted  map[string]bool
	steps    *steps
}

func newRegistry(api authorizerAPI, fns remote.Functions, gw domain.GatewayDescriptor, apiID string, env Env, st *steps) *Registry {
	return &Registry{
		api:      api,
		fns:      fns,
		protocol: gw.Protocol,
		env:      env,
		apiID:    apiID,
		defs:     gw.Authorizers,
		existing: make(map[string]string),
		resolved: make(map[string]string),
		missing:  make(map[string]bool),
		granted:  make(map[string]bool),
		steps:    st,
	}
}

// Discover lists the gateway's authorizers so they can be reused by name.
func (r *Registry) Discover(ctx context.Context) error {
	list, err := r.api.ListAuthorizers(ctx, r.apiID)
	if err != nil {
		return fmt.Errorf("list authorizers: %w", err)
	}
	for _, a := range list {
		r.existing[a.Name] = a.ID
	}
	return nil
}

// Kind returns the declared kind of name.
func (r *Registry) Kind(name string) domain.AuthorizerKind {
	return r.defs[name].Kind
}

// Resolve returns the remote id for name. ok is false when name has no
// usable definition; the caller falls back to open authorization.
func (r *Registry) Resolve(ctx context.Context, name string) (string, bool, error) {
	if id, ok := r.resolved[name]; ok {
		return id, true, nil
	}
	if r.missing[name] {
		return "", false, nil
	}

	def, ok := r.defs[name]
	if !ok {
		r.missing[name] = true
		r.steps.skip("authorizer", "no definition", "authorizer", name)
		return "", false, nil
	}
	if !def.Kind.Supported(r.protocol) {
		r.missing[name] = true
		r.steps.skip("authorizer", fmt.Sprintf("unsupported type %s for %s gateway", def.Kind, r.protocol), "authorizer", name)
		return "", false, nil
	}

	if id, ok := r.existing[name]; ok {
		r.resolved[name] = id
		r.steps.outcome("authorizer", Reused(id), "authorizer", name)
		return id, true, nil
	}

	out, err := r.create(ctx, def)
	if err != nil {
		r.steps.fail("authorizer", err, "authorizer", name)
		return "", false, fmt.Errorf("authorizer %s: %w", name, err)
	}
	r.resolved[name] = out.ID
	r.steps.outcome("authorizer", out, "authorizer", name)
	return out.ID, true, nil
}

// EnsureAll resolves every declared authorizer, including those no route references.
func (r *Registry) EnsureAll(ctx context.Context) error {
	for _, name := range sortedKeys(r.defs) {
		if _, _, err := r.Resolve(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) create(ctx context.Context, def domain.AuthorizerDef) (Outcome, error) {
	spec := remote.AuthorizerSpec{
		Name:           def.Name,
		IdentitySource: def.IdentitySource,
		TTLSeconds:     def.TTLSeconds,
	}

	if def.Kind == domain.AuthorizerJWT {
		spec.Type = string(domain.AuthorizerJWT)
		spec.Issuer = def.Issuer
		spec.Audience = def.Audience
	} else {
		arn, err := r.fns.FunctionARN(ctx, def.FunctionName)
		if err != nil {
			return Outcome{}, fmt.Errorf("resolve function %s: %w", def.FunctionName, err)
		}
		if err := r.grant(ctx, def.FunctionName); err != nil {
			return Outcome{}, err
		}
		spec.URI = invocationURI(r.env.Region, arn)
		spec.Type = string(def.Kind)
		if r.protocol == domain.ProtocolHTTP {
			spec.Type = string(domain.AuthorizerRequest)
			spec.EnableSimpleResponses = strings.EqualFold(def.ResponseMode, "simple")
		}
	}

	a, err := r.api.CreateAuthorizer(ctx, r.apiID, spec)
	if remote.IsConflict(err) {
		if err := r.Discover(ctx); err != nil {
			return Outcome{}, err
		}
		if id, ok := r.existing[def.Name]; ok {
			return Reused(id), nil
		}
	}
	if err != nil {
		return Outcome{}, err
	}
	r.existing[def.Name] = a.ID
	return Created(a.ID), nil
}

// grant allows the gateway's authorizers to invoke the decision function,
// once per function per pass.
func (r *Registry) grant(ctx context.Context, functionName string) error {
	if r.granted[functionName] {
		return nil
	}
	perm := remote.Permission{
		FunctionName: functionName,
		StatementID:  statementID("apigateway-auth-"),
		SourceARN:    executeAPIARN(r.env, r.apiID, "authorizers/*"),
	}
	err := r.fns.AddPermission(ctx, perm)
	switch {
	case err == nil:
		r.steps.note("authorizer_permission", perm.StatementID, "function", functionName)
	case remote.IsConflict(err):
		r.steps.outcome("authorizer_permission", Reused(perm.StatementID), "function", functionName)
	default:
		return fmt.Errorf("grant invoke on %s: %w", functionName, err)
	}
	r.granted[functionName] = true
	return nil
}
