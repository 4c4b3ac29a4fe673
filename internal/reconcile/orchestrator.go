// Package reconcile converts gateway descriptors into an idempotent
// sequence of create-or-reuse calls against the gateway control plane.
//
// Each gateway moves forward through a fixed set of states:
//
//	Created|Reused -> AuthorizersReady -> RoutesWired -> Deployed -> UsagePlanBound
//
// A failure stops that gateway where it is; sibling gateways still run.
// Nothing is cached across runs: every pass rediscovers remote state, so
// a run interrupted half way is completed by the next one.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/logging"
	"github.com/oriys/gatewayctl/internal/metrics"
	"github.com/oriys/gatewayctl/internal/observability"
	"github.com/oriys/gatewayctl/internal/remote"
)

// State is the furthest point a gateway reached in one run.
type State string

const (
	StatePending          State = "Pending"
	StateCreated          State = "Created"
	StateReused           State = "Reused"
	StateAuthorizersReady State = "AuthorizersReady"
	StateRoutesWired      State = "RoutesWired"
	StateDeployed         State = "Deployed"
	StateUsagePlanBound   State = "UsagePlanBound"
)

var (
	// ErrGatewayExists is returned for creation mode "new" when the name is taken.
	ErrGatewayExists = errors.New("gateway already exists")
	// ErrProtocolMismatch is returned when the name exists under the other protocol.
	ErrProtocolMismatch = errors.New("gateway exists with a different protocol")
	// ErrUnsupportedProtocol is returned when no control plane handles the protocol.
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
)

// Env is the deployment target shared by every gateway of a run.
type Env struct {
	Region    string
	AccountID string
	Stage     string
}

// Result is the outcome of one gateway.
type Result struct {
	Gateway   string          `json:"gateway" yaml:"gateway"`
	Name      string          `json:"name" yaml:"name"`
	Protocol  domain.Protocol `json:"protocol" yaml:"protocol"`
	APIID     string          `json:"api_id,omitempty" yaml:"api_id,omitempty"`
	State     State           `json:"state" yaml:"state"`
	Created   int             `json:"created" yaml:"created"`
	Reused    int             `json:"reused" yaml:"reused"`
	Skipped   int             `json:"skipped" yaml:"skipped"`
	UsagePlan *UsagePlanState `json:"usage_plan,omitempty" yaml:"usage_plan,omitempty"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
	Err       error           `json:"-" yaml:"-"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the gateway reached its final state.
func (r Result) OK() bool {
	return r.Err == nil
}

// PermissionCleaner removes a function's existing invoke grants.
type PermissionCleaner interface {
	CleanupPermissions(ctx context.Context, functionName string) error
}

// Engine reconciles gateway descriptors against the control plane.
type Engine struct {
	rest    remote.RestAPIs
	routes  remote.RouteAPIs
	fns     remote.Functions
	env     Env
	keys    KeyStore
	cleaner PermissionCleaner
}

// Option configures an Engine.
type Option func(*Engine)

// WithKeyStore persists issued access keys.
func WithKeyStore(ks KeyStore) Option {
	return func(e *Engine) { e.keys = ks }
}

// WithPermissionCleaner enables cleanup_permissions for function-backed gateways.
func WithPermissionCleaner(c PermissionCleaner) Option {
	return func(e *Engine) { e.cleaner = c }
}

// New creates an Engine. Either control plane may be nil when no gateway uses it.
func New(rest remote.RestAPIs, routes remote.RouteAPIs, fns remote.Functions, env Env, opts ...Option) *Engine {
	e := &Engine{rest: rest, routes: routes, fns: fns, env: env}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run reconciles every gateway in order. A failed gateway is reported in
// its Result and does not stop the others.
func (e *Engine) Run(ctx context.Context, gateways []domain.GatewayDescriptor) []Result {
	results := make([]Result, 0, len(gateways))
	for _, gw := range gateways {
		results = append(results, e.Reconcile(ctx, gw))
	}
	return results
}

// Reconcile drives one gateway as far through its states as it can go.
func (e *Engine) Reconcile(ctx context.Context, gw domain.GatewayDescriptor) Result {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "reconcile.gateway",
		observability.AttrGateway.String(gw.Key),
		observability.AttrProtocol.String(string(gw.Protocol)),
		observability.AttrStage.String(e.env.Stage),
	)
	defer span.End()

	res := &Result{Gateway: gw.Key, Name: gw.Name, Protocol: gw.Protocol, State: StatePending}
	st := &steps{log: logging.OpWithTrace(ctx).With("gateway", gw.Key)}

	var err error
	switch gw.Protocol {
	case domain.ProtocolREST:
		err = e.reconcileREST(ctx, span, gw, res, st)
	case domain.ProtocolHTTP:
		err = e.reconcileRouteKey(ctx, span, gw, res, st)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedProtocol, gw.Protocol)
	}

	res.Created, res.Reused, res.Skipped = st.created, st.reused, st.skipped
	res.Duration = time.Since(start)
	span.SetAttributes(observability.AttrAPIID.String(res.APIID), observability.AttrState.String(string(res.State)))
	if err != nil {
		res.Err = err
		res.Error = err.Error()
		observability.SetSpanError(span, err)
		st.log.Error("gateway failed", "state", res.State, "error", err)
	} else {
		observability.SetSpanOK(span)
		st.log.Info("gateway reconciled", "state", res.State, "api_id", res.APIID,
			"created", res.Created, "reused", res.Reused, "duration", res.Duration)
	}
	metrics.RecordGateway(string(gw.Protocol), string(res.State), res.Duration, err == nil)
	return *res
}

// advance moves res to state and marks the transition on the span.
func advance(span trace.Span, res *Result, st *steps, state State) {
	res.State = state
	span.AddEvent(string(state))
	st.log.Debug("state", "state", state)
}

func (e *Engine) reconcileREST(ctx context.Context, span trace.Span, gw domain.GatewayDescriptor, res *Result, st *steps) error {
	if e.rest == nil {
		return fmt.Errorf("%w: no REST control plane configured", ErrUnsupportedProtocol)
	}

	gateway, err := e.ensureGateway(ctx, gw, st,
		e.rest.LookupRestAPI,
		e.otherLookup(domain.ProtocolREST),
		func(ctx context.Context) (string, error) { return e.rest.CreateRestAPI(ctx, gw.Name) },
	)
	if err != nil {
		return err
	}
	res.APIID = gateway.ID
	advance(span, res, st, gatewayState(gateway))

	e.cleanupPermissions(ctx, gw, st)

	tree, err := LoadPathTree(ctx, e.rest, gateway.ID)
	if err != nil {
		return err
	}
	auth := newRegistry(e.rest, e.fns, gw, gateway.ID, e.env, st)
	if err := auth.Discover(ctx); err != nil {
		return err
	}
	advance(span, res, st, StateAuthorizersReady)

	wiring := &methodWiring{
		api:        e.rest,
		env:        e.env,
		apiID:      gateway.ID,
		backend:    &backend{fns: e.fns, integration: gw.Integration},
		auth:       auth,
		validators: &validatorSet{api: e.rest, apiID: gateway.ID, steps: st},
		steps:      st,
	}
	preflight := make(map[string]bool)
	for _, route := range gw.Routes {
		segments, err := domain.SplitPath(route.Path)
		if err != nil {
			return err
		}
		path := domain.CanonicalPath(segments)

		node, err := tree.Resolve(ctx, route.Path)
		if err != nil {
			st.fail("resource", err, "path", path)
			return err
		}
		st.outcome("resource", node, "path", path)

		if route.CORS && !preflight[path] {
			if err := wiring.Preflight(ctx, node.ID, path); err != nil {
				st.fail("cors_preflight", err, "path", path)
				return err
			}
			preflight[path] = true
		}

		for _, method := range route.Methods {
			if method == "OPTIONS" {
				continue
			}
			if err := wiring.Wire(ctx, node.ID, path, route, method); err != nil {
				st.fail("method", err, "method", method, "path", path)
				return err
			}
		}
	}
	if err := auth.EnsureAll(ctx); err != nil {
		return err
	}
	advance(span, res, st, StateRoutesWired)

	deploymentID, err := e.rest.CreateDeployment(ctx, gateway.ID, e.env.Stage, "gatewayctl "+gw.Key)
	if err != nil {
		st.fail("deployment", err, "stage", e.env.Stage)
		return fmt.Errorf("deploy %s to %s: %w", gw.Name, e.env.Stage, err)
	}
	st.note("deployment", deploymentID, "stage", e.env.Stage)
	advance(span, res, st, StateDeployed)

	binder := &usagePlanBinder{api: e.rest, keys: e.keys, steps: st}
	plan, err := binder.Bind(ctx, gw, remote.APIStage{APIID: gateway.ID, Stage: e.env.Stage})
	if err != nil {
		st.fail("usage_plan", err)
		return err
	}
	res.UsagePlan = plan
	advance(span, res, st, StateUsagePlanBound)
	return nil
}

type lookupFunc func(ctx context.Context, name string) (string, bool, error)

// otherLookup returns the lookup of the protocol p is not, or nil.
func (e *Engine) otherLookup(p domain.Protocol) lookupFunc {
	if p == domain.ProtocolREST && e.routes != nil {
		return e.routes.LookupHTTPAPI
	}
	if p == domain.ProtocolHTTP && e.rest != nil {
		return e.rest.LookupRestAPI
	}
	return nil
}

// ensureGateway applies the creation mode: reuse by name, else create,
// refusing a name already taken by the other protocol.
func (e *Engine) ensureGateway(ctx context.Context, gw domain.GatewayDescriptor, st *steps,
	lookup, other lookupFunc, create func(context.Context) (string, error)) (Outcome, error) {

	id, found, err := lookup(ctx, gw.Name)
	if err != nil {
		return Outcome{}, fmt.Errorf("lookup gateway %s: %w", gw.Name, err)
	}
	if found {
		if gw.Mode == domain.ModeNew {
			return Outcome{}, fmt.Errorf("%w: %s (%s)", ErrGatewayExists, gw.Name, id)
		}
		out := Reused(id)
		st.outcome("gateway", out, "name", gw.Name)
		return out, nil
	}

	if other != nil {
		otherID, exists, err := other(ctx, gw.Name)
		if err != nil {
			return Outcome{}, fmt.Errorf("lookup gateway %s: %w", gw.Name, err)
		}
		if exists {
			return Outcome{}, fmt.Errorf("%w: %s is %s, existing gateway %s is not", ErrProtocolMismatch, gw.Name, gw.Protocol, otherID)
		}
	}

	if gw.Mode == domain.ModeReuse {
		return Outcome{}, remote.NewError("LookupGateway", remote.KindNotFound, "gateway %s does not exist", gw.Name)
	}
	id, err = create(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("create gateway %s: %w", gw.Name, err)
	}
	out := Created(id)
	st.outcome("gateway", out, "name", gw.Name)
	return out, nil
}

func gatewayState(o Outcome) State {
	if o.Created {
		return StateCreated
	}
	return StateReused
}

// cleanupPermissions removes stale invoke grants of the backend function.
// Failures are logged; the gateway continues.
func (e *Engine) cleanupPermissions(ctx context.Context, gw domain.GatewayDescriptor, st *steps) {
	if !gw.CleanupPermissions || gw.Integration.Kind != domain.IntegrationFunction {
		return
	}
	if e.cleaner == nil {
		st.skip("cleanup_permissions", "no permission cleaner configured")
		return
	}
	if err := e.cleaner.CleanupPermissions(ctx, gw.Integration.FunctionName); err != nil {
		st.log.Warn("permission cleanup failed", "function", gw.Integration.FunctionName, "error", err)
		return
	}
	st.log.Info("permissions cleaned", "function", gw.Integration.FunctionName)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
