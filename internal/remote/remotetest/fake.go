// Package remotetest provides an in-memory control plane for engine tests.
//
// The fake records every call in order, hands out sequential ids and
// answers duplicate creates with a Conflict error, matching the behavior
// the engine relies on from the real control planes.
package remotetest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/remote"
)

// Call is one recorded control-plane call.
type Call struct {
	Op     string
	Target string
}

func (c Call) String() string {
	if c.Target == "" {
		return c.Op
	}
	return c.Op + " " + c.Target
}

type methodKey struct {
	apiID, resourceID, method string
}

type restAPI struct {
	name         string
	resources    []remote.Resource
	authorizers  []remote.Authorizer
	validators   []remote.RequestValidator
	methods      map[methodKey]remote.MethodSpec
	integrations map[methodKey]remote.IntegrationSpec
	keyRequired  map[methodKey]bool
	deployments  int
}

type httpAPI struct {
	name         string
	cors         domain.CORSConfig
	authorizers  []remote.Authorizer
	integrations []remote.RouteIntegration
	routes       map[string]remote.RouteSpec
	stages       map[string]bool
}

// Fake implements remote.RestAPIs, remote.RouteAPIs and remote.Functions.
type Fake struct {
	mu sync.Mutex

	calls   []Call
	nextID  int
	rest    map[string]*restAPI // by id
	http    map[string]*httpAPI // by id
	keys    map[string]*remote.APIKey
	plans   map[string]*remote.UsagePlan // by id
	planKey map[string]bool

	functions   map[string]string // name -> arn
	permissions map[string]remote.Permission

	failures map[string]error
}

var (
	_ remote.RestAPIs  = (*Fake)(nil)
	_ remote.RouteAPIs = (*routeView)(nil)
	_ remote.Functions = (*Fake)(nil)
)

// New creates an empty fake.
func New() *Fake {
	return &Fake{
		rest:        make(map[string]*restAPI),
		http:        make(map[string]*httpAPI),
		keys:        make(map[string]*remote.APIKey),
		plans:       make(map[string]*remote.UsagePlan),
		planKey:     make(map[string]bool),
		functions:   make(map[string]string),
		permissions: make(map[string]remote.Permission),
		failures:    make(map[string]error),
	}
}

// Routes returns the route-key view of the fake. The two protocol variants
// share one fake so protocol conflicts can be observed.
func (f *Fake) Routes() remote.RouteAPIs {
	return &routeView{f: f}
}

// AddFunction registers a backend function and returns its ARN.
func (f *Fake) AddFunction(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	arn := "arn:aws:lambda:us-east-1:123456789012:function:" + name
	f.functions[name] = arn
	return arn
}

// FailOn makes every call of op whose target starts with target return err.
// An empty target matches every call of op.
func (f *Fake) FailOn(op, target string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+"\x00"+target] = err
}

// Calls returns the recorded calls in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Ops returns the recorded call names in order.
func (f *Fake) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

// Count returns how many times op was called.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log while keeping remote state.
func (f *Fake) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Resources returns the resource tree of a REST gateway.
func (f *Fake) Resources(apiID string) []remote.Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	api, ok := f.rest[apiID]
	if !ok {
		return nil
	}
	out := make([]remote.Resource, len(api.resources))
	copy(out, api.resources)
	return out
}

// Method returns the method put on a resource, if any.
func (f *Fake) Method(apiID, resourceID, httpMethod string) (remote.MethodSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	api, ok := f.rest[apiID]
	if !ok {
		return remote.MethodSpec{}, false
	}
	m, ok := api.methods[methodKey{apiID, resourceID, httpMethod}]
	return m, ok
}

// Integration returns the integration put on a method, if any.
func (f *Fake) Integration(apiID, resourceID, httpMethod string) (remote.IntegrationSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	api, ok := f.rest[apiID]
	if !ok {
		return remote.IntegrationSpec{}, false
	}
	in, ok := api.integrations[methodKey{apiID, resourceID, httpMethod}]
	return in, ok
}

// APIKeyRequired reports whether the method was marked API-key-required.
func (f *Fake) APIKeyRequired(apiID, resourceID, httpMethod string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	api, ok := f.rest[apiID]
	return ok && api.keyRequired[methodKey{apiID, resourceID, httpMethod}]
}

// Deployments returns how many deployments were created for a REST gateway.
func (f *Fake) Deployments(apiID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if api, ok := f.rest[apiID]; ok {
		return api.deployments
	}
	return 0
}

// UsagePlan returns the usage plan with the given name.
func (f *Fake) UsagePlan(name string) (*remote.UsagePlan, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.plans {
		if p.Name == name {
			cp := *p
			cp.Stages = append([]remote.APIStage(nil), p.Stages...)
			return &cp, true
		}
	}
	return nil, false
}

// PlanKeyLinked reports whether keyID is linked to planID.
func (f *Fake) PlanKeyLinked(planID, keyID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.planKey[planID+"/"+keyID]
}

// Permissions returns the granted permissions of a function.
func (f *Fake) Permissions(functionName string) []remote.Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remote.Permission
	for _, p := range f.permissions {
		if p.FunctionName == functionName {
			out = append(out, p)
		}
	}
	return out
}

// RouteKeys returns the route keys of a route-key gateway.
func (f *Fake) RouteKeys(apiID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	api, ok := f.http[apiID]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(api.routes))
	for k := range api.routes {
		keys = append(keys, k)
	}
	return keys
}

// Route returns one route of a route-key gateway.
func (f *Fake) Route(apiID, routeKey string) (remote.RouteSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	api, ok := f.http[apiID]
	if !ok {
		return remote.RouteSpec{}, false
	}
	r, ok := api.routes[routeKey]
	return r, ok
}

// SeedRestAPI creates a REST gateway with the given extra resource paths
// without recording calls, simulating a previous partial run.
func (f *Fake) SeedRestAPI(name string, paths ...string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.newRestAPI(name)
	api := f.rest[id]
	for _, p := range paths {
		parent := api.resources[0]
		for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
			full := strings.TrimSuffix(parent.Path, "/") + "/" + seg
			if r, ok := findResource(api, full); ok {
				parent = r
				continue
			}
			r := remote.Resource{ID: f.id("res"), ParentID: parent.ID, Path: full, PathPart: seg}
			api.resources = append(api.resources, r)
			parent = r
		}
	}
	return id
}

// SeedHTTPAPI creates a route-key gateway without recording calls.
func (f *Fake) SeedHTTPAPI(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.newHTTPAPI(name, domain.CORSConfig{})
}

// SeedUsagePlan creates a usage plan without recording calls.
func (f *Fake) SeedUsagePlan(name string, stages ...remote.APIStage) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("plan")
	f.plans[id] = &remote.UsagePlan{ID: id, Name: name, Stages: stages}
	return id
}

func (f *Fake) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// record logs the call and returns an injected failure, if any.
func (f *Fake) record(op, target string) error {
	f.calls = append(f.calls, Call{Op: op, Target: target})
	for key, err := range f.failures {
		parts := strings.SplitN(key, "\x00", 2)
		if parts[0] == op && strings.HasPrefix(target, parts[1]) {
			return err
		}
	}
	return nil
}

func conflict(op, format string, args ...any) error {
	return remote.NewError(op, remote.KindConflict, format, args...)
}

func notFound(op, format string, args ...any) error {
	return remote.NewError(op, remote.KindNotFound, format, args...)
}

func (f *Fake) newRestAPI(name string) string {
	id := f.id("rest")
	f.rest[id] = &restAPI{
		name:         name,
		resources:    []remote.Resource{{ID: f.id("res"), Path: "/"}},
		methods:      make(map[methodKey]remote.MethodSpec),
		integrations: make(map[methodKey]remote.IntegrationSpec),
		keyRequired:  make(map[methodKey]bool),
	}
	return id
}

func (f *Fake) newHTTPAPI(name string, cors domain.CORSConfig) string {
	id := f.id("http")
	f.http[id] = &httpAPI{
		name:   name,
		cors:   cors,
		routes: make(map[string]remote.RouteSpec),
		stages: make(map[string]bool),
	}
	return id
}

func findResource(api *restAPI, path string) (remote.Resource, bool) {
	for _, r := range api.resources {
		if r.Path == path {
			return r, true
		}
	}
	return remote.Resource{}, false
}

func (f *Fake) restAPI(op, apiID string) (*restAPI, error) {
	api, ok := f.rest[apiID]
	if !ok {
		return nil, notFound(op, "rest api %s", apiID)
	}
	return api, nil
}

// --- REST tree variant ---

func (f *Fake) LookupRestAPI(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("LookupRestAPI", name); err != nil {
		return "", false, err
	}
	for id, api := range f.rest {
		if api.name == name {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (f *Fake) CreateRestAPI(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRestAPI", name); err != nil {
		return "", err
	}
	return f.newRestAPI(name), nil
}

func (f *Fake) ListResources(_ context.Context, apiID string) ([]remote.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListResources", apiID); err != nil {
		return nil, err
	}
	api, err := f.restAPI("ListResources", apiID)
	if err != nil {
		return nil, err
	}
	out := make([]remote.Resource, len(api.resources))
	copy(out, api.resources)
	return out, nil
}

func (f *Fake) CreateResource(_ context.Context, apiID, parentID, pathPart string) (remote.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateResource", pathPart); err != nil {
		return remote.Resource{}, err
	}
	api, err := f.restAPI("CreateResource", apiID)
	if err != nil {
		return remote.Resource{}, err
	}
	var parent *remote.Resource
	for i := range api.resources {
		r := &api.resources[i]
		if r.ID == parentID {
			parent = r
		}
		if r.ParentID == parentID && r.PathPart == pathPart {
			return remote.Resource{}, conflict("CreateResource", "resource %s exists under %s", pathPart, parentID)
		}
	}
	if parent == nil {
		return remote.Resource{}, notFound("CreateResource", "parent %s", parentID)
	}
	r := remote.Resource{
		ID:       f.id("res"),
		ParentID: parentID,
		Path:     strings.TrimSuffix(parent.Path, "/") + "/" + pathPart,
		PathPart: pathPart,
	}
	api.resources = append(api.resources, r)
	return r, nil
}

func (f *Fake) ListAuthorizers(_ context.Context, apiID string) ([]remote.Authorizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListAuthorizers", apiID); err != nil {
		return nil, err
	}
	api, err := f.restAPI("ListAuthorizers", apiID)
	if err != nil {
		return nil, err
	}
	return append([]remote.Authorizer(nil), api.authorizers...), nil
}

func (f *Fake) CreateAuthorizer(_ context.Context, apiID string, spec remote.AuthorizerSpec) (remote.Authorizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAuthorizer", spec.Name); err != nil {
		return remote.Authorizer{}, err
	}
	api, err := f.restAPI("CreateAuthorizer", apiID)
	if err != nil {
		return remote.Authorizer{}, err
	}
	for _, a := range api.authorizers {
		if a.Name == spec.Name {
			return remote.Authorizer{}, conflict("CreateAuthorizer", "authorizer %s exists", spec.Name)
		}
	}
	a := remote.Authorizer{ID: f.id("auth"), Name: spec.Name}
	api.authorizers = append(api.authorizers, a)
	return a, nil
}

func (f *Fake) ListRequestValidators(_ context.Context, apiID string) ([]remote.RequestValidator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("ListRequestValidators", apiID); err != nil {
		return nil, err
	}
	api, err := f.restAPI("ListRequestValidators", apiID)
	if err != nil {
		return nil, err
	}
	return append([]remote.RequestValidator(nil), api.validators...), nil
}

func (f *Fake) CreateRequestValidator(_ context.Context, apiID string, spec remote.ValidatorSpec) (remote.RequestValidator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateRequestValidator", spec.Name); err != nil {
		return remote.RequestValidator{}, err
	}
	api, err := f.restAPI("CreateRequestValidator", apiID)
	if err != nil {
		return remote.RequestValidator{}, err
	}
	for _, v := range api.validators {
		if v.Name == spec.Name {
			return remote.RequestValidator{}, conflict("CreateRequestValidator", "validator %s exists", spec.Name)
		}
	}
	v := remote.RequestValidator{ID: f.id("val"), Name: spec.Name}
	api.validators = append(api.validators, v)
	return v, nil
}

func (f *Fake) PutMethod(_ context.Context, spec remote.MethodSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutMethod", spec.HTTPMethod+" "+spec.ResourceID); err != nil {
		return err
	}
	api, err := f.restAPI("PutMethod", spec.APIID)
	if err != nil {
		return err
	}
	key := methodKey{spec.APIID, spec.ResourceID, spec.HTTPMethod}
	if _, ok := api.methods[key]; ok {
		return conflict("PutMethod", "method %s exists on %s", spec.HTTPMethod, spec.ResourceID)
	}
	api.methods[key] = spec
	return nil
}

func (f *Fake) PutIntegration(_ context.Context, spec remote.IntegrationSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("PutIntegration", spec.HTTPMethod+" "+spec.ResourceID); err != nil {
		return err
	}
	api, err := f.restAPI("PutIntegration", spec.APIID)
	if err != nil {
		return err
	}
	key := methodKey{spec.APIID, spec.ResourceID, spec.HTTPMethod}
	if _, ok := api.methods[key]; !ok {
		return notFound("PutIntegration", "method %s on %s", spec.HTTPMethod, spec.ResourceID)
	}
	api.integrations[key] = spec
	return nil
}

func (f *Fake) PutMethodResponse(_ context.Context, spec remote.ResponseSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("PutMethodResponse", spec.HTTPMethod+" "+spec.ResourceID)
}

func (f *Fake) PutIntegrationResponse(_ context.Context, spec remote.ResponseSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("PutIntegrationResponse", spec.HTTPMethod+" "+spec.ResourceID)
}

func (f *Fake) SetAPIKeyRequired(_ context.Context, apiID, resourceID, httpMethod string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("SetAPIKeyRequired", httpMethod+" "+resourceID); err != nil {
		return err
	}
	api, err := f.restAPI("SetAPIKeyRequired", apiID)
	if err != nil {
		return err
	}
	key := methodKey{apiID, resourceID, httpMethod}
	if _, ok := api.methods[key]; !ok {
		return notFound("SetAPIKeyRequired", "method %s on %s", httpMethod, resourceID)
	}
	api.keyRequired[key] = true
	return nil
}

func (f *Fake) CreateDeployment(_ context.Context, apiID, stage, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateDeployment", stage); err != nil {
		return "", err
	}
	api, err := f.restAPI("CreateDeployment", apiID)
	if err != nil {
		return "", err
	}
	api.deployments++
	return f.id("dep"), nil
}

func (f *Fake) LookupAPIKey(_ context.Context, name string) (*remote.APIKey, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("LookupAPIKey", name); err != nil {
		return nil, false, err
	}
	k, ok := f.keys[name]
	if !ok {
		return nil, false, nil
	}
	cp := *k
	return &cp, true, nil
}

func (f *Fake) CreateAPIKey(_ context.Context, name string) (*remote.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateAPIKey", name); err != nil {
		return nil, err
	}
	if _, ok := f.keys[name]; ok {
		return nil, conflict("CreateAPIKey", "api key %s exists", name)
	}
	id := f.id("key")
	k := &remote.APIKey{ID: id, Name: name, Value: "secret-" + id}
	f.keys[name] = k
	cp := *k
	return &cp, nil
}

func (f *Fake) LookupUsagePlan(_ context.Context, name string) (*remote.UsagePlan, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("LookupUsagePlan", name); err != nil {
		return nil, false, err
	}
	for _, p := range f.plans {
		if p.Name == name {
			cp := *p
			cp.Stages = append([]remote.APIStage(nil), p.Stages...)
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (f *Fake) CreateUsagePlan(_ context.Context, spec remote.UsagePlanSpec) (*remote.UsagePlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateUsagePlan", spec.Name); err != nil {
		return nil, err
	}
	id := f.id("plan")
	p := &remote.UsagePlan{ID: id, Name: spec.Name, Stages: append([]remote.APIStage(nil), spec.Stages...)}
	f.plans[id] = p
	cp := *p
	return &cp, nil
}

func (f *Fake) AddUsagePlanStage(_ context.Context, planID string, stage remote.APIStage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddUsagePlanStage", stage.APIID+":"+stage.Stage); err != nil {
		return err
	}
	p, ok := f.plans[planID]
	if !ok {
		return notFound("AddUsagePlanStage", "usage plan %s", planID)
	}
	if p.Attached(stage) {
		return conflict("AddUsagePlanStage", "stage %s:%s already attached", stage.APIID, stage.Stage)
	}
	p.Stages = append(p.Stages, stage)
	return nil
}

func (f *Fake) CreateUsagePlanKey(_ context.Context, planID, keyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CreateUsagePlanKey", keyID); err != nil {
		return err
	}
	if _, ok := f.plans[planID]; !ok {
		return notFound("CreateUsagePlanKey", "usage plan %s", planID)
	}
	k := planID + "/" + keyID
	if f.planKey[k] {
		return conflict("CreateUsagePlanKey", "key %s already linked", keyID)
	}
	f.planKey[k] = true
	return nil
}

// --- functions ---

func (f *Fake) FunctionARN(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("FunctionARN", name); err != nil {
		return "", err
	}
	arn, ok := f.functions[name]
	if !ok {
		return "", notFound("GetFunction", "function %s", name)
	}
	return arn, nil
}

func (f *Fake) AddPermission(_ context.Context, perm remote.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("AddPermission", perm.SourceARN); err != nil {
		return err
	}
	if _, ok := f.functions[perm.FunctionName]; !ok {
		return notFound("AddPermission", "function %s", perm.FunctionName)
	}
	key := perm.FunctionName + "|" + perm.StatementID
	if _, ok := f.permissions[key]; ok {
		return conflict("AddPermission", "statement %s already exists", perm.StatementID)
	}
	f.permissions[key] = perm
	return nil
}

// CleanupPermissions removes every statement of a function's policy.
func (f *Fake) CleanupPermissions(_ context.Context, functionName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("CleanupPermissions", functionName); err != nil {
		return err
	}
	for key, p := range f.permissions {
		if p.FunctionName == functionName {
			delete(f.permissions, key)
		}
	}
	return nil
}

// --- route-key variant ---

// routeView adapts the fake to remote.RouteAPIs; ListAuthorizers and
// CreateAuthorizer share names with the REST variant.
type routeView struct {
	f *Fake
}

func (v *routeView) httpAPI(op, apiID string) (*httpAPI, error) {
	api, ok := v.f.http[apiID]
	if !ok {
		return nil, notFound(op, "http api %s", apiID)
	}
	return api, nil
}

func (v *routeView) LookupHTTPAPI(_ context.Context, name string) (string, bool, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.record("LookupHTTPAPI", name); err != nil {
		return "", false, err
	}
	for id, api := range v.f.http {
		if api.name == name {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (v *routeView) CreateHTTPAPI(_ context.Context, name string, cors domain.CORSConfig) (string, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.record("CreateHTTPAPI", name); err != nil {
		return "", err
	}
	return v.f.newHTTPAPI(name, cors), nil
}

func (v *routeView) ListAuthorizers(_ context.Context, apiID string) ([]remote.Authorizer, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.record("ListRouteAuthorizers", apiID); err != nil {
		return nil, err
	}
	api, err := v.httpAPI("ListAuthorizers", apiID)
	if err != nil {
		return nil, err
	}
	return append([]remote.Authorizer(nil), api.authorizers...), nil
}

func (v *routeView) CreateAuthorizer(_ context.Context, apiID string, spec remote.AuthorizerSpec) (remote.Authorizer, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.record("CreateRouteAuthorizer", spec.Name); err != nil {
		return remote.Authorizer{}, err
	}
	api, err := v.httpAPI("CreateAuthorizer", apiID)
	if err != nil {
		return remote.Authorizer{}, err
	}
	for _, a := range api.authorizers {
		if a.Name == spec.Name {
			return remote.Authorizer{}, conflict("CreateAuthorizer", "authorizer %s exists", spec.Name)
		}
	}
	a := remote.Authorizer{ID: v.f.id("auth"), Name: spec.Name}
	api.authorizers = append(api.authorizers, a)
	return a, nil
}

func (v *routeView) ListIntegrations(_ context.Context, apiID string) ([]remote.RouteIntegration, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.record("ListIntegrations", apiID); err != nil {
		return nil, err
	}
	api, err := v.httpAPI("ListIntegrations", apiID)
	if err != nil {
		return nil, err
	}
	return append([]remote.RouteIntegration(nil), api.integrations...), nil
}

func (v *routeView) CreateIntegration(_ context.Context, apiID string, spec remote.RouteIntegrationSpec) (remote.RouteIntegration, error) {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.record("CreateIntegration", spec.URI); err != nil {
		return remote.RouteIntegration{}, err
	}
	api, err := v.httpAPI("CreateIntegration", apiID)
	if err != nil {
		return remote.RouteIntegration{}, err
	}
	in := remote.RouteIntegration{ID: v.f.id("int"), URI: spec.URI}
	api.integrations = append(api.integrations, in)
	return in, nil
}

func (v *routeView) CreateRoute(_ context.Context, spec remote.RouteSpec) error {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.record("CreateRoute", spec.RouteKey); err != nil {
		return err
	}
	api, err := v.httpAPI("CreateRoute", spec.APIID)
	if err != nil {
		return err
	}
	if _, ok := api.routes[spec.RouteKey]; ok {
		return conflict("CreateRoute", "route %s exists", spec.RouteKey)
	}
	api.routes[spec.RouteKey] = spec
	return nil
}

func (v *routeView) CreateStage(_ context.Context, apiID, stage string) error {
	v.f.mu.Lock()
	defer v.f.mu.Unlock()
	if err := v.f.record("CreateStage", stage); err != nil {
		return err
	}
	api, err := v.httpAPI("CreateStage", apiID)
	if err != nil {
		return err
	}
	if api.stages[stage] {
		return conflict("CreateStage", "stage %s exists", stage)
	}
	api.stages[stage] = true
	return nil
}
