// Package remote describes the gateway control plane as capability sets.
//
// Two protocol variants exist: RestAPIs manages a tree of resources with
// methods hanging off each node, RouteAPIs manages flat "METHOD /path" route
// keys. Functions covers the backend function lookups and invoke permission
// grants both variants need. Every error returned by an implementation is a
// *Error so callers can branch on Kind instead of message text.
package remote

import (
	"context"

	"github.com/oriys/gatewayctl/internal/domain"
)

// Resource is one node of a REST gateway's resource tree.
type Resource struct {
	ID       string
	ParentID string
	Path     string // cumulative, "/" for the root
	PathPart string
}

// Authorizer is a created authorizer.
type Authorizer struct {
	ID   string
	Name string
}

// AuthorizerSpec describes an authorizer to create. REST gateways use
// IdentitySource joined with commas; route-key gateways use the list.
type AuthorizerSpec struct {
	Name                  string
	Type                  string
	URI                   string
	IdentitySource        []string
	TTLSeconds            int32
	Issuer                string
	Audience              []string
	EnableSimpleResponses bool
}

// RequestValidator is a named REST request validator.
type RequestValidator struct {
	ID   string
	Name string
}

// ValidatorSpec describes a request validator to create.
type ValidatorSpec struct {
	Name           string
	ValidateBody   bool
	ValidateParams bool
}

// MethodSpec describes a REST method on a resource.
type MethodSpec struct {
	APIID              string
	ResourceID         string
	HTTPMethod         string
	AuthorizationType  string // NONE or CUSTOM
	AuthorizerID       string
	RequestValidatorID string
}

// IntegrationSpec describes the backend integration of a REST method.
type IntegrationSpec struct {
	APIID                 string
	ResourceID            string
	HTTPMethod            string
	Type                  string // AWS_PROXY, HTTP_PROXY or MOCK
	IntegrationHTTPMethod string
	URI                   string
	RequestTemplates      map[string]string
}

// ResponseSpec describes a method response or integration response.
type ResponseSpec struct {
	APIID      string
	ResourceID string
	HTTPMethod string
	StatusCode string
	// Parameters maps response header parameters to their value; method
	// responses only use the keys.
	Parameters map[string]string
}

// APIKey is an access key.
type APIKey struct {
	ID    string
	Name  string
	Value string
}

// APIStage attaches a usage plan to a gateway stage.
type APIStage struct {
	APIID string
	Stage string
}

// UsagePlan is a throttle and quota policy.
type UsagePlan struct {
	ID     string
	Name   string
	Stages []APIStage
}

// Attached reports whether the plan already covers stage.
func (p *UsagePlan) Attached(stage APIStage) bool {
	for _, s := range p.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// UsagePlanSpec describes a usage plan to create.
type UsagePlanSpec struct {
	Name   string
	Stages []APIStage
	Policy domain.UsagePlanPolicy
}

// RouteIntegration is an integration of a route-key gateway.
type RouteIntegration struct {
	ID  string
	URI string
}

// RouteIntegrationSpec describes a route-key integration to create.
type RouteIntegrationSpec struct {
	Type                 string // AWS_PROXY or HTTP_PROXY
	URI                  string
	Method               string
	PayloadFormatVersion string
}

// RouteSpec describes a route-key route.
type RouteSpec struct {
	APIID             string
	RouteKey          string
	Target            string
	AuthorizationType string // NONE, CUSTOM or JWT
	AuthorizerID      string
}

// Permission is an invoke grant on a backend function.
type Permission struct {
	FunctionName string
	StatementID  string
	SourceARN    string
}

// RestAPIs is the tree-of-resources control plane.
type RestAPIs interface {
	LookupRestAPI(ctx context.Context, name string) (string, bool, error)
	CreateRestAPI(ctx context.Context, name string) (string, error)

	ListResources(ctx context.Context, apiID string) ([]Resource, error)
	CreateResource(ctx context.Context, apiID, parentID, pathPart string) (Resource, error)

	ListAuthorizers(ctx context.Context, apiID string) ([]Authorizer, error)
	CreateAuthorizer(ctx context.Context, apiID string, spec AuthorizerSpec) (Authorizer, error)

	ListRequestValidators(ctx context.Context, apiID string) ([]RequestValidator, error)
	CreateRequestValidator(ctx context.Context, apiID string, spec ValidatorSpec) (RequestValidator, error)

	PutMethod(ctx context.Context, spec MethodSpec) error
	PutIntegration(ctx context.Context, spec IntegrationSpec) error
	PutMethodResponse(ctx context.Context, spec ResponseSpec) error
	PutIntegrationResponse(ctx context.Context, spec ResponseSpec) error
	SetAPIKeyRequired(ctx context.Context, apiID, resourceID, httpMethod string) error

	CreateDeployment(ctx context.Context, apiID, stage, description string) (string, error)

	LookupAPIKey(ctx context.Context, name string) (*APIKey, bool, error)
	CreateAPIKey(ctx context.Context, name string) (*APIKey, error)
	LookupUsagePlan(ctx context.Context, name string) (*UsagePlan, bool, error)
	CreateUsagePlan(ctx context.Context, spec UsagePlanSpec) (*UsagePlan, error)
	AddUsagePlanStage(ctx context.Context, planID string, stage APIStage) error
	CreateUsagePlanKey(ctx context.Context, planID, keyID string) error
}

// RouteAPIs is the route-key control plane.
type RouteAPIs interface {
	LookupHTTPAPI(ctx context.Context, name string) (string, bool, error)
	CreateHTTPAPI(ctx context.Context, name string, cors domain.CORSConfig) (string, error)

	ListAuthorizers(ctx context.Context, apiID string) ([]Authorizer, error)
	CreateAuthorizer(ctx context.Context, apiID string, spec AuthorizerSpec) (Authorizer, error)

	ListIntegrations(ctx context.Context, apiID string) ([]RouteIntegration, error)
	CreateIntegration(ctx context.Context, apiID string, spec RouteIntegrationSpec) (RouteIntegration, error)

	CreateRoute(ctx context.Context, spec RouteSpec) error
	CreateStage(ctx context.Context, apiID, stage string) error
}

// Functions resolves backend functions and grants them invoke permissions.
type Functions interface {
	FunctionARN(ctx context.Context, name string) (string, error)
	AddPermission(ctx context.Context, perm Permission) error
}
