package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Protocol selects which control-plane variant manages a gateway.
// It cannot change once the gateway exists.
type Protocol string

const (
	ProtocolREST Protocol = "REST" // tree of resources
	ProtocolHTTP Protocol = "HTTP" // flat route keys
)

// IsValid reports whether p is a supported protocol.
func (p Protocol) IsValid() bool {
	return p == ProtocolREST || p == ProtocolHTTP
}

// CreationMode controls whether an existing gateway may be adopted.
type CreationMode string

const (
	ModeAuto  CreationMode = "auto"  // reuse by name, else create
	ModeNew   CreationMode = "new"   // fail if a gateway with the name exists
	ModeReuse CreationMode = "reuse" // fail if no gateway with the name exists
)

func (m CreationMode) IsValid() bool {
	switch m {
	case ModeAuto, ModeNew, ModeReuse:
		return true
	}
	return false
}

// IntegrationKind is the backend a gateway forwards to.
type IntegrationKind string

const (
	IntegrationFunction IntegrationKind = "LAMBDA"
	IntegrationHTTP     IntegrationKind = "HTTP URI"
)

// Integration is the normalized backend target of a gateway.
type Integration struct {
	Kind         IntegrationKind `json:"kind" yaml:"kind"`
	FunctionName string          `json:"function_name,omitempty" yaml:"function_name,omitempty"`
	URL          string          `json:"url,omitempty" yaml:"url,omitempty"`
	HTTPMethod   string          `json:"http_method,omitempty" yaml:"http_method,omitempty"`
}

// AuthorizerKind is the declared type of an authorizer.
type AuthorizerKind string

const (
	AuthorizerToken   AuthorizerKind = "TOKEN"   // REST, function-backed
	AuthorizerRequest AuthorizerKind = "REQUEST" // REST, function-backed
	AuthorizerLambda  AuthorizerKind = "LAMBDA"  // HTTP, function-backed
	AuthorizerJWT     AuthorizerKind = "JWT"     // HTTP, issuer/audience
)

// Supported reports whether the kind can be created on a gateway of protocol p.
func (k AuthorizerKind) Supported(p Protocol) bool {
	switch p {
	case ProtocolREST:
		return k == AuthorizerToken || k == AuthorizerRequest
	case ProtocolHTTP:
		return k == AuthorizerLambda || k == AuthorizerRequest || k == AuthorizerJWT
	}
	return false
}

// FunctionBacked reports whether the authorizer delegates to a decision function.
func (k AuthorizerKind) FunctionBacked() bool {
	return k == AuthorizerToken || k == AuthorizerRequest || k == AuthorizerLambda
}

// AuthorizerDef is one named authorizer definition of a gateway.
type AuthorizerDef struct {
	Name           AuthorizerName `json:"name" yaml:"name"`
	Kind           AuthorizerKind `json:"kind" yaml:"kind"`
	FunctionName   string         `json:"function_name,omitempty" yaml:"function_name,omitempty"`
	Issuer         string         `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Audience       []string       `json:"audience,omitempty" yaml:"audience,omitempty"`
	IdentitySource []string       `json:"identity_source" yaml:"identity_source"`
	TTLSeconds     int32          `json:"ttl_seconds" yaml:"ttl_seconds"`
	ResponseMode   string         `json:"response_mode,omitempty" yaml:"response_mode,omitempty"`
}

// AuthorizerName keys authorizer definitions and route references.
type AuthorizerName = string

// ValidationMode selects what a request validator checks.
type ValidationMode string

const (
	ValidateNone       ValidationMode = "none"
	ValidateBody       ValidationMode = "body"
	ValidateParameters ValidationMode = "parameters"
	ValidateBoth       ValidationMode = "both"
)

// ParseValidationMode accepts the declarative spellings of a validation mode.
func ParseValidationMode(s string) (ValidationMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ValidateNone, true
	case "body":
		return ValidateBody, true
	case "parameters", "params":
		return ValidateParameters, true
	case "both", "body-and-parameters", "all":
		return ValidateBoth, true
	}
	return "", false
}

// ValidatorName is the remote validator name used for the mode.
func (m ValidationMode) ValidatorName() string {
	switch m {
	case ValidateBody:
		return "validate-body"
	case ValidateParameters:
		return "validate-parameters"
	case ValidateBoth:
		return "validate-body-and-parameters"
	}
	return ""
}

// Route is one path with its methods and per-method settings.
type Route struct {
	Path           string                    `json:"path" yaml:"path"` // "" is the root
	Methods        []string                  `json:"methods" yaml:"methods"`
	Authorization  map[string]AuthorizerName `json:"authorization,omitempty" yaml:"authorization,omitempty"`
	Validation     map[string]ValidationMode `json:"validation,omitempty" yaml:"validation,omitempty"`
	APIKeyRequired map[string]bool           `json:"api_key_required,omitempty" yaml:"api_key_required,omitempty"`
	CORS           bool                      `json:"cors" yaml:"cors"`
}

// AuthorizerFor returns the authorizer named for method, if any.
func (r Route) AuthorizerFor(method string) (AuthorizerName, bool) {
	name, ok := r.Authorization[method]
	if !ok || name == "" || strings.EqualFold(name, "NONE") {
		return "", false
	}
	return name, true
}

// ValidationFor returns the validation mode declared for method.
func (r Route) ValidationFor(method string) ValidationMode {
	if m, ok := r.Validation[method]; ok {
		return m
	}
	return ValidateNone
}

// RequiresAPIKey reports whether method must be called with an access key.
func (r Route) RequiresAPIKey(method string) bool {
	return r.APIKeyRequired[method]
}

// CORSConfig defines CORS settings for a gateway
type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins" yaml:"allow_origins"`
	AllowMethods []string `json:"allow_methods,omitempty" yaml:"allow_methods,omitempty"`
	AllowHeaders []string `json:"allow_headers,omitempty" yaml:"allow_headers,omitempty"`
	MaxAge       int32    `json:"max_age,omitempty" yaml:"max_age,omitempty"` // preflight cache duration in seconds
}

// QuotaPeriod is the window a usage-plan quota applies to.
type QuotaPeriod string

const (
	QuotaDay   QuotaPeriod = "DAY"
	QuotaWeek  QuotaPeriod = "WEEK"
	QuotaMonth QuotaPeriod = "MONTH"
)

func (p QuotaPeriod) IsValid() bool {
	return p == QuotaDay || p == QuotaWeek || p == QuotaMonth
}

// UsagePlanPolicy is the throttle and quota attached to a gateway stage.
type UsagePlanPolicy struct {
	RateLimit   float64     `json:"rate_limit" yaml:"rate_limit"`
	BurstLimit  int32       `json:"burst_limit" yaml:"burst_limit"`
	QuotaLimit  int32       `json:"limit" yaml:"limit"`
	QuotaPeriod QuotaPeriod `json:"period" yaml:"period"`
}

// GatewayDescriptor is the normalized, immutable description of one gateway.
type GatewayDescriptor struct {
	Key                string                           `json:"key" yaml:"key"`
	Name               string                           `json:"name" yaml:"name"`
	Protocol           Protocol                         `json:"protocol" yaml:"protocol"`
	Mode               CreationMode                     `json:"mode" yaml:"mode"`
	Integration        Integration                      `json:"integration" yaml:"integration"`
	CORS               CORSConfig                       `json:"cors" yaml:"cors"`
	Authorizers        map[AuthorizerName]AuthorizerDef `json:"authorizers,omitempty" yaml:"authorizers,omitempty"`
	Routes             []Route                          `json:"routes" yaml:"routes"`
	UsagePlan          UsagePlanPolicy                  `json:"usage_plan" yaml:"usage_plan"`
	CleanupPermissions bool                             `json:"cleanup_permissions,omitempty" yaml:"cleanup_permissions,omitempty"`
}

// AuthorizerNames returns the declared authorizer names in stable order.
func (g GatewayDescriptor) AuthorizerNames() []AuthorizerName {
	names := make([]AuthorizerName, 0, len(g.Authorizers))
	for name := range g.Authorizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// APIKeyName is the access key issued for the gateway.
func (g GatewayDescriptor) APIKeyName() string {
	return g.Name + "-key"
}

// UsagePlanName is the usage plan that throttles the gateway.
func (g GatewayDescriptor) UsagePlanName() string {
	return g.Name + "-usage-plan"
}

// Stage is the deployment target shared by every gateway of a run.
type Stage struct {
	Key         string            `json:"key" yaml:"key"`
	Name        string            `json:"stage_name" yaml:"stage_name"`
	Region      string            `json:"region" yaml:"region"`
	AccountID   string            `json:"account_id" yaml:"account_id"`
	SecretsFile string            `json:"secrets_file" yaml:"secrets_file"`
	Variables   map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// ErrEmptySegment is returned for paths containing doubled separators.
var ErrEmptySegment = errors.New("path contains an empty segment")

// SplitPath splits a slash-delimited resource path into its segments.
// A single leading or trailing separator is ignored; "" and "/" yield no
// segments. Any other empty segment is an error.
func SplitPath(path string) ([]string, error) {
	if path == "" || path == "/" {
		return nil, nil
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptySegment, path)
	}
	segments := strings.Split(trimmed, "/")
	for _, s := range segments {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptySegment, path)
		}
	}
	return segments, nil
}

// CanonicalPath returns the remote form of a path: "/" for the root, "/a/b" otherwise.
func CanonicalPath(segments []string) string {
	return "/" + strings.Join(segments, "/")
}
