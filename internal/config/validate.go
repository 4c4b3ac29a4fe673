package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/oriys/gatewayctl/internal/domain"
)

var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "HEAD": true, "OPTIONS": true, "ANY": true,
}

var knownAuthorizerKinds = map[domain.AuthorizerKind]bool{
	domain.AuthorizerToken:   true,
	domain.AuthorizerRequest: true,
	domain.AuthorizerLambda:  true,
	domain.AuthorizerJWT:     true,
}

// Validate checks every section of the document and returns all problems
// joined together. It does not look at the environment.
func (d *Document) Validate() error {
	var errs []error
	for _, key := range sortedKeys(d.Stages) {
		errs = append(errs, d.Stages[key].Validate("stages."+key)...)
	}
	for _, key := range sortedKeys(d.IAMRoles) {
		errs = append(errs, d.IAMRoles[key].Validate("iam_roles."+key)...)
	}
	for _, key := range sortedKeys(d.Lambda) {
		if svc := d.Lambda[key].Service; svc != nil {
			errs = append(errs, svc.Validate("lambda."+key+".service")...)
		}
	}
	for _, key := range sortedKeys(d.APIs) {
		errs = append(errs, d.APIs[key].Validate("apis."+key)...)
	}
	return errors.Join(errs...)
}

// Validate checks one stage table. Region and account may come from the
// environment, so only the secrets locator is checked here.
func (s StageConfig) Validate(path string) []error {
	if strings.TrimSpace(s.SecretsFile) != s.SecretsFile {
		return []error{configErr(path+".secrets_file", "must not have surrounding whitespace")}
	}
	return nil
}

// Validate checks one role table.
func (r RoleConfig) Validate(path string) []error {
	var errs []error
	if r.RoleName == "" {
		errs = append(errs, configErr(path+".role_name", "is required"))
	}
	for name, arn := range r.ManagedPolicies {
		if arn == "" {
			errs = append(errs, configErr(path+".managed_policies."+name, "policy ARN is required"))
		}
	}
	for _, name := range sortedKeys(r.InlinePolicies) {
		p := r.InlinePolicies[name]
		pp := path + ".inline_policies." + name
		if len(p.Action) == 0 {
			errs = append(errs, configErr(pp+".action", "at least one action is required"))
		}
		if p.Effect != "" && p.Effect != "Allow" && p.Effect != "Deny" {
			errs = append(errs, configErr(pp+".effect", "must be Allow or Deny, got %q", p.Effect))
		}
	}
	return errs
}

// Validate checks one function table.
func (f FunctionConfig) Validate(path string) []error {
	var errs []error
	for field, v := range map[string]string{
		"function_name": f.FunctionName,
		"role_name":     f.RoleName,
		"runtime":       f.Runtime,
		"handler":       f.Handler,
		"zip_file":      f.ZipFile,
	} {
		if v == "" {
			errs = append(errs, configErr(path+"."+field, "is required"))
		}
	}
	if f.Timeout < 0 {
		errs = append(errs, configErr(path+".timeout", "must not be negative"))
	}
	if f.MemorySize < 0 {
		errs = append(errs, configErr(path+".memory_size", "must not be negative"))
	}
	sortErrors(errs)
	return errs
}

// Validate checks one gateway table.
func (a APIConfig) Validate(path string) []error {
	var errs []error
	if a.Name == "" {
		errs = append(errs, configErr(path+".name", "is required"))
	}

	protocol, err := a.protocol(path)
	if err != nil {
		errs = append(errs, err)
	}
	if a.CreationMode != "" && !domain.CreationMode(strings.ToLower(a.CreationMode)).IsValid() {
		errs = append(errs, configErr(path+".api_creation_mode", "must be auto, new or reuse, got %q", a.CreationMode))
	}
	if _, err := a.integration(path); err != nil {
		errs = append(errs, err)
	}

	if protocol != "" {
		for _, name := range sortedKeys(a.Authorizers) {
			errs = append(errs, a.Authorizers[name].validate(path+".authorizers."+name, protocol)...)
		}
	}

	tables, err := a.routeTables(path)
	if err != nil {
		errs = append(errs, err)
	}
	for _, t := range tables {
		errs = append(errs, t.cfg.validate(t.path)...)
	}

	if a.UsagePlan != nil {
		errs = append(errs, a.UsagePlan.validate(path+".usage_plan")...)
	}
	return errs
}

func (c AuthorizerConfig) validate(path string, p domain.Protocol) []error {
	var errs []error
	kind := c.kind(p)
	if !knownAuthorizerKinds[kind] {
		// skipped with a warning at reconcile time; routes naming it stay open
		return nil
	}
	if kind.FunctionBacked() && c.AuthorizerFunctionName == "" {
		errs = append(errs, configErr(path+".authorizer_function_name", "is required for %s authorizers", kind))
	}
	if kind == domain.AuthorizerJWT && c.Issuer == "" {
		errs = append(errs, configErr(path+".issuer", "is required for JWT authorizers"))
	}
	if c.TTLSeconds != nil && *c.TTLSeconds < 0 {
		errs = append(errs, configErr(path+".ttl_seconds", "must not be negative"))
	}
	if m := strings.ToLower(c.ResponseMode); m != "" && m != "simple" && m != "iam" {
		errs = append(errs, configErr(path+".response_mode", "must be simple or iam, got %q", c.ResponseMode))
	}
	return errs
}

func (r RouteConfig) validate(path string) []error {
	var errs []error
	if _, err := domain.SplitPath(r.ResourcePath); err != nil {
		errs = append(errs, configErr(path+".resource_path", "%v", err))
	}
	if len(r.Methods) == 0 {
		errs = append(errs, configErr(path+".methods", "at least one method is required"))
	}
	for _, m := range r.Methods {
		if !knownMethods[strings.ToUpper(m)] {
			errs = append(errs, configErr(path+".methods", "unknown method %q", m))
		}
	}
	for _, m := range sortedKeys(r.RequestValidator) {
		if _, ok := domain.ParseValidationMode(r.RequestValidator[m]); !ok {
			errs = append(errs, configErr(path+".request_validator."+m, "unknown validation mode %q", r.RequestValidator[m]))
		}
	}
	if _, err := apiKeyMethods(r.RequireAPIKey, r.Methods); err != nil {
		errs = append(errs, configErr(path+".require_api_key", "%v", err))
	}
	return errs
}

func (u UsagePlanConfig) validate(path string) []error {
	var errs []error
	if u.Period != "" && !domain.QuotaPeriod(strings.ToUpper(u.Period)).IsValid() {
		errs = append(errs, configErr(path+".period", "must be DAY, WEEK or MONTH, got %q", u.Period))
	}
	if u.RateLimit != nil && *u.RateLimit < 0 {
		errs = append(errs, configErr(path+".rate_limit", "must not be negative"))
	}
	if u.BurstLimit != nil && *u.BurstLimit < 0 {
		errs = append(errs, configErr(path+".burst_limit", "must not be negative"))
	}
	if u.Limit != nil && *u.Limit < 0 {
		errs = append(errs, configErr(path+".limit", "must not be negative"))
	}
	return errs
}

func (a APIConfig) protocol(path string) (domain.Protocol, error) {
	if a.APIType == "" {
		return "", configErr(path+".api_type", "is required")
	}
	p := domain.Protocol(strings.ToUpper(a.APIType))
	if !p.IsValid() {
		return "", configErr(path+".api_type", "must be REST or HTTP, got %q", a.APIType)
	}
	return p, nil
}

// integration merges the flat and nested integration settings. Flat keys
// win over the nested tables. The receiver is not modified.
func (a APIConfig) integration(path string) (domain.Integration, error) {
	in := domain.Integration{
		FunctionName: a.LambdaFunctionName,
		URL:          a.URL,
		HTTPMethod:   a.HTTPMethod,
	}
	if a.LambdaInvoke != nil && in.FunctionName == "" {
		in.FunctionName = a.LambdaInvoke.LambdaFunctionName
	}
	if a.HTTPInvoke != nil {
		if in.URL == "" {
			in.URL = a.HTTPInvoke.URL
		}
		if in.HTTPMethod == "" {
			in.HTTPMethod = a.HTTPInvoke.HTTPMethod
		}
	}

	target := strings.ToUpper(strings.TrimSpace(a.IntegrationTarget))
	if target == "" {
		switch {
		case a.LambdaInvoke != nil || (in.FunctionName != "" && in.URL == ""):
			target = string(domain.IntegrationFunction)
		case a.HTTPInvoke != nil || in.URL != "":
			target = string(domain.IntegrationHTTP)
		default:
			return domain.Integration{}, configErr(path+".integration_target", "is required")
		}
	}

	switch domain.IntegrationKind(target) {
	case domain.IntegrationFunction:
		if in.FunctionName == "" {
			return domain.Integration{}, configErr(path+".lambda_function_name", "is required for LAMBDA integrations")
		}
		return domain.Integration{Kind: domain.IntegrationFunction, FunctionName: in.FunctionName}, nil
	case domain.IntegrationHTTP:
		if in.URL == "" {
			return domain.Integration{}, configErr(path+".url", "is required for HTTP URI integrations")
		}
		method := strings.ToUpper(in.HTTPMethod)
		if method == "" {
			method = DefaultHTTPMethod
		}
		if !knownMethods[method] {
			return domain.Integration{}, configErr(path+".http_method", "unknown method %q", in.HTTPMethod)
		}
		return domain.Integration{Kind: domain.IntegrationHTTP, URL: in.URL, HTTPMethod: method}, nil
	}
	return domain.Integration{}, configErr(path+".integration_target", "must be LAMBDA or \"HTTP URI\", got %q", a.IntegrationTarget)
}

type routeTable struct {
	key  string
	path string
	cfg  RouteConfig
}

// routeTables returns the [resources] and [routes] tables of a gateway in
// key order, with resource_path defaulted to the table key.
func (a APIConfig) routeTables(path string) ([]routeTable, error) {
	var out []routeTable
	for _, key := range sortedKeys(a.Resources) {
		out = append(out, routeTable{key: key, path: path + ".resources." + key, cfg: a.Resources[key]})
	}
	for _, key := range sortedKeys(a.Routes) {
		if _, dup := a.Resources[key]; dup {
			return out, configErr(path+".routes."+key, "declared in both resources and routes")
		}
		out = append(out, routeTable{key: key, path: path + ".routes." + key, cfg: a.Routes[key]})
	}
	for i := range out {
		if out[i].cfg.ResourcePath == "" {
			out[i].cfg.ResourcePath = out[i].key
		}
	}
	return out, nil
}

// apiKeyMethods interprets require_api_key: a bool applies to every
// method, a list names the methods.
func apiKeyMethods(v any, methods []string) (map[string]bool, error) {
	out := make(map[string]bool)
	all := func() {
		for _, m := range methods {
			out[strings.ToUpper(m)] = true
		}
	}
	switch t := v.(type) {
	case nil:
	case bool:
		if t {
			all()
		}
	case string:
		switch strings.ToLower(t) {
		case "true":
			all()
		case "false", "":
		default:
			out[strings.ToUpper(t)] = true
		}
	case []string:
		for _, m := range t {
			out[strings.ToUpper(m)] = true
		}
	case []any:
		for _, m := range t {
			s, ok := m.(string)
			if !ok {
				return nil, fmt.Errorf("list entries must be method names, got %T", m)
			}
			out[strings.ToUpper(s)] = true
		}
	default:
		return nil, fmt.Errorf("must be a bool or a list of methods, got %T", v)
	}
	for m := range out {
		if !knownMethods[m] {
			return nil, fmt.Errorf("unknown method %q", m)
		}
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortErrors(errs []error) {
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
}
