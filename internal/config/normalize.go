package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oriys/gatewayctl/internal/domain"
)

// Resolved is the document narrowed to one stage, with defaults applied and
// placeholders resolved. It shares no maps or slices with the Document.
type Resolved struct {
	Stage     domain.Stage               `json:"stage" yaml:"stage"`
	Settings  Settings                   `json:"-" yaml:"-"`
	Roles     []domain.RoleSpec          `json:"roles,omitempty" yaml:"roles,omitempty"`
	Functions []domain.FunctionSpec      `json:"functions,omitempty" yaml:"functions,omitempty"`
	Gateways  []domain.GatewayDescriptor `json:"gateways" yaml:"gateways"`
}

// Resolve validates the document and normalizes it for stageKey.
// ACCOUNT_ID overrides the stage's account_id and AWS_REGION backs its
// region; lookup is usually os.LookupEnv.
func (d *Document) Resolve(stageKey string, lookup LookupFunc) (*Resolved, error) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	stage, err := d.stage(stageKey, lookup)
	if err != nil {
		return nil, err
	}
	res := &Resolved{Stage: stage, Settings: d.Settings}

	vars := stageVars(stage)
	var errs []error
	for _, key := range sortedKeys(d.IAMRoles) {
		role, err := d.IAMRoles[key].resolve(key, vars, lookup)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.Roles = append(res.Roles, role)
	}
	for _, key := range sortedKeys(d.Lambda) {
		if svc := d.Lambda[key].Service; svc != nil {
			res.Functions = append(res.Functions, svc.resolve(key, stage.Region))
		}
	}
	for _, key := range sortedKeys(d.APIs) {
		gw, err := d.APIs[key].resolve(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res.Gateways = append(res.Gateways, gw)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return res, nil
}

// Gateway returns the resolved gateway with the given table key.
func (r *Resolved) Gateway(key string) (domain.GatewayDescriptor, bool) {
	for _, gw := range r.Gateways {
		if gw.Key == key {
			return gw, true
		}
	}
	return domain.GatewayDescriptor{}, false
}

func (d *Document) stage(key string, lookup LookupFunc) (domain.Stage, error) {
	if key == "" {
		key = DefaultStage
	}
	sc, ok := d.Stages[key]
	if !ok {
		return domain.Stage{}, configErr("stages."+key, "stage is not defined")
	}

	st := domain.Stage{
		Key:         key,
		Name:        sc.StageName,
		Region:      sc.Region,
		AccountID:   sc.AccountID,
		SecretsFile: sc.SecretsFile,
		Variables:   make(map[string]string, len(d.Variables[key])),
	}
	for k, v := range d.Variables[key] {
		st.Variables[k] = v
	}
	if st.Name == "" {
		st.Name = key
	}
	if st.SecretsFile == "" {
		st.SecretsFile = DefaultSecretsFile
	}
	if v, ok := lookup("ACCOUNT_ID"); ok && v != "" {
		st.AccountID = v
	}
	if st.Region == "" {
		if v, ok := lookup("AWS_REGION"); ok {
			st.Region = v
		}
	}
	if st.Region == "" {
		return domain.Stage{}, configErr("stages."+key+".region", "is required (or set AWS_REGION)")
	}
	return st, nil
}

func stageVars(st domain.Stage) map[string]string {
	vars := make(map[string]string, len(st.Variables)+3)
	for k, v := range st.Variables {
		vars[k] = v
	}
	if st.AccountID != "" {
		vars["account_id"] = st.AccountID
	}
	vars["region"] = st.Region
	vars["stage"] = st.Name
	return vars
}

func (r RoleConfig) resolve(key string, vars map[string]string, lookup LookupFunc) (domain.RoleSpec, error) {
	role := domain.RoleSpec{
		Key:             key,
		Name:            r.RoleName,
		TrustPolicyPath: r.TrustPolicyPath,
		Debug:           r.Debug,
	}
	if role.TrustPolicyPath == "" {
		role.TrustPolicyPath = fmt.Sprintf("policies/%s_trust.json", r.RoleName)
	}
	if len(r.ManagedPolicies) > 0 {
		role.ManagedPolicies = make(map[string]string, len(r.ManagedPolicies))
		for name, arn := range r.ManagedPolicies {
			role.ManagedPolicies[name] = arn
		}
	}

	for _, name := range sortedKeys(r.InlinePolicies) {
		p := r.InlinePolicies[name]
		path := "iam_roles." + key + ".inline_policies." + name + ".resource"
		resources, err := InterpolateAll(path, p.Resource, vars, lookup)
		if err != nil {
			return domain.RoleSpec{}, err
		}
		effect := p.Effect
		if effect == "" {
			effect = "Allow"
		}
		role.InlinePolicies = append(role.InlinePolicies, domain.InlinePolicy{
			Name: name,
			Document: domain.PolicyDocument{
				Version: domain.PolicyVersion,
				Statement: []domain.PolicyStatement{{
					Effect:   effect,
					Action:   append([]string(nil), p.Action...),
					Resource: resources,
				}},
			},
		})
	}
	return role, nil
}

func (f FunctionConfig) resolve(key, region string) domain.FunctionSpec {
	fn := domain.FunctionSpec{
		Key:        key,
		Name:       f.FunctionName,
		RoleName:   f.RoleName,
		Runtime:    f.Runtime,
		Handler:    f.Handler,
		ZipFile:    f.ZipFile,
		Region:     f.Region,
		Timeout:    f.Timeout,
		MemorySize: f.MemorySize,
	}
	if fn.Region == "" {
		fn.Region = region
	}
	if fn.Timeout == 0 {
		fn.Timeout = DefaultFunctionTimeout
	}
	if fn.MemorySize == 0 {
		fn.MemorySize = DefaultFunctionMemory
	}
	if len(f.Environment) > 0 {
		fn.Environment = make(map[string]string, len(f.Environment))
		for k, v := range f.Environment {
			fn.Environment[k] = v
		}
	}
	return fn
}

func (a APIConfig) resolve(key string) (domain.GatewayDescriptor, error) {
	path := "apis." + key
	protocol, err := a.protocol(path)
	if err != nil {
		return domain.GatewayDescriptor{}, err
	}
	integration, err := a.integration(path)
	if err != nil {
		return domain.GatewayDescriptor{}, err
	}

	gw := domain.GatewayDescriptor{
		Key:                key,
		Name:               a.Name,
		Protocol:           protocol,
		Mode:               domain.ModeAuto,
		Integration:        integration,
		CORS:               a.CORS.resolve(),
		UsagePlan:          a.UsagePlan.resolve(),
		CleanupPermissions: a.CleanupPermissions,
	}
	if a.CreationMode != "" {
		gw.Mode = domain.CreationMode(strings.ToLower(a.CreationMode))
	}

	if len(a.Authorizers) > 0 {
		gw.Authorizers = make(map[domain.AuthorizerName]domain.AuthorizerDef, len(a.Authorizers))
		for name, c := range a.Authorizers {
			gw.Authorizers[name] = c.resolve(name, protocol)
		}
	}

	tables, err := a.routeTables(path)
	if err != nil {
		return domain.GatewayDescriptor{}, err
	}
	for _, t := range tables {
		route, err := t.cfg.resolve(t.path)
		if err != nil {
			return domain.GatewayDescriptor{}, err
		}
		gw.Routes = append(gw.Routes, route)
	}
	return gw, nil
}

func (c AuthorizerConfig) kind(p domain.Protocol) domain.AuthorizerKind {
	if c.Type != "" {
		return domain.AuthorizerKind(strings.ToUpper(c.Type))
	}
	if p == domain.ProtocolHTTP {
		return domain.AuthorizerLambda
	}
	return domain.AuthorizerToken
}

func (c AuthorizerConfig) resolve(name string, p domain.Protocol) domain.AuthorizerDef {
	def := domain.AuthorizerDef{
		Name:         name,
		Kind:         c.kind(p),
		FunctionName: c.AuthorizerFunctionName,
		Issuer:       c.Issuer,
		Audience:     append([]string(nil), c.Audience...),
		TTLSeconds:   DefaultTTLSeconds,
		ResponseMode: strings.ToLower(c.ResponseMode),
	}
	if c.TTLSeconds != nil {
		def.TTLSeconds = *c.TTLSeconds
	}
	if def.ResponseMode == "" {
		def.ResponseMode = DefaultResponseMode
	}
	switch {
	case len(c.IdentitySource) > 0:
		def.IdentitySource = append([]string(nil), c.IdentitySource...)
	case p == domain.ProtocolHTTP:
		def.IdentitySource = []string{httpIdentitySource}
	default:
		def.IdentitySource = []string{restIdentitySource}
	}
	return def
}

func (r RouteConfig) resolve(path string) (domain.Route, error) {
	segments, err := domain.SplitPath(r.ResourcePath)
	if err != nil {
		return domain.Route{}, configErr(path+".resource_path", "%v", err)
	}
	route := domain.Route{
		Path: strings.Join(segments, "/"),
		CORS: r.CORSEnabled,
	}

	seen := make(map[string]bool, len(r.Methods))
	for _, m := range r.Methods {
		m = strings.ToUpper(m)
		if !seen[m] {
			seen[m] = true
			route.Methods = append(route.Methods, m)
		}
	}

	if len(r.Authorization) > 0 {
		route.Authorization = make(map[string]domain.AuthorizerName, len(r.Authorization))
		for m, name := range r.Authorization {
			route.Authorization[strings.ToUpper(m)] = name
		}
	}
	if len(r.RequestValidator) > 0 {
		route.Validation = make(map[string]domain.ValidationMode, len(r.RequestValidator))
		for m, v := range r.RequestValidator {
			mode, _ := domain.ParseValidationMode(v)
			if mode != domain.ValidateNone {
				route.Validation[strings.ToUpper(m)] = mode
			}
		}
	}

	keys, err := apiKeyMethods(r.RequireAPIKey, route.Methods)
	if err != nil {
		return domain.Route{}, configErr(path+".require_api_key", "%v", err)
	}
	if len(keys) > 0 {
		route.APIKeyRequired = keys
	}
	return route, nil
}

func (c *CORSConfig) resolve() domain.CORSConfig {
	out := domain.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       DefaultCORSMaxAge,
	}
	if c == nil {
		return out
	}
	if len(c.AllowOrigins) > 0 {
		out.AllowOrigins = append([]string(nil), c.AllowOrigins...)
	}
	if len(c.AllowMethods) > 0 {
		out.AllowMethods = append([]string(nil), c.AllowMethods...)
	}
	if len(c.AllowHeaders) > 0 {
		out.AllowHeaders = append([]string(nil), c.AllowHeaders...)
	}
	if c.MaxAge != nil {
		out.MaxAge = *c.MaxAge
	}
	return out
}

func (u *UsagePlanConfig) resolve() domain.UsagePlanPolicy {
	out := domain.UsagePlanPolicy{
		RateLimit:   DefaultRateLimit,
		BurstLimit:  DefaultBurstLimit,
		QuotaLimit:  DefaultQuotaLimit,
		QuotaPeriod: domain.QuotaMonth,
	}
	if u == nil {
		return out
	}
	if u.RateLimit != nil {
		out.RateLimit = *u.RateLimit
	}
	if u.BurstLimit != nil {
		out.BurstLimit = *u.BurstLimit
	}
	if u.Limit != nil {
		out.QuotaLimit = *u.Limit
	}
	if u.Period != "" {
		out.QuotaPeriod = domain.QuotaPeriod(strings.ToUpper(u.Period))
	}
	return out
}
