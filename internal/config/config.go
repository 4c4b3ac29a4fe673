package config

import (
	"github.com/oriys/gatewayctl/internal/observability"
)

// Settings holds the ambient settings of the tool itself.
// Every field can be overridden with a GATEWAYCTL_ environment variable.
type Settings struct {
	LogLevel       string `koanf:"log_level"`
	LogFormat      string `koanf:"log_format"`
	MetricsFile    string `koanf:"metrics_file"`
	JournalDSN     string `koanf:"journal_dsn"`
	AWSProfile     string `koanf:"aws_profile"`
	SecretsKeyFile string `koanf:"secrets_key_file"` // hex AES-256 key; seals stored keys
	Strict         bool   `koanf:"strict"`

	// Static credentials; when both key fields are set they win over aws_profile.
	AWSAccessKeyID     string `koanf:"aws_access_key_id"`
	AWSSecretAccessKey string `koanf:"aws_secret_access_key"`
	AWSSessionToken    string `koanf:"aws_session_token"`

	Telemetry observability.Config `koanf:"telemetry"`
}

// StageConfig is one [stages.<name>] table.
type StageConfig struct {
	Region      string `koanf:"region"`
	AccountID   string `koanf:"account_id"`
	StageName   string `koanf:"stage_name"`
	SecretsFile string `koanf:"secrets_file"`
}

// InlinePolicyConfig is one [iam_roles.<key>.inline_policies.<name>] table.
type InlinePolicyConfig struct {
	Effect   string   `koanf:"effect"`
	Action   []string `koanf:"action"`
	Resource []string `koanf:"resource"`
}

// RoleConfig is one [iam_roles.<key>] table.
type RoleConfig struct {
	RoleName        string                        `koanf:"role_name"`
	TrustPolicyPath string                        `koanf:"trust_policy_path"`
	ManagedPolicies map[string]string             `koanf:"managed_policies"`
	InlinePolicies  map[string]InlinePolicyConfig `koanf:"inline_policies"`
	Debug           bool                          `koanf:"debug"`
}

// FunctionConfig is one [lambda.<group>.service] table.
type FunctionConfig struct {
	FunctionName string            `koanf:"function_name"`
	RoleName     string            `koanf:"role_name"`
	Runtime      string            `koanf:"runtime"`
	Handler      string            `koanf:"handler"`
	ZipFile      string            `koanf:"zip_file"`
	Region       string            `koanf:"region"`
	Timeout      int32             `koanf:"timeout"`
	MemorySize   int32             `koanf:"memory_size"`
	Environment  map[string]string `koanf:"environment"`
}

// FunctionGroup is one [lambda.<group>] table.
type FunctionGroup struct {
	Service *FunctionConfig `koanf:"service"`
}

// InvokeConfig is the nested [apis.<key>.lambda_invoke] or
// [apis.<key>.http_invoke] form of the integration target.
type InvokeConfig struct {
	LambdaFunctionName string `koanf:"lambda_function_name"`
	URL                string `koanf:"url"`
	HTTPMethod         string `koanf:"http_method"`
}

// CORSConfig is [apis.<key>.cors].
type CORSConfig struct {
	AllowOrigins []string `koanf:"allow_origins"`
	AllowMethods []string `koanf:"allow_methods"`
	AllowHeaders []string `koanf:"allow_headers"`
	MaxAge       *int32   `koanf:"max_age"`
}

// AuthorizerConfig is one [apis.<key>.authorizers.<name>] table.
type AuthorizerConfig struct {
	Type                   string   `koanf:"type"`
	Issuer                 string   `koanf:"issuer"`
	Audience               []string `koanf:"audience"`
	AuthorizerFunctionName string   `koanf:"authorizer_function_name"`
	IdentitySource         []string `koanf:"identity_source"`
	TTLSeconds             *int32   `koanf:"ttl_seconds"`
	ResponseMode           string   `koanf:"response_mode"`
}

// RouteConfig is one [apis.<key>.resources.<path>] or
// [apis.<key>.routes.<path>] table.
type RouteConfig struct {
	ResourcePath     string            `koanf:"resource_path"`
	Methods          []string          `koanf:"methods"`
	Authorization    map[string]string `koanf:"authorization"`
	RequestValidator map[string]string `koanf:"request_validator"`
	// RequireAPIKey is either a bool (every method) or a list of methods.
	RequireAPIKey any  `koanf:"require_api_key"`
	CORSEnabled   bool `koanf:"cors_enabled"`
}

// UsagePlanConfig is [apis.<key>.usage_plan].
type UsagePlanConfig struct {
	RateLimit  *float64 `koanf:"rate_limit"`
	BurstLimit *int32   `koanf:"burst_limit"`
	Limit      *int32   `koanf:"limit"`
	Period     string   `koanf:"period"`
}

// APIConfig is one [apis.<key>] table.
type APIConfig struct {
	Name               string                      `koanf:"name"`
	APIType            string                      `koanf:"api_type"`
	CreationMode       string                      `koanf:"api_creation_mode"`
	IntegrationTarget  string                      `koanf:"integration_target"`
	LambdaFunctionName string                      `koanf:"lambda_function_name"`
	URL                string                      `koanf:"url"`
	HTTPMethod         string                      `koanf:"http_method"`
	LambdaInvoke       *InvokeConfig               `koanf:"lambda_invoke"`
	HTTPInvoke         *InvokeConfig               `koanf:"http_invoke"`
	CORS               *CORSConfig                 `koanf:"cors"`
	Authorizers        map[string]AuthorizerConfig `koanf:"authorizers"`
	Resources          map[string]RouteConfig      `koanf:"resources"`
	Routes             map[string]RouteConfig      `koanf:"routes"`
	UsagePlan          *UsagePlanConfig            `koanf:"usage_plan"`
	CleanupPermissions bool                        `koanf:"cleanup_permissions"`
}

// Document is the whole declarative configuration file.
type Document struct {
	Settings  Settings                     `koanf:"settings"`
	Stages    map[string]StageConfig       `koanf:"stages"`
	Variables map[string]map[string]string `koanf:"variables"`
	IAMRoles  map[string]RoleConfig        `koanf:"iam_roles"`
	Lambda    map[string]FunctionGroup     `koanf:"lambda"`
	APIs      map[string]APIConfig         `koanf:"apis"`
}

// DefaultSettings returns Settings with sensible defaults
func DefaultSettings() Settings {
	return Settings{
		LogLevel:  "info",
		LogFormat: "text",
		Telemetry: observability.Config{
			Enabled:     false,
			Exporter:    "otlp-http",
			Endpoint:    "localhost:4318",
			Insecure:    true,
			ServiceName: "gatewayctl",
			SampleRate:  1.0,
		},
	}
}

// Defaults applied during normalization.
const (
	DefaultStage           = "dev"
	DefaultSecretsFile     = ".env"
	DefaultHTTPMethod      = "GET"
	DefaultTTLSeconds      = 300
	DefaultResponseMode    = "simple"
	DefaultFunctionTimeout = 30
	DefaultFunctionMemory  = 128
	DefaultCORSMaxAge      = 3600
	DefaultRateLimit       = 100
	DefaultBurstLimit      = 20
	DefaultQuotaLimit      = 1000

	restIdentitySource = "method.request.header.Authorization"
	httpIdentitySource = "$request.header.Authorization"
)
