package domain

// PolicyVersion is the IAM policy language version of every generated document.
const PolicyVersion = "2012-10-17"

// PolicyStatement is one IAM policy statement.
type PolicyStatement struct {
	Effect    string            `json:"Effect" yaml:"effect"`
	Principal map[string]string `json:"Principal,omitempty" yaml:"principal,omitempty"`
	Action    []string          `json:"Action" yaml:"action"`
	Resource  []string          `json:"Resource,omitempty" yaml:"resource,omitempty"`
}

// PolicyDocument is an IAM policy document.
type PolicyDocument struct {
	Version   string            `json:"Version" yaml:"version"`
	Statement []PolicyStatement `json:"Statement" yaml:"statement"`
}

// InlinePolicy is a named policy embedded in a role, with placeholders
// already resolved.
type InlinePolicy struct {
	Name     string         `json:"name" yaml:"name"`
	Document PolicyDocument `json:"document" yaml:"document"`
}

// RoleSpec describes an execution role to provision.
type RoleSpec struct {
	Key             string            `json:"key" yaml:"key"`
	Name            string            `json:"role_name" yaml:"role_name"`
	TrustPolicyPath string            `json:"trust_policy_path" yaml:"trust_policy_path"`
	ManagedPolicies map[string]string `json:"managed_policies,omitempty" yaml:"managed_policies,omitempty"`
	InlinePolicies  []InlinePolicy    `json:"inline_policies,omitempty" yaml:"inline_policies,omitempty"`
	Debug           bool              `json:"debug,omitempty" yaml:"debug,omitempty"`
}

// FunctionSpec describes a backend function to deploy.
type FunctionSpec struct {
	Key         string            `json:"key" yaml:"key"`
	Name        string            `json:"function_name" yaml:"function_name"`
	RoleName    string            `json:"role_name" yaml:"role_name"`
	Runtime     string            `json:"runtime" yaml:"runtime"`
	Handler     string            `json:"handler" yaml:"handler"`
	ZipFile     string            `json:"zip_file" yaml:"zip_file"`
	Region      string            `json:"region" yaml:"region"`
	Timeout     int32             `json:"timeout" yaml:"timeout"`
	MemorySize  int32             `json:"memory_size" yaml:"memory_size"`
	Environment map[string]string `json:"environment,omitempty" yaml:"environment,omitempty"`
}
