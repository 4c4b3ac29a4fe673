// Package iamrole provisions the execution roles used by backend and
// authorizer functions.
package iamrole

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/logging"
	"github.com/oriys/gatewayctl/internal/metrics"
	"github.com/oriys/gatewayctl/internal/remote"
)

// API is the subset of the IAM client used here.
type API interface {
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	GetRole(ctx context.Context, in *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, optFns ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
	PutRolePolicy(ctx context.Context, in *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
}

// Result is what happened to one role.
type Result struct {
	Key      string   `json:"key" yaml:"key"`
	RoleName string   `json:"role_name" yaml:"role_name"`
	ARN      string   `json:"arn,omitempty" yaml:"arn,omitempty"`
	Created  bool     `json:"created" yaml:"created"`
	Attached []string `json:"attached,omitempty" yaml:"attached,omitempty"`
	Inline   []string `json:"inline,omitempty" yaml:"inline,omitempty"`
	Failed   []string `json:"failed,omitempty" yaml:"failed,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Provisioner creates roles and their policies.
type Provisioner struct {
	api      API
	baseDir  string
	debugDir string
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithBaseDir resolves relative trust policy paths against dir.
func WithBaseDir(dir string) Option {
	return func(p *Provisioner) { p.baseDir = dir }
}

// WithDebugDir sets where debug policy dumps are written.
func WithDebugDir(dir string) Option {
	return func(p *Provisioner) { p.debugDir = dir }
}

func New(api API, opts ...Option) *Provisioner {
	p := &Provisioner{api: api, baseDir: ".", debugDir: "."}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnsureAll provisions every role. A failed role is reported in its
// Result and does not stop the rest.
func (p *Provisioner) EnsureAll(ctx context.Context, roles []domain.RoleSpec) []Result {
	out := make([]Result, 0, len(roles))
	for _, r := range roles {
		res, err := p.Ensure(ctx, r)
		if err != nil {
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out
}

// Ensure creates the role or adopts an existing one, then attaches its
// managed policies and puts its inline policies. Failures of individual
// policies are logged and recorded in Result.Failed.
func (p *Provisioner) Ensure(ctx context.Context, role domain.RoleSpec) (Result, error) {
	log := logging.Op().With("role", role.Name)
	res := Result{Key: role.Key, RoleName: role.Name}

	trust, err := p.readTrustPolicy(role.TrustPolicyPath)
	if err != nil {
		log.Error("trust policy unreadable", "path", role.TrustPolicyPath, "error", err)
		return res, err
	}

	out, err := p.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(role.Name),
		AssumeRolePolicyDocument: aws.String(trust),
	})
	switch err = remote.Classify("CreateRole", err); {
	case err == nil:
		res.Created = true
		if out.Role != nil {
			res.ARN = aws.ToString(out.Role.Arn)
		}
		log.Info("role created", "step", "role", "outcome", "created", "arn", res.ARN)
		metrics.RecordStep("role", "created")
	case remote.IsConflict(err):
		got, gerr := p.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(role.Name)})
		if gerr != nil {
			return res, fmt.Errorf("get role %s: %w", role.Name, remote.Classify("GetRole", gerr))
		}
		if got.Role != nil {
			res.ARN = aws.ToString(got.Role.Arn)
		}
		log.Info("role exists", "step", "role", "outcome", "reused", "arn", res.ARN)
		metrics.RecordStep("role", "reused")
	default:
		log.Error("create role failed", "step", "role", "outcome", "failed", "error", err)
		metrics.RecordStep("role", "failed")
		return res, fmt.Errorf("create role %s: %w", role.Name, err)
	}

	names := make([]string, 0, len(role.ManagedPolicies))
	for name := range role.ManagedPolicies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		arn := role.ManagedPolicies[name]
		_, err := p.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
			RoleName:  aws.String(role.Name),
			PolicyArn: aws.String(arn),
		})
		if err != nil {
			log.Error("attach policy failed", "policy", name, "arn", arn, "error", err)
			res.Failed = append(res.Failed, name)
			continue
		}
		log.Debug("policy attached", "policy", name, "arn", arn)
		res.Attached = append(res.Attached, name)
	}

	for _, inline := range role.InlinePolicies {
		if err := p.putInline(ctx, log, role, inline); err != nil {
			log.Error("put inline policy failed", "policy", inline.Name, "error", err)
			res.Failed = append(res.Failed, inline.Name)
			continue
		}
		res.Inline = append(res.Inline, inline.Name)
	}
	return res, nil
}

func (p *Provisioner) putInline(ctx context.Context, log *slog.Logger, role domain.RoleSpec, inline domain.InlinePolicy) error {
	doc, err := json.Marshal(inline.Document)
	if err != nil {
		return fmt.Errorf("encode policy: %w", err)
	}

	if role.Debug {
		if path, err := p.dump(role.Name, inline); err != nil {
			log.Warn("debug dump failed", "policy", inline.Name, "error", err)
		} else {
			log.Info("policy written for debugging", "policy", inline.Name, "path", path)
		}
	}

	_, err = p.api.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(role.Name),
		PolicyName:     aws.String(inline.Name),
		PolicyDocument: aws.String(string(doc)),
	})
	if err != nil {
		return remote.Classify("PutRolePolicy", err)
	}
	log.Debug("inline policy put", "policy", inline.Name)
	return nil
}

// dump writes the rendered policy to debug_<role>_<name>.json.
func (p *Provisioner) dump(roleName string, inline domain.InlinePolicy) (string, error) {
	data, err := json.MarshalIndent(inline.Document, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(p.debugDir, fmt.Sprintf("debug_%s_%s.json", roleName, inline.Name))
	return path, os.WriteFile(path, data, 0o644)
}

func (p *Provisioner) readTrustPolicy(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read trust policy: %w", err)
	}
	if !json.Valid(data) {
		return "", fmt.Errorf("trust policy %s is not valid JSON", path)
	}
	return string(data), nil
}
