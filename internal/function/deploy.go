// Package function deploys backend and authorizer functions and manages
// their resource policies.
package function

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/logging"
	"github.com/oriys/gatewayctl/internal/metrics"
	"github.com/oriys/gatewayctl/internal/remote"
)

// ErrAccountRequired is returned when no account id is known.
var ErrAccountRequired = errors.New("ACCOUNT_ID is required to deploy functions")

// LambdaAPI is the subset of the Lambda client used here.
type LambdaAPI interface {
	GetFunction(ctx context.Context, in *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	CreateFunction(ctx context.Context, in *lambda.CreateFunctionInput, optFns ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, in *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
	GetPolicy(ctx context.Context, in *lambda.GetPolicyInput, optFns ...func(*lambda.Options)) (*lambda.GetPolicyOutput, error)
	RemovePermission(ctx context.Context, in *lambda.RemovePermissionInput, optFns ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error)
}

// TrustAPI refreshes a role's trust policy.
type TrustAPI interface {
	UpdateAssumeRolePolicy(ctx context.Context, in *iam.UpdateAssumeRolePolicyInput, optFns ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error)
}

// EnvResolver expands references in function environment variables.
type EnvResolver interface {
	ResolveEnvVars(ctx context.Context, env map[string]string) (map[string]string, error)
}

// Result is what happened to one function.
type Result struct {
	Key          string `json:"key" yaml:"key"`
	FunctionName string `json:"function_name" yaml:"function_name"`
	ARN          string `json:"arn,omitempty" yaml:"arn,omitempty"`
	Created      bool   `json:"created" yaml:"created"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Deployer creates functions or updates their code.
type Deployer struct {
	lambda    LambdaAPI
	trust     TrustAPI
	resolver  EnvResolver
	accountID string
	baseDir   string
}

// Option configures a Deployer.
type Option func(*Deployer)

// WithEnvResolver expands $SECRET: references in function environments.
func WithEnvResolver(r EnvResolver) Option {
	return func(d *Deployer) { d.resolver = r }
}

// WithBaseDir resolves relative zip paths against dir.
func WithBaseDir(dir string) Option {
	return func(d *Deployer) { d.baseDir = dir }
}

func NewDeployer(l LambdaAPI, trust TrustAPI, accountID string, opts ...Option) *Deployer {
	d := &Deployer{lambda: l, trust: trust, accountID: accountID, baseDir: "."}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RoleARN is the execution role ARN for roleName.
func (d *Deployer) RoleARN(roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", d.accountID, roleName)
}

// DeployAll deploys every function. A failed function is reported in its
// Result and does not stop the rest.
func (d *Deployer) DeployAll(ctx context.Context, fns []domain.FunctionSpec) []Result {
	out := make([]Result, 0, len(fns))
	for _, fn := range fns {
		res, err := d.Deploy(ctx, fn)
		if err != nil {
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out
}

// Deploy creates fn, or uploads new code when it already exists.
func (d *Deployer) Deploy(ctx context.Context, fn domain.FunctionSpec) (Result, error) {
	log := logging.Op().With("function", fn.Name)
	res := Result{Key: fn.Key, FunctionName: fn.Name}

	if d.accountID == "" {
		return res, ErrAccountRequired
	}

	zipPath := fn.ZipFile
	if !filepath.IsAbs(zipPath) {
		zipPath = filepath.Join(d.baseDir, zipPath)
	}
	code, err := os.ReadFile(zipPath)
	if err != nil {
		log.Error("read deployment package failed", "path", zipPath, "error", err)
		return res, fmt.Errorf("read deployment package: %w", err)
	}

	d.refreshTrust(ctx, fn.RoleName)

	env := fn.Environment
	if d.resolver != nil && len(env) > 0 {
		if env, err = d.resolver.ResolveEnvVars(ctx, env); err != nil {
			return res, fmt.Errorf("resolve environment: %w", err)
		}
	}

	_, err = d.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(fn.Name)})
	switch err = remote.Classify("GetFunction", err); {
	case remote.IsNotFound(err):
		in := &lambda.CreateFunctionInput{
			FunctionName: aws.String(fn.Name),
			Role:         aws.String(d.RoleARN(fn.RoleName)),
			Runtime:      types.Runtime(fn.Runtime),
			Handler:      aws.String(fn.Handler),
			Code:         &types.FunctionCode{ZipFile: code},
			Timeout:      aws.Int32(fn.Timeout),
			MemorySize:   aws.Int32(fn.MemorySize),
			Publish:      true,
		}
		if len(env) > 0 {
			in.Environment = &types.Environment{Variables: env}
		}
		out, err := d.lambda.CreateFunction(ctx, in)
		if err != nil {
			metrics.RecordStep("function", "failed")
			log.Error("create function failed", "step", "function", "outcome", "failed", "error", err)
			return res, fmt.Errorf("create function %s: %w", fn.Name, remote.Classify("CreateFunction", err))
		}
		res.Created = true
		res.ARN = aws.ToString(out.FunctionArn)
		metrics.RecordStep("function", "created")
		log.Info("function created", "step", "function", "outcome", "created", "arn", res.ARN)
	case err != nil:
		return res, fmt.Errorf("get function %s: %w", fn.Name, err)
	default:
		out, err := d.lambda.UpdateFunctionCode(ctx, &lambda.UpdateFunctionCodeInput{
			FunctionName: aws.String(fn.Name),
			ZipFile:      code,
			Publish:      true,
		})
		if err != nil {
			metrics.RecordStep("function", "failed")
			log.Error("update function code failed", "step", "function", "outcome", "failed", "error", err)
			return res, fmt.Errorf("update function %s: %w", fn.Name, remote.Classify("UpdateFunctionCode", err))
		}
		res.ARN = aws.ToString(out.FunctionArn)
		metrics.RecordStep("function", "reused")
		log.Info("function code updated", "step", "function", "outcome", "reused", "arn", res.ARN)
	}
	return res, nil
}

// functionTrust lets the function service assume the execution role.
var functionTrust = domain.PolicyDocument{
	Version: domain.PolicyVersion,
	Statement: []domain.PolicyStatement{{
		Effect:    "Allow",
		Principal: map[string]string{"Service": "lambda.amazonaws.com"},
		Action:    []string{"sts:AssumeRole"},
	}},
}

// refreshTrust rewrites the role's trust policy. A failure is only logged:
// the role may already trust the function service.
func (d *Deployer) refreshTrust(ctx context.Context, roleName string) {
	if d.trust == nil || roleName == "" {
		return
	}
	doc, _ := json.Marshal(functionTrust)
	_, err := d.trust.UpdateAssumeRolePolicy(ctx, &iam.UpdateAssumeRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyDocument: aws.String(string(doc)),
	})
	if err != nil {
		logging.Op().Warn("refresh trust policy failed", "role", roleName, "error", err)
	}
}
