package function

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/gatewayctl/internal/domain"
)

type fakeLambda struct {
	functions map[string]*lambda.CreateFunctionInput
	updated   []string
	policy    string
	removed   []string
	failSid   string
}

func newFakeLambda() *fakeLambda {
	return &fakeLambda{functions: map[string]*lambda.CreateFunctionInput{}}
}

func notFound() error {
	return &smithy.GenericAPIError{Code: "ResourceNotFoundException", Message: "not found"}
}

func arnOf(name string) string {
	return "arn:aws:lambda:us-east-1:123456789012:function:" + name
}

func (f *fakeLambda) GetFunction(_ context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	name := aws.ToString(in.FunctionName)
	if _, ok := f.functions[name]; !ok {
		return nil, notFound()
	}
	return &lambda.GetFunctionOutput{Configuration: &types.FunctionConfiguration{FunctionArn: aws.String(arnOf(name))}}, nil
}

func (f *fakeLambda) CreateFunction(_ context.Context, in *lambda.CreateFunctionInput, _ ...func(*lambda.Options)) (*lambda.CreateFunctionOutput, error) {
	name := aws.ToString(in.FunctionName)
	f.functions[name] = in
	return &lambda.CreateFunctionOutput{FunctionArn: aws.String(arnOf(name))}, nil
}

func (f *fakeLambda) UpdateFunctionCode(_ context.Context, in *lambda.UpdateFunctionCodeInput, _ ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error) {
	name := aws.ToString(in.FunctionName)
	f.updated = append(f.updated, name)
	return &lambda.UpdateFunctionCodeOutput{FunctionArn: aws.String(arnOf(name))}, nil
}

func (f *fakeLambda) GetPolicy(_ context.Context, _ *lambda.GetPolicyInput, _ ...func(*lambda.Options)) (*lambda.GetPolicyOutput, error) {
	if f.policy == "" {
		return nil, notFound()
	}
	return &lambda.GetPolicyOutput{Policy: aws.String(f.policy)}, nil
}

func (f *fakeLambda) RemovePermission(_ context.Context, in *lambda.RemovePermissionInput, _ ...func(*lambda.Options)) (*lambda.RemovePermissionOutput, error) {
	sid := aws.ToString(in.StatementId)
	if sid == f.failSid {
		return nil, &smithy.GenericAPIError{Code: "ServiceException", Message: "boom"}
	}
	f.removed = append(f.removed, sid)
	return &lambda.RemovePermissionOutput{}, nil
}

type fakeTrust struct {
	roles []string
	err   error
}

func (f *fakeTrust) UpdateAssumeRolePolicy(_ context.Context, in *iam.UpdateAssumeRolePolicyInput, _ ...func(*iam.Options)) (*iam.UpdateAssumeRolePolicyOutput, error) {
	f.roles = append(f.roles, aws.ToString(in.RoleName))
	return &iam.UpdateAssumeRolePolicyOutput{}, f.err
}

type mapResolver map[string]string

func (m mapResolver) ResolveEnvVars(_ context.Context, env map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if r, ok := m[v]; ok {
			v = r
		}
		out[k] = v
	}
	return out, nil
}

func sampleFunction(t *testing.T) (domain.FunctionSpec, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "handler.zip"), []byte("PK\x03\x04"), 0o644))
	return domain.FunctionSpec{
		Key:         "orders",
		Name:        "orders-handler",
		RoleName:    "orders-role",
		Runtime:     "provided.al2023",
		Handler:     "bootstrap",
		ZipFile:     "handler.zip",
		Timeout:     30,
		MemorySize:  128,
		Environment: map[string]string{"GATEWAY_KEY": "$SECRET:API_KEY"},
	}, dir
}

func TestDeploy_CreatesMissingFunction(t *testing.T) {
	fn, dir := sampleFunction(t)
	l, trust := newFakeLambda(), &fakeTrust{}
	d := NewDeployer(l, trust, "123456789012", WithBaseDir(dir),
		WithEnvResolver(mapResolver{"$SECRET:API_KEY": "k-1"}))

	res, err := d.Deploy(context.Background(), fn)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, arnOf("orders-handler"), res.ARN)

	in := l.functions["orders-handler"]
	require.NotNil(t, in)
	assert.Equal(t, "arn:aws:iam::123456789012:role/orders-role", aws.ToString(in.Role))
	assert.Equal(t, int32(30), aws.ToInt32(in.Timeout))
	assert.Equal(t, int32(128), aws.ToInt32(in.MemorySize))
	assert.True(t, in.Publish)
	assert.Equal(t, "k-1", in.Environment.Variables["GATEWAY_KEY"])
	assert.Equal(t, []string{"orders-role"}, trust.roles)
}

func TestDeploy_UpdatesExistingCode(t *testing.T) {
	fn, dir := sampleFunction(t)
	l := newFakeLambda()
	l.functions["orders-handler"] = &lambda.CreateFunctionInput{}

	res, err := NewDeployer(l, nil, "123456789012", WithBaseDir(dir)).Deploy(context.Background(), fn)
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, []string{"orders-handler"}, l.updated)
}

func TestDeploy_TrustFailureIsNotFatal(t *testing.T) {
	fn, dir := sampleFunction(t)
	trust := &fakeTrust{err: errors.New("access denied")}
	_, err := NewDeployer(newFakeLambda(), trust, "123456789012", WithBaseDir(dir)).Deploy(context.Background(), fn)
	assert.NoError(t, err)
}

func TestDeploy_RequiresAccount(t *testing.T) {
	fn, dir := sampleFunction(t)
	_, err := NewDeployer(newFakeLambda(), nil, "", WithBaseDir(dir)).Deploy(context.Background(), fn)
	assert.ErrorIs(t, err, ErrAccountRequired)
}

func TestDeployAll_ContinuesAfterFailure(t *testing.T) {
	fn, dir := sampleFunction(t)
	broken := fn
	broken.Name = "broken"
	broken.ZipFile = "missing.zip"

	l := newFakeLambda()
	results := NewDeployer(l, nil, "123456789012", WithBaseDir(dir)).DeployAll(context.Background(), []domain.FunctionSpec{broken, fn})
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Error, "read deployment package")
	assert.Empty(t, results[1].Error)
	assert.Contains(t, l.functions, "orders-handler")
}

func TestCleanupPermissions(t *testing.T) {
	l := newFakeLambda()
	l.policy = `{"Version":"2012-10-17","Statement":[{"Sid":"apigateway-1"},{"Sid":"apigateway-auth-2"}]}`

	require.NoError(t, NewCleaner(l).CleanupPermissions(context.Background(), "orders-handler"))
	assert.Equal(t, []string{"apigateway-1", "apigateway-auth-2"}, l.removed)
}

func TestCleanupPermissions_NoPolicy(t *testing.T) {
	l := newFakeLambda()
	require.NoError(t, NewCleaner(l).CleanupPermissions(context.Background(), "orders-handler"))
	assert.Empty(t, l.removed)
}

func TestCleanupPermissions_ReportsFailuresAndContinues(t *testing.T) {
	l := newFakeLambda()
	l.policy = `{"Statement":[{"Sid":"a"},{"Sid":"b"},{"Sid":"c"}]}`
	l.failSid = "b"

	err := NewCleaner(l).CleanupPermissions(context.Background(), "fn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remove b")
	assert.Equal(t, []string{"a", "c"}, l.removed)
}
