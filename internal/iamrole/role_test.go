package iamrole

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oriys/gatewayctl/internal/domain"
)

type fakeIAM struct {
	roles    map[string]string
	attached []string
	inline   map[string]string
	failARN  string
}

func newFakeIAM() *fakeIAM {
	return &fakeIAM{roles: map[string]string{}, inline: map[string]string{}}
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	name := aws.ToString(in.RoleName)
	if _, ok := f.roles[name]; ok {
		return nil, &smithy.GenericAPIError{Code: "EntityAlreadyExists", Message: "role exists"}
	}
	arn := "arn:aws:iam::123456789012:role/" + name
	f.roles[name] = arn
	return &iam.CreateRoleOutput{Role: &types.Role{Arn: aws.String(arn)}}, nil
}

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	arn, ok := f.roles[aws.ToString(in.RoleName)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchEntity"}
	}
	return &iam.GetRoleOutput{Role: &types.Role{Arn: aws.String(arn)}}, nil
}

func (f *fakeIAM) AttachRolePolicy(_ context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	if aws.ToString(in.PolicyArn) == f.failARN {
		return nil, &smithy.GenericAPIError{Code: "NoSuchEntity", Message: "policy missing"}
	}
	f.attached = append(f.attached, aws.ToString(in.PolicyArn))
	return &iam.AttachRolePolicyOutput{}, nil
}

func (f *fakeIAM) PutRolePolicy(_ context.Context, in *iam.PutRolePolicyInput, _ ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error) {
	f.inline[aws.ToString(in.PolicyName)] = aws.ToString(in.PolicyDocument)
	return &iam.PutRolePolicyOutput{}, nil
}

func writeTrust(t *testing.T, dir, role string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "policies"), 0o755))
	trust := `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"lambda.amazonaws.com"},"Action":"sts:AssumeRole"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "policies", role+"_trust.json"), []byte(trust), 0o644))
}

func sampleRole() domain.RoleSpec {
	return domain.RoleSpec{
		Key:             "auth",
		Name:            "auth-role",
		TrustPolicyPath: "policies/auth-role_trust.json",
		ManagedPolicies: map[string]string{
			"basic": "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole",
			"xray":  "arn:aws:iam::aws:policy/AWSXrayWriteOnlyAccess",
		},
		InlinePolicies: []domain.InlinePolicy{{
			Name: "read-token",
			Document: domain.PolicyDocument{
				Version: domain.PolicyVersion,
				Statement: []domain.PolicyStatement{{
					Effect:   "Allow",
					Action:   []string{"ssm:GetParameter"},
					Resource: []string{"arn:aws:ssm:us-east-1:123456789012:parameter/myapp/access-token"},
				}},
			},
		}},
	}
}

func TestEnsure_CreatesRoleAndPolicies(t *testing.T) {
	dir := t.TempDir()
	writeTrust(t, dir, "auth-role")
	api := newFakeIAM()
	p := New(api, WithBaseDir(dir), WithDebugDir(dir))

	res, err := p.Ensure(context.Background(), sampleRole())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "arn:aws:iam::123456789012:role/auth-role", res.ARN)
	assert.Equal(t, []string{"basic", "xray"}, res.Attached)
	assert.Equal(t, []string{"read-token"}, res.Inline)
	assert.Empty(t, res.Failed)

	var doc domain.PolicyDocument
	require.NoError(t, json.Unmarshal([]byte(api.inline["read-token"]), &doc))
	assert.Equal(t, "2012-10-17", doc.Version)
	assert.Equal(t, []string{"ssm:GetParameter"}, doc.Statement[0].Action)

	_, err = os.Stat(filepath.Join(dir, "debug_auth-role_read-token.json"))
	assert.True(t, os.IsNotExist(err), "debug dump must be off by default")
}

func TestEnsure_ExistingRoleIsReused(t *testing.T) {
	dir := t.TempDir()
	writeTrust(t, dir, "auth-role")
	api := newFakeIAM()
	api.roles["auth-role"] = "arn:aws:iam::123456789012:role/auth-role"

	res, err := New(api, WithBaseDir(dir)).Ensure(context.Background(), sampleRole())
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, "arn:aws:iam::123456789012:role/auth-role", res.ARN)
	assert.Len(t, res.Attached, 2)
}

func TestEnsure_PolicyFailureDoesNotStopRole(t *testing.T) {
	dir := t.TempDir()
	writeTrust(t, dir, "auth-role")
	api := newFakeIAM()
	api.failARN = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"

	res, err := New(api, WithBaseDir(dir)).Ensure(context.Background(), sampleRole())
	require.NoError(t, err)
	assert.Equal(t, []string{"basic"}, res.Failed)
	assert.Equal(t, []string{"xray"}, res.Attached)
	assert.Equal(t, []string{"read-token"}, res.Inline)
}

func TestEnsure_DebugDump(t *testing.T) {
	dir := t.TempDir()
	writeTrust(t, dir, "auth-role")
	role := sampleRole()
	role.Debug = true

	_, err := New(newFakeIAM(), WithBaseDir(dir), WithDebugDir(dir)).Ensure(context.Background(), role)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "debug_auth-role_read-token.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "myapp/access-token")
}

func TestEnsureAll_MissingTrustPolicyIsReported(t *testing.T) {
	dir := t.TempDir()
	writeTrust(t, dir, "auth-role")
	missing := domain.RoleSpec{Key: "other", Name: "other-role", TrustPolicyPath: "policies/other-role_trust.json"}

	api := newFakeIAM()
	results := New(api, WithBaseDir(dir)).EnsureAll(context.Background(), []domain.RoleSpec{missing, sampleRole()})
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Error, "read trust policy")
	assert.Empty(t, results[1].Error)
	assert.Contains(t, api.roles, "auth-role")
	assert.NotContains(t, api.roles, "other-role")
}
