package awsapi

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/oriys/gatewayctl/internal/remote"
)

const gatewayPrincipal = "apigateway.amazonaws.com"

// FunctionClient implements remote.Functions with the Lambda API.
type FunctionClient struct {
	api *lambda.Client
}

// NewFunctionClient creates a FunctionClient from an aws.Config.
func NewFunctionClient(cfg aws.Config) *FunctionClient {
	return &FunctionClient{api: lambda.NewFromConfig(cfg)}
}

// Lambda exposes the underlying client for deployment and permission cleanup.
func (c *FunctionClient) Lambda() *lambda.Client {
	return c.api
}

var _ remote.Functions = (*FunctionClient)(nil)

func (c *FunctionClient) FunctionARN(ctx context.Context, name string) (string, error) {
	out, err := c.api.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)})
	if err != nil {
		return "", remote.Classify("GetFunction", err)
	}
	if out.Configuration == nil {
		return "", remote.NewError("GetFunction", remote.KindNotFound, "function %q has no configuration", name)
	}
	return aws.ToString(out.Configuration.FunctionArn), nil
}

func (c *FunctionClient) AddPermission(ctx context.Context, perm remote.Permission) error {
	_, err := c.api.AddPermission(ctx, &lambda.AddPermissionInput{
		FunctionName: aws.String(perm.FunctionName),
		StatementId:  aws.String(perm.StatementID),
		Action:       aws.String("lambda:InvokeFunction"),
		Principal:    aws.String(gatewayPrincipal),
		SourceArn:    aws.String(perm.SourceARN),
	})
	return remote.Classify("AddPermission", err)
}
