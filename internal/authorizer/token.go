// Package authorizer implements the token-compare decision function used
// by TOKEN authorizers.
package authorizer

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// DefaultParameter holds the expected token.
const DefaultParameter = "/myapp/access-token"

// ErrUnauthorized is mapped by the gateway to a 401 response.
var ErrUnauthorized = errors.New("Unauthorized")

// ParameterAPI reads one SSM parameter.
type ParameterAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// TokenAuthorizer allows a request when its token equals the stored one.
type TokenAuthorizer struct {
	params    ParameterAPI
	parameter string
	log       *slog.Logger
}

func NewTokenAuthorizer(params ParameterAPI, parameter string, log *slog.Logger) *TokenAuthorizer {
	if parameter == "" {
		parameter = DefaultParameter
	}
	if log == nil {
		log = slog.Default()
	}
	return &TokenAuthorizer{params: params, parameter: parameter, log: log}
}

// Handle returns an Allow policy for a matching token and a Deny policy
// otherwise. A missing token or an unreadable parameter is ErrUnauthorized.
func (a *TokenAuthorizer) Handle(ctx context.Context, req events.APIGatewayCustomAuthorizerRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	if req.AuthorizationToken == "" {
		a.log.Info("request without token", "method_arn", req.MethodArn)
		return events.APIGatewayCustomAuthorizerResponse{}, ErrUnauthorized
	}

	out, err := a.params.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(a.parameter),
		WithDecryption: aws.Bool(true),
	})
	if err != nil || out.Parameter == nil {
		a.log.Error("read expected token failed", "parameter", a.parameter, "error", err)
		return events.APIGatewayCustomAuthorizerResponse{}, ErrUnauthorized
	}

	expected := aws.ToString(out.Parameter.Value)
	effect := "Deny"
	if subtle.ConstantTimeCompare([]byte(req.AuthorizationToken), []byte(expected)) == 1 {
		effect = "Allow"
	}
	a.log.Info("authorization decided", "effect", effect, "method_arn", req.MethodArn)
	return Policy("user", effect, req.MethodArn), nil
}

// Policy builds the decision document for principal on resource.
func Policy(principal, effect, resource string) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principal,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{{
				Action:   []string{"execute-api:Invoke"},
				Effect:   effect,
				Resource: []string{resource},
			}},
		},
	}
}
