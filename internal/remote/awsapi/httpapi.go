package awsapi

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2"
	"github.com/aws/aws-sdk-go-v2/service/apigatewayv2/types"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/remote"
)

// RouteClient implements remote.RouteAPIs with the API Gateway v2 API.
type RouteClient struct {
	api *apigatewayv2.Client
}

// NewRouteClient creates a RouteClient from an aws.Config.
func NewRouteClient(cfg aws.Config) *RouteClient {
	return &RouteClient{api: apigatewayv2.NewFromConfig(cfg)}
}

var _ remote.RouteAPIs = (*RouteClient)(nil)

func (c *RouteClient) LookupHTTPAPI(ctx context.Context, name string) (string, bool, error) {
	var token *string
	for {
		out, err := c.api.GetApis(ctx, &apigatewayv2.GetApisInput{NextToken: token})
		if err != nil {
			return "", false, remote.Classify("GetApis", err)
		}
		for _, item := range out.Items {
			if aws.ToString(item.Name) == name {
				return aws.ToString(item.ApiId), true, nil
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return "", false, nil
		}
		token = out.NextToken
	}
}

func (c *RouteClient) CreateHTTPAPI(ctx context.Context, name string, cors domain.CORSConfig) (string, error) {
	out, err := c.api.CreateApi(ctx, &apigatewayv2.CreateApiInput{
		Name:         aws.String(name),
		ProtocolType: types.ProtocolTypeHttp,
		CorsConfiguration: &types.Cors{
			AllowOrigins: cors.AllowOrigins,
			AllowMethods: cors.AllowMethods,
			AllowHeaders: cors.AllowHeaders,
			MaxAge:       aws.Int32(cors.MaxAge),
		},
	})
	if err != nil {
		return "", remote.Classify("CreateApi", err)
	}
	return aws.ToString(out.ApiId), nil
}

func (c *RouteClient) ListAuthorizers(ctx context.Context, apiID string) ([]remote.Authorizer, error) {
	var (
		authorizers []remote.Authorizer
		token       *string
	)
	for {
		out, err := c.api.GetAuthorizers(ctx, &apigatewayv2.GetAuthorizersInput{ApiId: aws.String(apiID), NextToken: token})
		if err != nil {
			return nil, remote.Classify("GetAuthorizers", err)
		}
		for _, item := range out.Items {
			authorizers = append(authorizers, remote.Authorizer{ID: aws.ToString(item.AuthorizerId), Name: aws.ToString(item.Name)})
		}
		if aws.ToString(out.NextToken) == "" {
			return authorizers, nil
		}
		token = out.NextToken
	}
}

func (c *RouteClient) CreateAuthorizer(ctx context.Context, apiID string, spec remote.AuthorizerSpec) (remote.Authorizer, error) {
	in := &apigatewayv2.CreateAuthorizerInput{
		ApiId:                        aws.String(apiID),
		Name:                         aws.String(spec.Name),
		AuthorizerType:               types.AuthorizerType(spec.Type),
		IdentitySource:               spec.IdentitySource,
		AuthorizerResultTtlInSeconds: aws.Int32(spec.TTLSeconds),
	}
	if spec.Type == string(types.AuthorizerTypeJwt) {
		in.JwtConfiguration = &types.JWTConfiguration{
			Issuer:   aws.String(spec.Issuer),
			Audience: spec.Audience,
		}
	} else {
		in.AuthorizerUri = aws.String(spec.URI)
		in.AuthorizerPayloadFormatVersion = aws.String("2.0")
		in.EnableSimpleResponses = aws.Bool(spec.EnableSimpleResponses)
	}
	out, err := c.api.CreateAuthorizer(ctx, in)
	if err != nil {
		return remote.Authorizer{}, remote.Classify("CreateAuthorizer", err)
	}
	return remote.Authorizer{ID: aws.ToString(out.AuthorizerId), Name: aws.ToString(out.Name)}, nil
}

func (c *RouteClient) ListIntegrations(ctx context.Context, apiID string) ([]remote.RouteIntegration, error) {
	var (
		integrations []remote.RouteIntegration
		token        *string
	)
	for {
		out, err := c.api.GetIntegrations(ctx, &apigatewayv2.GetIntegrationsInput{ApiId: aws.String(apiID), NextToken: token})
		if err != nil {
			return nil, remote.Classify("GetIntegrations", err)
		}
		for _, item := range out.Items {
			integrations = append(integrations, remote.RouteIntegration{
				ID:  aws.ToString(item.IntegrationId),
				URI: aws.ToString(item.IntegrationUri),
			})
		}
		if aws.ToString(out.NextToken) == "" {
			return integrations, nil
		}
		token = out.NextToken
	}
}

func (c *RouteClient) CreateIntegration(ctx context.Context, apiID string, spec remote.RouteIntegrationSpec) (remote.RouteIntegration, error) {
	in := &apigatewayv2.CreateIntegrationInput{
		ApiId:                aws.String(apiID),
		IntegrationType:      types.IntegrationType(spec.Type),
		IntegrationUri:       aws.String(spec.URI),
		PayloadFormatVersion: aws.String(spec.PayloadFormatVersion),
	}
	if spec.Method != "" {
		in.IntegrationMethod = aws.String(spec.Method)
	}
	out, err := c.api.CreateIntegration(ctx, in)
	if err != nil {
		return remote.RouteIntegration{}, remote.Classify("CreateIntegration", err)
	}
	return remote.RouteIntegration{ID: aws.ToString(out.IntegrationId), URI: aws.ToString(out.IntegrationUri)}, nil
}

func (c *RouteClient) CreateRoute(ctx context.Context, spec remote.RouteSpec) error {
	in := &apigatewayv2.CreateRouteInput{
		ApiId:    aws.String(spec.APIID),
		RouteKey: aws.String(spec.RouteKey),
	}
	if spec.Target != "" {
		in.Target = aws.String(spec.Target)
	}
	if spec.AuthorizerID != "" {
		in.AuthorizerId = aws.String(spec.AuthorizerID)
		in.AuthorizationType = types.AuthorizationType(spec.AuthorizationType)
	}
	_, err := c.api.CreateRoute(ctx, in)
	return remote.Classify("CreateRoute", err)
}

func (c *RouteClient) CreateStage(ctx context.Context, apiID, stage string) error {
	_, err := c.api.CreateStage(ctx, &apigatewayv2.CreateStageInput{
		ApiId:      aws.String(apiID),
		StageName:  aws.String(stage),
		AutoDeploy: aws.Bool(true),
	})
	return remote.Classify("CreateStage", err)
}
