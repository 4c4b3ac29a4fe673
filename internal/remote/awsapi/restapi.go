package awsapi

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/apigateway/types"

	"github.com/oriys/gatewayctl/internal/remote"
)

const pageLimit = 500

// RestClient implements remote.RestAPIs with the API Gateway v1 API.
type RestClient struct {
	api *apigateway.Client
}

// NewRestClient creates a RestClient from an aws.Config.
func NewRestClient(cfg aws.Config) *RestClient {
	return &RestClient{api: apigateway.NewFromConfig(cfg)}
}

var _ remote.RestAPIs = (*RestClient)(nil)

func (c *RestClient) LookupRestAPI(ctx context.Context, name string) (string, bool, error) {
	var position *string
	for {
		out, err := c.api.GetRestApis(ctx, &apigateway.GetRestApisInput{
			Limit:    aws.Int32(pageLimit),
			Position: position,
		})
		if err != nil {
			return "", false, remote.Classify("GetRestApis", err)
		}
		for _, item := range out.Items {
			if aws.ToString(item.Name) == name {
				return aws.ToString(item.Id), true, nil
			}
		}
		if aws.ToString(out.Position) == "" {
			return "", false, nil
		}
		position = out.Position
	}
}

func (c *RestClient) CreateRestAPI(ctx context.Context, name string) (string, error) {
	out, err := c.api.CreateRestApi(ctx, &apigateway.CreateRestApiInput{Name: aws.String(name)})
	if err != nil {
		return "", remote.Classify("CreateRestApi", err)
	}
	return aws.ToString(out.Id), nil
}

func (c *RestClient) ListResources(ctx context.Context, apiID string) ([]remote.Resource, error) {
	var (
		resources []remote.Resource
		position  *string
	)
	for {
		out, err := c.api.GetResources(ctx, &apigateway.GetResourcesInput{
			RestApiId: aws.String(apiID),
			Limit:     aws.Int32(pageLimit),
			Position:  position,
		})
		if err != nil {
			return nil, remote.Classify("GetResources", err)
		}
		for _, item := range out.Items {
			resources = append(resources, remote.Resource{
				ID:       aws.ToString(item.Id),
				ParentID: aws.ToString(item.ParentId),
				Path:     aws.ToString(item.Path),
				PathPart: aws.ToString(item.PathPart),
			})
		}
		if aws.ToString(out.Position) == "" {
			return resources, nil
		}
		position = out.Position
	}
}

func (c *RestClient) CreateResource(ctx context.Context, apiID, parentID, pathPart string) (remote.Resource, error) {
	out, err := c.api.CreateResource(ctx, &apigateway.CreateResourceInput{
		RestApiId: aws.String(apiID),
		ParentId:  aws.String(parentID),
		PathPart:  aws.String(pathPart),
	})
	if err != nil {
		return remote.Resource{}, remote.Classify("CreateResource", err)
	}
	return remote.Resource{
		ID:       aws.ToString(out.Id),
		ParentID: aws.ToString(out.ParentId),
		Path:     aws.ToString(out.Path),
		PathPart: aws.ToString(out.PathPart),
	}, nil
}

func (c *RestClient) ListAuthorizers(ctx context.Context, apiID string) ([]remote.Authorizer, error) {
	var (
		authorizers []remote.Authorizer
		position    *string
	)
	for {
		out, err := c.api.GetAuthorizers(ctx, &apigateway.GetAuthorizersInput{
			RestApiId: aws.String(apiID),
			Limit:     aws.Int32(pageLimit),
			Position:  position,
		})
		if err != nil {
			return nil, remote.Classify("GetAuthorizers", err)
		}
		for _, item := range out.Items {
			authorizers = append(authorizers, remote.Authorizer{ID: aws.ToString(item.Id), Name: aws.ToString(item.Name)})
		}
		if aws.ToString(out.Position) == "" {
			return authorizers, nil
		}
		position = out.Position
	}
}

func (c *RestClient) CreateAuthorizer(ctx context.Context, apiID string, spec remote.AuthorizerSpec) (remote.Authorizer, error) {
	out, err := c.api.CreateAuthorizer(ctx, &apigateway.CreateAuthorizerInput{
		RestApiId:                    aws.String(apiID),
		Name:                         aws.String(spec.Name),
		Type:                         types.AuthorizerType(spec.Type),
		AuthorizerUri:                aws.String(spec.URI),
		IdentitySource:               aws.String(strings.Join(spec.IdentitySource, ",")),
		AuthorizerResultTtlInSeconds: aws.Int32(spec.TTLSeconds),
	})
	if err != nil {
		return remote.Authorizer{}, remote.Classify("CreateAuthorizer", err)
	}
	return remote.Authorizer{ID: aws.ToString(out.Id), Name: aws.ToString(out.Name)}, nil
}

func (c *RestClient) ListRequestValidators(ctx context.Context, apiID string) ([]remote.RequestValidator, error) {
	var (
		validators []remote.RequestValidator
		position   *string
	)
	for {
		out, err := c.api.GetRequestValidators(ctx, &apigateway.GetRequestValidatorsInput{
			RestApiId: aws.String(apiID),
			Limit:     aws.Int32(pageLimit),
			Position:  position,
		})
		if err != nil {
			return nil, remote.Classify("GetRequestValidators", err)
		}
		for _, item := range out.Items {
			validators = append(validators, remote.RequestValidator{ID: aws.ToString(item.Id), Name: aws.ToString(item.Name)})
		}
		if aws.ToString(out.Position) == "" {
			return validators, nil
		}
		position = out.Position
	}
}

func (c *RestClient) CreateRequestValidator(ctx context.Context, apiID string, spec remote.ValidatorSpec) (remote.RequestValidator, error) {
	out, err := c.api.CreateRequestValidator(ctx, &apigateway.CreateRequestValidatorInput{
		RestApiId:                 aws.String(apiID),
		Name:                      aws.String(spec.Name),
		ValidateRequestBody:       spec.ValidateBody,
		ValidateRequestParameters: spec.ValidateParams,
	})
	if err != nil {
		return remote.RequestValidator{}, remote.Classify("CreateRequestValidator", err)
	}
	return remote.RequestValidator{ID: aws.ToString(out.Id), Name: aws.ToString(out.Name)}, nil
}

func (c *RestClient) PutMethod(ctx context.Context, spec remote.MethodSpec) error {
	in := &apigateway.PutMethodInput{
		RestApiId:         aws.String(spec.APIID),
		ResourceId:        aws.String(spec.ResourceID),
		HttpMethod:        aws.String(spec.HTTPMethod),
		AuthorizationType: aws.String(spec.AuthorizationType),
	}
	if spec.AuthorizerID != "" {
		in.AuthorizerId = aws.String(spec.AuthorizerID)
	}
	if spec.RequestValidatorID != "" {
		in.RequestValidatorId = aws.String(spec.RequestValidatorID)
	}
	_, err := c.api.PutMethod(ctx, in)
	return remote.Classify("PutMethod", err)
}

func (c *RestClient) PutIntegration(ctx context.Context, spec remote.IntegrationSpec) error {
	in := &apigateway.PutIntegrationInput{
		RestApiId:        aws.String(spec.APIID),
		ResourceId:       aws.String(spec.ResourceID),
		HttpMethod:       aws.String(spec.HTTPMethod),
		Type:             types.IntegrationType(spec.Type),
		RequestTemplates: spec.RequestTemplates,
	}
	if spec.IntegrationHTTPMethod != "" {
		in.IntegrationHttpMethod = aws.String(spec.IntegrationHTTPMethod)
	}
	if spec.URI != "" {
		in.Uri = aws.String(spec.URI)
	}
	_, err := c.api.PutIntegration(ctx, in)
	return remote.Classify("PutIntegration", err)
}

func (c *RestClient) PutMethodResponse(ctx context.Context, spec remote.ResponseSpec) error {
	params := make(map[string]bool, len(spec.Parameters))
	for k := range spec.Parameters {
		params[k] = true
	}
	_, err := c.api.PutMethodResponse(ctx, &apigateway.PutMethodResponseInput{
		RestApiId:          aws.String(spec.APIID),
		ResourceId:         aws.String(spec.ResourceID),
		HttpMethod:         aws.String(spec.HTTPMethod),
		StatusCode:         aws.String(spec.StatusCode),
		ResponseParameters: params,
	})
	return remote.Classify("PutMethodResponse", err)
}

func (c *RestClient) PutIntegrationResponse(ctx context.Context, spec remote.ResponseSpec) error {
	_, err := c.api.PutIntegrationResponse(ctx, &apigateway.PutIntegrationResponseInput{
		RestApiId:          aws.String(spec.APIID),
		ResourceId:         aws.String(spec.ResourceID),
		HttpMethod:         aws.String(spec.HTTPMethod),
		StatusCode:         aws.String(spec.StatusCode),
		ResponseParameters: spec.Parameters,
	})
	return remote.Classify("PutIntegrationResponse", err)
}

func (c *RestClient) SetAPIKeyRequired(ctx context.Context, apiID, resourceID, httpMethod string) error {
	_, err := c.api.UpdateMethod(ctx, &apigateway.UpdateMethodInput{
		RestApiId:  aws.String(apiID),
		ResourceId: aws.String(resourceID),
		HttpMethod: aws.String(httpMethod),
		PatchOperations: []types.PatchOperation{{
			Op:    types.OpReplace,
			Path:  aws.String("/apiKeyRequired"),
			Value: aws.String("true"),
		}},
	})
	return remote.Classify("UpdateMethod", err)
}

func (c *RestClient) CreateDeployment(ctx context.Context, apiID, stage, description string) (string, error) {
	out, err := c.api.CreateDeployment(ctx, &apigateway.CreateDeploymentInput{
		RestApiId:   aws.String(apiID),
		StageName:   aws.String(stage),
		Description: aws.String(description),
	})
	if err != nil {
		return "", remote.Classify("CreateDeployment", err)
	}
	return aws.ToString(out.Id), nil
}

func (c *RestClient) LookupAPIKey(ctx context.Context, name string) (*remote.APIKey, bool, error) {
	var position *string
	for {
		out, err := c.api.GetApiKeys(ctx, &apigateway.GetApiKeysInput{
			NameQuery:     aws.String(name),
			IncludeValues: aws.Bool(true),
			Limit:         aws.Int32(pageLimit),
			Position:      position,
		})
		if err != nil {
			return nil, false, remote.Classify("GetApiKeys", err)
		}
		for _, item := range out.Items {
			// nameQuery is a prefix match
			if aws.ToString(item.Name) == name {
				return &remote.APIKey{
					ID:    aws.ToString(item.Id),
					Name:  aws.ToString(item.Name),
					Value: aws.ToString(item.Value),
				}, true, nil
			}
		}
		if aws.ToString(out.Position) == "" {
			return nil, false, nil
		}
		position = out.Position
	}
}

func (c *RestClient) CreateAPIKey(ctx context.Context, name string) (*remote.APIKey, error) {
	out, err := c.api.CreateApiKey(ctx, &apigateway.CreateApiKeyInput{
		Name:    aws.String(name),
		Enabled: true,
	})
	if err != nil {
		return nil, remote.Classify("CreateApiKey", err)
	}
	return &remote.APIKey{ID: aws.ToString(out.Id), Name: aws.ToString(out.Name), Value: aws.ToString(out.Value)}, nil
}

func (c *RestClient) LookupUsagePlan(ctx context.Context, name string) (*remote.UsagePlan, bool, error) {
	var position *string
	for {
		out, err := c.api.GetUsagePlans(ctx, &apigateway.GetUsagePlansInput{
			Limit:    aws.Int32(pageLimit),
			Position: position,
		})
		if err != nil {
			return nil, false, remote.Classify("GetUsagePlans", err)
		}
		for _, item := range out.Items {
			if aws.ToString(item.Name) == name {
				return toUsagePlan(aws.ToString(item.Id), aws.ToString(item.Name), item.ApiStages), true, nil
			}
		}
		if aws.ToString(out.Position) == "" {
			return nil, false, nil
		}
		position = out.Position
	}
}

func (c *RestClient) CreateUsagePlan(ctx context.Context, spec remote.UsagePlanSpec) (*remote.UsagePlan, error) {
	stages := make([]types.ApiStage, 0, len(spec.Stages))
	for _, s := range spec.Stages {
		stages = append(stages, types.ApiStage{ApiId: aws.String(s.APIID), Stage: aws.String(s.Stage)})
	}
	out, err := c.api.CreateUsagePlan(ctx, &apigateway.CreateUsagePlanInput{
		Name:      aws.String(spec.Name),
		ApiStages: stages,
		Throttle: &types.ThrottleSettings{
			RateLimit:  spec.Policy.RateLimit,
			BurstLimit: spec.Policy.BurstLimit,
		},
		Quota: &types.QuotaSettings{
			Limit:  spec.Policy.QuotaLimit,
			Period: types.QuotaPeriodType(spec.Policy.QuotaPeriod),
		},
	})
	if err != nil {
		return nil, remote.Classify("CreateUsagePlan", err)
	}
	return toUsagePlan(aws.ToString(out.Id), aws.ToString(out.Name), out.ApiStages), nil
}

func (c *RestClient) AddUsagePlanStage(ctx context.Context, planID string, stage remote.APIStage) error {
	_, err := c.api.UpdateUsagePlan(ctx, &apigateway.UpdateUsagePlanInput{
		UsagePlanId: aws.String(planID),
		PatchOperations: []types.PatchOperation{{
			Op:    types.OpAdd,
			Path:  aws.String("/apiStages"),
			Value: aws.String(stage.APIID + ":" + stage.Stage),
		}},
	})
	return remote.Classify("UpdateUsagePlan", err)
}

func (c *RestClient) CreateUsagePlanKey(ctx context.Context, planID, keyID string) error {
	_, err := c.api.CreateUsagePlanKey(ctx, &apigateway.CreateUsagePlanKeyInput{
		UsagePlanId: aws.String(planID),
		KeyId:       aws.String(keyID),
		KeyType:     aws.String("API_KEY"),
	})
	return remote.Classify("CreateUsagePlanKey", err)
}

func toUsagePlan(id, name string, stages []types.ApiStage) *remote.UsagePlan {
	plan := &remote.UsagePlan{ID: id, Name: name}
	for _, s := range stages {
		plan.Stages = append(plan.Stages, remote.APIStage{APIID: aws.ToString(s.ApiId), Stage: aws.ToString(s.Stage)})
	}
	return plan
}
