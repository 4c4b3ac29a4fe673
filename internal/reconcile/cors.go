package reconcile

import (
	"context"
	"fmt"

	"github.com/oriys/gatewayctl/internal/remote"
)

const (
	corsAllowHeaders = "'Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token'"
	corsAllowMethods = "'GET,POST,PATCH,DELETE,OPTIONS'"
	corsAllowOrigin  = "'*'"
)

func preflightHeaders() map[string]string {
	return map[string]string{
		"method.response.header.Access-Control-Allow-Headers": corsAllowHeaders,
		"method.response.header.Access-Control-Allow-Methods": corsAllowMethods,
		"method.response.header.Access-Control-Allow-Origin":  corsAllowOrigin,
	}
}

// Preflight answers OPTIONS on resourceID with a mock integration that
// returns the CORS headers. Remote duplicates count as success.
func (w *methodWiring) Preflight(ctx context.Context, resourceID, path string) error {
	out := Created("OPTIONS " + path)
	err := w.api.PutMethod(ctx, remote.MethodSpec{
		APIID:             w.apiID,
		ResourceID:        resourceID,
		HTTPMethod:        "OPTIONS",
		AuthorizationType: authNone,
	})
	if remote.IsConflict(err) {
		out = Reused(out.ID)
	} else if err != nil {
		return fmt.Errorf("put preflight method %s: %w", path, err)
	}

	err = w.api.PutIntegration(ctx, remote.IntegrationSpec{
		APIID:      w.apiID,
		ResourceID: resourceID,
		HTTPMethod: "OPTIONS",
		Type:       "MOCK",
		RequestTemplates: map[string]string{
			"application/json": `{"statusCode": 200}`,
		},
	})
	if err != nil && !remote.IsConflict(err) {
		return fmt.Errorf("put preflight integration %s: %w", path, err)
	}

	response := remote.ResponseSpec{
		APIID:      w.apiID,
		ResourceID: resourceID,
		HTTPMethod: "OPTIONS",
		StatusCode: "200",
		Parameters: preflightHeaders(),
	}
	if err := w.api.PutMethodResponse(ctx, response); err != nil && !remote.IsConflict(err) {
		return fmt.Errorf("put preflight method response %s: %w", path, err)
	}
	if err := w.api.PutIntegrationResponse(ctx, response); err != nil && !remote.IsConflict(err) {
		return fmt.Errorf("put preflight integration response %s: %w", path, err)
	}

	w.steps.outcome("cors_preflight", out, "path", path)
	return nil
}
