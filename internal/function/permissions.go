package function

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/oriys/gatewayctl/internal/logging"
	"github.com/oriys/gatewayctl/internal/remote"
)

// Cleaner removes every statement from a function's resource policy.
type Cleaner struct {
	lambda LambdaAPI
}

func NewCleaner(l LambdaAPI) *Cleaner {
	return &Cleaner{lambda: l}
}

type resourcePolicy struct {
	Statement []struct {
		Sid string `json:"Sid"`
	} `json:"Statement"`
}

// CleanupPermissions removes all invoke grants of functionName. A function
// without a policy has nothing to clean.
func (c *Cleaner) CleanupPermissions(ctx context.Context, functionName string) error {
	log := logging.Op().With("function", functionName)

	out, err := c.lambda.GetPolicy(ctx, &lambda.GetPolicyInput{FunctionName: aws.String(functionName)})
	if err = remote.Classify("GetPolicy", err); remote.IsNotFound(err) {
		log.Debug("no resource policy to clean")
		return nil
	} else if err != nil {
		return fmt.Errorf("get policy of %s: %w", functionName, err)
	}

	var policy resourcePolicy
	if err := json.Unmarshal([]byte(aws.ToString(out.Policy)), &policy); err != nil {
		return fmt.Errorf("parse policy of %s: %w", functionName, err)
	}

	var errs []error
	removed := 0
	for _, st := range policy.Statement {
		if st.Sid == "" {
			continue
		}
		_, err := c.lambda.RemovePermission(ctx, &lambda.RemovePermissionInput{
			FunctionName: aws.String(functionName),
			StatementId:  aws.String(st.Sid),
		})
		if err = remote.Classify("RemovePermission", err); err != nil && !remote.IsNotFound(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", st.Sid, err))
			continue
		}
		removed++
	}
	log.Info("permissions cleaned", "removed", removed, "failed", len(errs))
	return errors.Join(errs...)
}
