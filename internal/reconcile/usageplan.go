package reconcile

import (
	"context"
	"fmt"

	"github.com/oriys/gatewayctl/internal/domain"
	"github.com/oriys/gatewayctl/internal/remote"
)

// APIKeyEntry is the secrets-store entry holding the issued access key.
const APIKeyEntry = "API_KEY"

// KeyStore persists the access key value after binding.
type KeyStore interface {
	Put(ctx context.Context, key, value string) error
}

// UsagePlanState is what the binder ensured for one gateway stage.
type UsagePlanState struct {
	KeyID       string          `json:"key_id" yaml:"key_id"`
	PlanID      string          `json:"plan_id" yaml:"plan_id"`
	Stage       remote.APIStage `json:"stage" yaml:"stage"`
	AttachCalls int             `json:"attach_calls" yaml:"attach_calls"`
	Persisted   bool            `json:"persisted" yaml:"persisted"`
}

type usagePlanBinder struct {
	api   remote.RestAPIs
	keys  KeyStore
	steps *steps
}

// Bind ensures the access key, the usage plan, the plan's attachment to
// stage and the key-to-plan link, then persists the key value.
func (b *usagePlanBinder) Bind(ctx context.Context, gw domain.GatewayDescriptor, stage remote.APIStage) (*UsagePlanState, error) {
	state := &UsagePlanState{Stage: stage}

	key, err := b.ensureKey(ctx, gw.APIKeyName())
	if err != nil {
		return nil, err
	}
	state.KeyID = key.ID

	planID, attached, err := b.ensurePlan(ctx, gw, stage)
	if err != nil {
		return nil, err
	}
	state.PlanID = planID
	state.AttachCalls = attached

	err = b.api.CreateUsagePlanKey(ctx, planID, key.ID)
	switch {
	case err == nil:
		b.steps.outcome("usage_plan_key", Created(key.ID), "plan", planID)
	case remote.IsConflict(err):
		b.steps.outcome("usage_plan_key", Reused(key.ID), "plan", planID)
	default:
		return nil, fmt.Errorf("link key to usage plan: %w", err)
	}

	if b.keys == nil {
		b.steps.skip("api_key_store", "no key store configured")
		return state, nil
	}
	if key.Value == "" {
		b.steps.skip("api_key_store", "key value not returned")
		return state, nil
	}
	if err := b.keys.Put(ctx, APIKeyEntry, key.Value); err != nil {
		return nil, fmt.Errorf("persist api key: %w", err)
	}
	state.Persisted = true
	return state, nil
}

func (b *usagePlanBinder) ensureKey(ctx context.Context, name string) (*remote.APIKey, error) {
	key, found, err := b.api.LookupAPIKey(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("lookup api key %s: %w", name, err)
	}
	if found {
		b.steps.outcome("api_key", Reused(key.ID), "name", name)
		return key, nil
	}
	key, err = b.api.CreateAPIKey(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("create api key %s: %w", name, err)
	}
	b.steps.outcome("api_key", Created(key.ID), "name", name)
	return key, nil
}

// ensurePlan returns the plan id and the number of attach calls issued.
func (b *usagePlanBinder) ensurePlan(ctx context.Context, gw domain.GatewayDescriptor, stage remote.APIStage) (string, int, error) {
	name := gw.UsagePlanName()
	plan, found, err := b.api.LookupUsagePlan(ctx, name)
	if err != nil {
		return "", 0, fmt.Errorf("lookup usage plan %s: %w", name, err)
	}

	if !found {
		plan, err = b.api.CreateUsagePlan(ctx, remote.UsagePlanSpec{
			Name:   name,
			Stages: []remote.APIStage{stage},
			Policy: gw.UsagePlan,
		})
		if err != nil {
			return "", 0, fmt.Errorf("create usage plan %s: %w", name, err)
		}
		b.steps.outcome("usage_plan", Created(plan.ID), "name", name)
		return plan.ID, 0, nil
	}

	b.steps.outcome("usage_plan", Reused(plan.ID), "name", name)
	if plan.Attached(stage) {
		return plan.ID, 0, nil
	}
	err = b.api.AddUsagePlanStage(ctx, plan.ID, stage)
	switch {
	case err == nil:
		b.steps.outcome("usage_plan_stage", Created(stage.APIID+":"+stage.Stage), "plan", plan.ID)
	case remote.IsConflict(err):
		b.steps.outcome("usage_plan_stage", Reused(stage.APIID+":"+stage.Stage), "plan", plan.ID)
	default:
		return "", 1, fmt.Errorf("attach usage plan %s to %s:%s: %w", name, stage.APIID, stage.Stage, err)
	}
	return plan.ID, 1, nil
}
