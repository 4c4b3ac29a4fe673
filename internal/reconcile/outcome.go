package reconcile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/oriys/gatewayctl/internal/metrics"
	"github.com/oriys/gatewayctl/internal/remote"
)

// Outcome is the result of an idempotent create: the remote id and
// whether this run created it or adopted an existing one.
type Outcome struct {
	ID      string
	Created bool
}

// Created tags id as created by this run.
func Created(id string) Outcome { return Outcome{ID: id, Created: true} }

// Reused tags id as adopted from prior state.
func Reused(id string) Outcome { return Outcome{ID: id} }

func (o Outcome) String() string {
	if o.Created {
		return "created"
	}
	return "reused"
}

// steps logs and counts the outcome of every reconciliation step of one gateway.
type steps struct {
	log     *slog.Logger
	created int
	reused  int
	skipped int
}

func (s *steps) outcome(step string, o Outcome, attrs ...any) {
	if o.Created {
		s.created++
	} else {
		s.reused++
	}
	metrics.RecordStep(step, o.String())
	args := append([]any{"step", step, "outcome", o.String(), "id", o.ID}, attrs...)
	s.log.Info("step", args...)
}

// note logs a step that is re-issued every run and therefore not counted.
func (s *steps) note(step, id string, attrs ...any) {
	metrics.RecordStep(step, "created")
	args := append([]any{"step", step, "outcome", "created", "id", id}, attrs...)
	s.log.Info("step", args...)
}

func (s *steps) skip(step, reason string, attrs ...any) {
	s.skipped++
	metrics.RecordStep(step, "skipped")
	args := append([]any{"step", step, "outcome", "skipped", "reason", reason}, attrs...)
	s.log.Warn("step", args...)
}

func (s *steps) fail(step string, err error, attrs ...any) {
	metrics.RecordStep(step, "failed")
	var re *remote.Error
	if errors.As(err, &re) {
		metrics.RecordRemoteError(re.Op, re.Kind.String())
	}
	args := append([]any{"step", step, "outcome", "failed", "error", err}, attrs...)
	s.log.Error("step", args...)
}

// statementID returns a fresh permission statement id.
func statementID(prefix string) string {
	return prefix + uuid.NewString()
}

func invocationURI(region, functionARN string) string {
	return fmt.Sprintf("arn:aws:apigateway:%s:lambda:path/2015-03-31/functions/%s/invocations", region, functionARN)
}

func executeAPIARN(env Env, apiID, suffix string) string {
	return fmt.Sprintf("arn:aws:execute-api:%s:%s:%s/%s", env.Region, env.AccountID, apiID, suffix)
}
