package store

import (
	"context"
	"time"

	"github.com/oriys/gatewayctl/internal/reconcile"
)

// Run is one invocation of the provisioning driver.
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Stage      string     `json:"stage"`
	Region     string     `json:"region"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Failed     int        `json:"failed"`
}

// ResultRecord is one journaled gateway outcome.
type ResultRecord struct {
	RunID      string           `json:"run_id"`
	Gateway    string           `json:"gateway"`
	Name       string           `json:"name"`
	Protocol   string           `json:"protocol"`
	APIID      string           `json:"api_id,omitempty"`
	State      string           `json:"state"`
	Created    int              `json:"created"`
	Reused     int              `json:"reused"`
	Skipped    int              `json:"skipped"`
	DurationMs int64            `json:"duration_ms"`
	Error      string           `json:"error,omitempty"`
	Result     reconcile.Result `json:"result"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// NewResultRecord flattens a reconcile result for storage.
func NewResultRecord(runID string, r reconcile.Result, at time.Time) *ResultRecord {
	errMsg := r.Error
	if errMsg == "" && r.Err != nil {
		errMsg = r.Err.Error()
	}
	return &ResultRecord{
		RunID:      runID,
		Gateway:    r.Gateway,
		Name:       r.Name,
		Protocol:   string(r.Protocol),
		APIID:      r.APIID,
		State:      string(r.State),
		Created:    r.Created,
		Reused:     r.Reused,
		Skipped:    r.Skipped,
		DurationMs: r.Duration.Milliseconds(),
		Error:      errMsg,
		Result:     r,
		RecordedAt: at,
	}
}

// Journal records runs and their per-gateway results.
type Journal interface {
	Close() error
	Ping(ctx context.Context) error

	BeginRun(ctx context.Context, run *Run) error
	FinishRun(ctx context.Context, runID string, failed int, at time.Time) error
	SaveResult(ctx context.Context, rec *ResultRecord) error
	ListResults(ctx context.Context, gateway string, limit int) ([]*ResultRecord, error)
}

var _ Journal = (*PostgresStore)(nil)
