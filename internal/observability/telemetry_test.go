package observability

import (
	"context"
	"errors"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	if err := Init(context.Background(), Config{Enabled: false}, Run{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Enabled() {
		t.Error("telemetry should be disabled")
	}

	ctx, span := StartSpan(context.Background(), "reconcile.gateway", AttrGateway.String("orders"))
	defer span.End()
	SetSpanError(span, errors.New("boom"))
	if TraceID(ctx) != "" {
		t.Error("noop tracer should not produce a trace id")
	}
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestInit_NoneExporter(t *testing.T) {
	defer Init(context.Background(), Config{Enabled: false}, Run{})

	if err := Init(context.Background(), Config{Enabled: true, Exporter: "none", SampleRate: 1}, Run{Stage: "dev"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx, span := StartSpan(context.Background(), "reconcile.gateway")
	if TraceID(ctx) == "" {
		t.Error("sampled span should carry a trace id")
	}
	SetSpanOK(span)
	span.End()
	if err := Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if Enabled() {
		t.Error("Shutdown should disable tracing")
	}
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Config{ServiceName: "gatewayctl"},
		Run{Stage: "prod", Region: "eu-west-1", AccountID: "123456789012"})
	got := map[string]string{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"service.name":           "gatewayctl",
		"cloud.provider":         "aws",
		"deployment.environment": "prod",
		"cloud.region":           "eu-west-1",
		"cloud.account.id":       "123456789012",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}

	bare := resourceAttributes(Config{ServiceName: "gatewayctl"}, Run{})
	for _, kv := range bare {
		if kv.Key == "cloud.region" || kv.Key == "cloud.account.id" {
			t.Errorf("empty run should not set %s", kv.Key)
		}
	}
}

func TestSampler(t *testing.T) {
	for _, rate := range []float64{0, 1, 2} {
		if got := sampler(rate).Description(); got != "AlwaysOnSampler" {
			t.Errorf("sampler(%v) = %s", rate, got)
		}
	}
	if got := sampler(0.25).Description(); got == "AlwaysOnSampler" {
		t.Error("fractional rate should sample by trace id")
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	defer Init(context.Background(), Config{Enabled: false}, Run{})

	if err := Init(context.Background(), Config{Enabled: true, Exporter: "carrier-pigeon"}, Run{}); err == nil {
		t.Error("expected error for unknown exporter")
	}
}
