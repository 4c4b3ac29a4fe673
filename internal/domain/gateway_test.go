package domain

import (
	"errors"
	"testing"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path    string
		want    []string
		wantErr bool
	}{
		{path: "", want: nil},
		{path: "/", want: nil},
		{path: "items", want: []string{"items"}},
		{path: "/a/b/c/", want: []string{"a", "b", "c"}},
		{path: "users/{id}", want: []string{"users", "{id}"}},
		{path: "a//b", wantErr: true},
		{path: "//a", wantErr: true},
		{path: "a//", wantErr: true},
		{path: "//", wantErr: true},
	}

	for _, tt := range tests {
		got, err := SplitPath(tt.path)
		if tt.wantErr {
			if !errors.Is(err, ErrEmptySegment) {
				t.Fatalf("SplitPath(%q) error = %v, want ErrEmptySegment", tt.path, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SplitPath(%q) unexpected error: %v", tt.path, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("SplitPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("SplitPath(%q)[%d] = %q, want %q", tt.path, i, got[i], tt.want[i])
			}
		}
	}
}

func TestCanonicalPath(t *testing.T) {
	if got := CanonicalPath(nil); got != "/" {
		t.Errorf("CanonicalPath(nil) = %q, want /", got)
	}
	if got := CanonicalPath([]string{"a", "B"}); got != "/a/B" {
		t.Errorf("CanonicalPath = %q, want /a/B", got)
	}
}

func TestAuthorizerKind_Supported(t *testing.T) {
	tests := []struct {
		kind     AuthorizerKind
		protocol Protocol
		want     bool
	}{
		{AuthorizerToken, ProtocolREST, true},
		{AuthorizerRequest, ProtocolREST, true},
		{AuthorizerJWT, ProtocolREST, false},
		{AuthorizerJWT, ProtocolHTTP, true},
		{AuthorizerLambda, ProtocolHTTP, true},
		{AuthorizerToken, ProtocolHTTP, false},
		{AuthorizerKind("COGNITO"), ProtocolREST, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Supported(tt.protocol); got != tt.want {
			t.Errorf("%s.Supported(%s) = %v, want %v", tt.kind, tt.protocol, got, tt.want)
		}
	}
}

func TestRoute_AuthorizerFor(t *testing.T) {
	route := Route{Authorization: map[string]string{"GET": "auth1", "POST": "NONE", "PUT": ""}}

	if name, ok := route.AuthorizerFor("GET"); !ok || name != "auth1" {
		t.Errorf("AuthorizerFor(GET) = %q, %v", name, ok)
	}
	for _, m := range []string{"POST", "PUT", "DELETE"} {
		if _, ok := route.AuthorizerFor(m); ok {
			t.Errorf("AuthorizerFor(%s) should be open", m)
		}
	}
}

func TestParseValidationMode(t *testing.T) {
	tests := map[string]ValidationMode{
		"body":       ValidateBody,
		"Parameters": ValidateParameters,
		"params":     ValidateParameters,
		"both":       ValidateBoth,
		"none":       ValidateNone,
	}
	for in, want := range tests {
		got, ok := ParseValidationMode(in)
		if !ok || got != want {
			t.Errorf("ParseValidationMode(%q) = %q, %v, want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseValidationMode("query"); ok {
		t.Error("ParseValidationMode(query) should be rejected")
	}
	if ValidateNone.ValidatorName() != "" {
		t.Error("none should not map to a validator")
	}
}

func TestGatewayDescriptor_Names(t *testing.T) {
	gw := GatewayDescriptor{
		Name: "orders",
		Authorizers: map[string]AuthorizerDef{
			"zeta":  {Name: "zeta"},
			"alpha": {Name: "alpha"},
		},
	}
	if gw.APIKeyName() != "orders-key" {
		t.Errorf("APIKeyName = %q", gw.APIKeyName())
	}
	if gw.UsagePlanName() != "orders-usage-plan" {
		t.Errorf("UsagePlanName = %q", gw.UsagePlanName())
	}
	names := gw.AuthorizerNames()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("AuthorizerNames = %v", names)
	}
}

func TestQuotaPeriod_IsValid(t *testing.T) {
	for _, p := range []QuotaPeriod{QuotaDay, QuotaWeek, QuotaMonth} {
		if !p.IsValid() {
			t.Errorf("%s should be valid", p)
		}
	}
	if QuotaPeriod("YEAR").IsValid() {
		t.Error("YEAR should be invalid")
	}
}
