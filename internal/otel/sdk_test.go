package otel

import (
	"context"
	"testing"
)

func TestParseResourceAttributes(t *testing.T) {
	attrs := parseResourceAttributes("env=dev, team = core ,invalid,=skip")
	if attrs["env"] != "dev" {
		t.Fatalf("expected env=dev, got %q", attrs["env"])
	}
	if attrs["team"] != "core" {
		t.Fatalf("expected team=core, got %q", attrs["team"])
	}
	if _, ok := attrs["invalid"]; ok {
		t.Fatalf("expected invalid attribute to be skipped")
	}
	if _, ok := attrs[""]; ok {
		t.Fatalf("expected empty key to be skipped")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"http://127.0.0.1:4318":  "127.0.0.1:4318",
		"https://localhost:4318": "localhost:4318",
		"127.0.0.1:4318/":        "127.0.0.1:4318",
		"":                       "",
	}
	for input, expected := range cases {
		if got := normalizeEndpoint(input); got != expected {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", input, got, expected)
		}
	}
}

func TestSDKOptionsFromEnv(t *testing.T) {
	t.Setenv("DIRWATCH_OTEL_HTTP_ENDPOINT", "127.0.0.1:9998")
	t.Setenv("DIRWATCH_OTEL_ENABLED", "false")
	t.Setenv("DIRWATCH_OTEL_SERVICE_NAME", "dirwatch-test")
	t.Setenv("DIRWATCH_OTEL_RESOURCE_ATTRIBUTES", "env=staging")

	opts := SDKOptionsFromEnv(SDKOptions{Enabled: true, ServiceName: "from-config"})
	if opts.Enabled {
		t.Fatalf("expected Enabled false")
	}
	if opts.ServiceName != "dirwatch-test" {
		t.Fatalf("expected service name override, got %q", opts.ServiceName)
	}
	if opts.HTTPEndpoint != "127.0.0.1:9998" {
		t.Fatalf("expected http endpoint override, got %q", opts.HTTPEndpoint)
	}
	if opts.ResourceAttributes["env"] != "staging" {
		t.Fatalf("expected resource attribute env=staging, got %v", opts.ResourceAttributes)
	}
}

func TestSDKOptionsFromEnvEnablesWithEndpoint(t *testing.T) {
	t.Setenv("DIRWATCH_OTEL_HTTP_ENDPOINT", "collector:4318")

	opts := SDKOptionsFromEnv(SDKOptions{})
	if !opts.Enabled {
		t.Fatalf("expected an endpoint to enable export")
	}
	if opts.ServiceName != defaultServiceName {
		t.Fatalf("expected default service name, got %q", opts.ServiceName)
	}
}

func TestSDKOptionsFromEnvKeepsBase(t *testing.T) {
	base := SDKOptions{Enabled: true, HTTPEndpoint: "otel:4318", ServiceName: "watch-prod"}
	opts := SDKOptionsFromEnv(base)
	if !opts.Enabled || opts.HTTPEndpoint != "otel:4318" || opts.ServiceName != "watch-prod" {
		t.Fatalf("expected base options to survive, got %+v", opts)
	}
}

func TestSetupSDKDisabledIsNoop(t *testing.T) {
	shutdown, err := SetupSDK(context.Background(), SDKOptions{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestResourceAttributesDefaultsServiceName(t *testing.T) {
	attrs := resourceAttributes(SDKOptions{ServiceVersion: "1.2.3"})
	values := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		values[string(attr.Key)] = attr.Value.AsString()
	}
	if values["service.name"] != defaultServiceName {
		t.Fatalf("expected default service name, got %q", values["service.name"])
	}
	if values["service.version"] != "1.2.3" {
		t.Fatalf("expected service version, got %q", values["service.version"])
	}
}
