package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	"github.com/dbsmedya/accesstally/internal/config"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), config.TracingConfig{Enabled: false}, nil, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}

	_, span := StartSpan(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatal("expected a noop span when tracing is disabled")
	}
	EndSpan(span, nil)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracing_Stdout(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.TracingConfig{Enabled: true, Exporter: "stdout", ServiceName: "accesstally-test", SampleRatio: 1}

	shutdown, err := InitTracing(context.Background(), cfg, &buf, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	defer InitTracing(context.Background(), config.TracingConfig{}, nil, nil)

	_, span := StartSpan(context.Background(), "collect", attribute.String("job", "nightly"))
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording span")
	}
	EndSpan(span, errors.New("boom"))

	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	if !strings.Contains(out, `"Name":"collect"`) {
		t.Fatalf("exported span missing from output:\n%s", out)
	}
	if !strings.Contains(out, "boom") {
		t.Fatalf("span error missing from output:\n%s", out)
	}
}

func TestInitTracing_UnsupportedExporter(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}
	if _, err := InitTracing(context.Background(), cfg, nil, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}

func TestShutdownWithTimeout_Nil(t *testing.T) {
	ShutdownWithTimeout(context.Background(), nil, nil)
}
