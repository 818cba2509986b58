package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestTracerProvider() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return tp, sr
}

func TestSpanAttributeBuilder_Empty(t *testing.T) {
	attrs := NewSpanAttributeBuilder().Build()
	if len(attrs) != 0 {
		t.Errorf("empty builder should return 0 attributes, got %d", len(attrs))
	}
}

func TestSpanAttributeBuilder_WithTool(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithTool("list_pods").Build()

	found := false
	for _, a := range attrs {
		if a.Key == SpanAttrTool && a.Value.AsString() == "list_pods" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s attribute with value 'list_pods', got %v", SpanAttrTool, attrs)
	}
}

func TestSpanAttributeBuilder_WithGateway(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithGateway("gw-east").Build()

	found := false
	for _, a := range attrs {
		if a.Key == SpanAttrGateway && a.Value.AsString() == "gw-east" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s attribute with value 'gw-east', got %v", SpanAttrGateway, attrs)
	}
}

func TestSpanAttributeBuilder_WithUser(t *testing.T) {
	t.Run("with email", func(t *testing.T) {
		attrs := NewSpanAttributeBuilder().WithUser("jane@giantswarm.io", []string{"admins", "devs"}, true).Build()

		var gotEmail, gotDomain bool
		var groupCount int64
		for _, a := range attrs {
			switch a.Key {
			case SpanAttrUserEmail:
				gotEmail = a.Value.AsString() == "jane@giantswarm.io"
			case SpanAttrUserDomain:
				gotDomain = a.Value.AsString() == "giantswarm.io"
			case SpanAttrGroupCount:
				groupCount = a.Value.AsInt64()
			}
		}
		if !gotEmail {
			t.Error("expected email attribute to be set")
		}
		if !gotDomain {
			t.Error("expected domain attribute to be 'giantswarm.io'")
		}
		if groupCount != 2 {
			t.Errorf("expected group count 2, got %d", groupCount)
		}
	})

	t.Run("without email", func(t *testing.T) {
		attrs := NewSpanAttributeBuilder().WithUser("jane@giantswarm.io", nil, false).Build()

		for _, a := range attrs {
			if a.Key == SpanAttrUserEmail {
				t.Error("expected no email attribute when includeEmail is false")
			}
		}
	})
}

func TestSpanAttributeBuilder_WithCatalogEntity(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithCatalogEntity("tool", "list_pods").Build()

	var gotKind, gotID bool
	for _, a := range attrs {
		switch a.Key {
		case SpanAttrEntityKind:
			gotKind = a.Value.AsString() == "tool"
		case SpanAttrEntityID:
			gotID = a.Value.AsString() == "list_pods"
		}
	}
	if !gotKind || !gotID {
		t.Errorf("expected kind=tool and entity_id=list_pods attributes, got %v", attrs)
	}
}

func TestSpanAttributeBuilder_WithCatalogEntity_Empty(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithCatalogEntity("", "").Build()
	if len(attrs) != 0 {
		t.Errorf("expected no attributes for empty kind/id, got %v", attrs)
	}
}

func TestSpanAttributeBuilder_WithOperation(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithOperation("list").Build()

	found := false
	for _, a := range attrs {
		if a.Key == SpanAttrOperation && a.Value.AsString() == "list" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s attribute with value 'list', got %v", SpanAttrOperation, attrs)
	}
}

func TestSpanAttributeBuilder_WithCacheHit(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithCacheHit(true).Build()

	found := false
	for _, a := range attrs {
		if a.Key == SpanAttrCacheHit && a.Value.AsBool() {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s attribute true, got %v", SpanAttrCacheHit, attrs)
	}
}

func TestSpanAttributeBuilder_WithFederated(t *testing.T) {
	attrs := NewSpanAttributeBuilder().WithFederated(true).Build()

	found := false
	for _, a := range attrs {
		if a.Key == SpanAttrFederated && a.Value.AsBool() {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s attribute true, got %v", SpanAttrFederated, attrs)
	}
}

func TestSpanAttributeBuilder_Chaining(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithTool("list_pods").
		WithGateway("gw-east").
		WithOperation("invoke").
		WithCacheHit(false).
		WithFederated(true).
		Build()

	if len(attrs) != 5 {
		t.Errorf("expected 5 attributes after chaining, got %d", len(attrs))
	}
}

func TestStartSpan(t *testing.T) {
	tp, sr := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "test.span", attribute.String("k", "v"))
	span.End()

	if ctx == nil {
		t.Fatal("expected non-nil context")
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Name() != "test.span" {
		t.Errorf("expected span name 'test.span', got %s", spans[0].Name())
	}
}

func TestSetSpanError(t *testing.T) {
	tp, sr := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer(TracerName)
	_, span := tracer.Start(context.Background(), "test.error")
	SetSpanError(span, errors.New("boom"))
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected span status Error, got %v", spans[0].Status().Code)
	}
}

func TestSetSpanError_Nil(t *testing.T) {
	tp, sr := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer(TracerName)
	_, span := tracer.Start(context.Background(), "test.no-error")
	SetSpanError(span, nil)
	span.End()

	spans := sr.Ended()
	if spans[0].Status().Code == codes.Error {
		t.Error("expected span status not to be Error when err is nil")
	}
}

func TestSetSpanSuccess(t *testing.T) {
	tp, sr := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer(TracerName)
	_, span := tracer.Start(context.Background(), "test.success")
	SetSpanSuccess(span)
	span.End()

	spans := sr.Ended()
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("expected span status Ok, got %v", spans[0].Status().Code)
	}
}

func TestAddSpanEvent(t *testing.T) {
	tp, sr := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer(TracerName)
	_, span := tracer.Start(context.Background(), "test.event")
	AddSpanEvent(span, "cache_miss", attribute.String("cache", "tool-catalog"))
	span.End()

	spans := sr.Ended()
	events := spans[0].Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Name != "cache_miss" {
		t.Errorf("expected event name 'cache_miss', got %s", events[0].Name)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if got := GetTraceID(context.Background()); got != "" {
		t.Errorf("expected empty trace ID with no span, got %q", got)
	}
}

func TestGetSpanID_NoSpan(t *testing.T) {
	if got := GetSpanID(context.Background()); got != "" {
		t.Errorf("expected empty span ID with no span, got %q", got)
	}
}

func TestSpanContextString_NoSpan(t *testing.T) {
	if got := SpanContextString(context.Background()); got != "" {
		t.Errorf("expected empty string with no span, got %q", got)
	}
}

func TestGetTraceID_WithSpan(t *testing.T) {
	tp, _ := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := tp.Tracer(TracerName)
	ctx, span := tracer.Start(context.Background(), "test.trace-id")
	defer span.End()

	if got := GetTraceID(ctx); got == "" {
		t.Error("expected non-empty trace ID with an active span")
	}
	if got := SpanContextString(ctx); got == "" {
		t.Error("expected non-empty span context string with an active span")
	}
}

func TestStartFederationSpan(t *testing.T) {
	tp, sr := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartFederationSpan(context.Background(), "sync", "gw-east")
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].SpanKind() != trace.SpanKindClient {
		t.Errorf("expected span kind Client, got %v", spans[0].SpanKind())
	}
}

func TestStartCatalogSpan(t *testing.T) {
	tp, sr := newTestTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartCatalogSpan(context.Background(), "create", "tool")
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(spans))
	}
	if spans[0].SpanKind() != trace.SpanKindInternal {
		t.Errorf("expected span kind Internal, got %v", spans[0].SpanKind())
	}
}
