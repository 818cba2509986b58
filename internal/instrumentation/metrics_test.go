package instrumentation

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// mockMeterProvider creates a simple meter for testing
func mockMeterProvider() metric.Meter {
	provider := sdkmetric.NewMeterProvider()
	return provider.Meter("test")
}

func TestNewMetrics(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false) // false = no detailed labels
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	if metrics == nil {
		t.Fatal("expected metrics to be non-nil")
	}

	if metrics.httpRequestsTotal == nil {
		t.Error("expected httpRequestsTotal to be initialized")
	}
	if metrics.httpRequestDuration == nil {
		t.Error("expected httpRequestDuration to be initialized")
	}
	if metrics.activeSessions == nil {
		t.Error("expected activeSessions to be initialized")
	}
	if metrics.dispatchInvocationsTotal == nil {
		t.Error("expected dispatchInvocationsTotal to be initialized")
	}
	if metrics.dispatchInvocationDuration == nil {
		t.Error("expected dispatchInvocationDuration to be initialized")
	}
	if metrics.pluginHookTotal == nil {
		t.Error("expected pluginHookTotal to be initialized")
	}
	if metrics.pluginHookDuration == nil {
		t.Error("expected pluginHookDuration to be initialized")
	}
	if metrics.authOutcomeTotal == nil {
		t.Error("expected authOutcomeTotal to be initialized")
	}

	if metrics.detailedLabels != false {
		t.Error("expected detailedLabels to be false")
	}
}

func TestNewMetrics_DetailedLabels(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, true) // true = detailed labels
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	if metrics.detailedLabels != true {
		t.Error("expected detailedLabels to be true")
	}
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp", 200, 100*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "GET", "/metrics", 200, 50*time.Millisecond)
	metrics.RecordHTTPRequest(ctx, "POST", "/mcp", 500, 200*time.Millisecond)
}

func TestMetrics_RecordHTTPRequest_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.RecordHTTPRequest(ctx, "POST", "/mcp", 200, 100*time.Millisecond)
}

func TestMetrics_RecordDispatchInvocation(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	metrics.RecordDispatchInvocation(ctx, "list_pods", "REST", StatusSuccess, 50*time.Millisecond)
	metrics.RecordDispatchInvocation(ctx, "get_status", "LOCAL", StatusSuccess, 10*time.Millisecond)
	metrics.RecordDispatchInvocation(ctx, "broken_tool", "REST", StatusError, 75*time.Millisecond)
}

func TestMetrics_RecordDispatchInvocation_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.RecordDispatchInvocation(ctx, "list_pods", "REST", StatusSuccess, 50*time.Millisecond)
}

func TestMetrics_RecordPluginHook(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	metrics.RecordPluginHook(ctx, "tool_pre_invoke", "pii-filter", "enforce", "ok", 5*time.Millisecond)
	metrics.RecordPluginHook(ctx, "tool_post_invoke", "redactor", "permissive", "error", 8*time.Millisecond)
}

func TestMetrics_RecordPluginHook_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.RecordPluginHook(ctx, "tool_pre_invoke", "pii-filter", "enforce", "ok", 5*time.Millisecond)
}

func TestMetrics_RecordAuthOutcome(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	metrics.RecordAuthOutcome(ctx, AuthOutcomeSuccess)
	metrics.RecordAuthOutcome(ctx, AuthOutcomeFailure)
	metrics.RecordAuthOutcome(ctx, AuthOutcomeDenied)
}

func TestMetrics_RecordAuthOutcome_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.RecordAuthOutcome(ctx, AuthOutcomeSuccess)
}

func TestMetrics_ActiveSessions(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()

	metrics.IncrementActiveSessions(ctx)
	metrics.IncrementActiveSessions(ctx)
	metrics.IncrementActiveSessions(ctx)

	metrics.DecrementActiveSessions(ctx)
	metrics.DecrementActiveSessions(ctx)
}

func TestMetrics_ActiveSessions_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.IncrementActiveSessions(ctx)
	metrics.DecrementActiveSessions(ctx)
}

func TestMetricConstants(t *testing.T) {
	if StatusSuccess == "" {
		t.Error("StatusSuccess should not be empty")
	}
	if StatusError == "" {
		t.Error("StatusError should not be empty")
	}

	operations := []string{
		OperationGet,
		OperationList,
		OperationCreate,
		OperationUpdate,
		OperationDelete,
		OperationEnable,
		OperationDisable,
	}

	for _, op := range operations {
		if op == "" {
			t.Errorf("operation constant should not be empty")
		}
	}
}

func TestMetrics_ConcurrentHTTPRecording(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	const numGoroutines = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			method := "GET"
			if id%2 == 0 {
				method = "POST"
			}
			statusCode := 200
			if id%3 == 0 {
				statusCode = 500
			}
			metrics.RecordHTTPRequest(ctx, method, "/test", statusCode, 10*time.Millisecond)
		}(i)
	}

	wg.Wait()
}

func TestMetrics_ConcurrentDispatchRecording(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	const numGoroutines = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			integrationType := "REST"
			if id%2 == 0 {
				integrationType = "LOCAL"
			}
			status := StatusSuccess
			if id%5 == 0 {
				status = StatusError
			}
			metrics.RecordDispatchInvocation(ctx, "tool", integrationType, status, 50*time.Millisecond)
		}(i)
	}

	wg.Wait()
}

func TestMetrics_ConcurrentPluginHookRecording(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	const numGoroutines = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			hook := "tool_pre_invoke"
			if id%2 == 0 {
				hook = "tool_post_invoke"
			}
			metrics.RecordPluginHook(ctx, hook, "plugin", "enforce", "ok", 5*time.Millisecond)
		}(i)
	}

	wg.Wait()
}

func TestMetrics_ConcurrentAuthOutcomeRecording(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	const numGoroutines = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			var result string
			switch id % 3 {
			case 0:
				result = AuthOutcomeFailure
			case 1:
				result = AuthOutcomeDenied
			default:
				result = AuthOutcomeSuccess
			}
			metrics.RecordAuthOutcome(ctx, result)
		}(i)
	}

	wg.Wait()
}

func TestMetrics_ConcurrentSessionTracking(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()
	const numGoroutines = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines * 2)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			metrics.IncrementActiveSessions(ctx)
		}()
		go func() {
			defer wg.Done()
			metrics.DecrementActiveSessions(ctx)
		}()
	}

	wg.Wait()
}

// Catalog and federation metrics tests

func TestNewMetrics_CatalogFederationMetricsInitialized(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	if metrics.catalogOperationsTotal == nil {
		t.Error("expected catalogOperationsTotal to be initialized")
	}
	if metrics.catalogOperationDuration == nil {
		t.Error("expected catalogOperationDuration to be initialized")
	}
	if metrics.federationSyncTotal == nil {
		t.Error("expected federationSyncTotal to be initialized")
	}
	if metrics.federationPeerConnections == nil {
		t.Error("expected federationPeerConnections to be initialized")
	}
}

func TestMetrics_RecordCatalogOperation(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()

	metrics.RecordCatalogOperation(ctx, "tool", OperationCreate, StatusSuccess, 50*time.Millisecond)
	metrics.RecordCatalogOperation(ctx, "server", OperationList, StatusSuccess, 100*time.Millisecond)
	metrics.RecordCatalogOperation(ctx, "gateway", OperationDelete, StatusError, 200*time.Millisecond)
}

func TestMetrics_RecordCatalogOperation_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.RecordCatalogOperation(ctx, "tool", OperationGet, StatusSuccess, 50*time.Millisecond)
}

func TestMetrics_RecordFederationSync(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()

	metrics.RecordFederationSync(ctx, "gw-east", FederationSyncResultSuccess)
	metrics.RecordFederationSync(ctx, "gw-west", FederationSyncResultError)
}

func TestMetrics_RecordFederationSync_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.RecordFederationSync(ctx, "gw-east", FederationSyncResultSuccess)
}

func TestMetrics_RecordFederationPeerConnection(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()

	metrics.RecordFederationPeerConnection(ctx, "gw-east", "success")
	metrics.RecordFederationPeerConnection(ctx, "gw-west", "error")
}

func TestMetrics_RecordFederationPeerConnection_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.RecordFederationPeerConnection(ctx, "gw-east", "success")
}

func TestMetrics_CacheMetrics(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	ctx := context.Background()

	metrics.RecordCacheHit(ctx, "tool-catalog")
	metrics.RecordCacheHit(ctx, "server-catalog")

	metrics.RecordCacheMiss(ctx, "tool-catalog")

	metrics.RecordCacheEviction(ctx, "expired")
	metrics.RecordCacheEviction(ctx, "lru")
	metrics.RecordCacheEviction(ctx, "manual")

	metrics.SetCacheSize(ctx, 42)
	metrics.SetCacheSize(ctx, 100)
}

func TestMetrics_CacheMetrics_NilMetrics(t *testing.T) {
	metrics := &Metrics{}
	ctx := context.Background()

	metrics.RecordCacheHit(ctx, "tool-catalog")
	metrics.RecordCacheMiss(ctx, "tool-catalog")
	metrics.RecordCacheEviction(ctx, "expired")
	metrics.SetCacheSize(ctx, 42)
}

func TestNewMetrics_AllMetricsInitialized(t *testing.T) {
	meter := mockMeterProvider()
	metrics, err := NewMetrics(meter, false)
	if err != nil {
		t.Fatalf("expected no error creating metrics, got %v", err)
	}

	checks := []struct {
		name string
		ptr  interface{}
	}{
		{"httpRequestsTotal", metrics.httpRequestsTotal},
		{"httpRequestDuration", metrics.httpRequestDuration},
		{"activeSessions", metrics.activeSessions},

		{"dispatchInvocationsTotal", metrics.dispatchInvocationsTotal},
		{"dispatchInvocationDuration", metrics.dispatchInvocationDuration},
		{"pluginHookTotal", metrics.pluginHookTotal},
		{"pluginHookDuration", metrics.pluginHookDuration},

		{"authOutcomeTotal", metrics.authOutcomeTotal},

		{"clientCacheHitsTotal", metrics.clientCacheHitsTotal},
		{"clientCacheMissesTotal", metrics.clientCacheMissesTotal},
		{"clientCacheEvictionsTotal", metrics.clientCacheEvictionsTotal},
		{"clientCacheSize", metrics.clientCacheSize},

		{"catalogOperationsTotal", metrics.catalogOperationsTotal},
		{"catalogOperationDuration", metrics.catalogOperationDuration},
		{"federationSyncTotal", metrics.federationSyncTotal},
		{"federationPeerConnections", metrics.federationPeerConnections},
	}

	for _, check := range checks {
		if check.ptr == nil {
			t.Errorf("expected %s to be initialized, got nil", check.name)
		}
	}
}
