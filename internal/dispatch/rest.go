package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// RESTInvoker calls a Tool whose IntegrationType is REST, building the
// request from the Tool's PathTemplate/QueryMapping/HeaderMapping and
// retrying transient failures. One retryablehttp.Client is shared per host
// (the URL scheme is not part of the key) so connections pool rather than
// being rebuilt per call.
type RESTInvoker struct {
	mu      sync.Mutex
	clients map[string]*retryablehttp.Client

	maxRetries int
	logger     *slog.Logger
}

// NewRESTInvoker builds a RESTInvoker with up to maxRetries retries on
// transient failures (5xx, connection errors), logged via logger.
func NewRESTInvoker(maxRetries int, logger *slog.Logger) *RESTInvoker {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RESTInvoker{clients: make(map[string]*retryablehttp.Client), maxRetries: maxRetries, logger: logger}
}

func (r *RESTInvoker) clientFor(host string) *retryablehttp.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[host]; ok {
		return c
	}
	c := retryablehttp.NewClient()
	c.RetryMax = r.maxRetries
	c.Logger = nil // structured logging below replaces retryablehttp's own
	c.HTTPClient.Timeout = 60 * time.Second
	r.clients[host] = c
	return c
}

// Invoke builds and issues the HTTP request for tool, substituting
// arguments into PathTemplate/QueryMapping, attaching HeaderMapping plus
// any allowed passthrough headers, and decoding a JSON response body into
// a map.
func (r *RESTInvoker) Invoke(ctx context.Context, tool *catalog.Tool, arguments map[string]any, passthrough PassthroughHeaders) (map[string]any, error) {
	url, err := buildURL(tool.BaseURL, tool.PathTemplate, tool.QueryMapping, arguments)
	if err != nil {
		return nil, gwerrors.InvalidRequest("tool %s: %v", tool.Name, err)
	}

	var body io.Reader
	method := string(tool.RequestType)
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodGet && method != http.MethodDelete {
		raw, err := json.Marshal(arguments)
		if err != nil {
			return nil, gwerrors.Internal(err, "marshal arguments for tool %s", tool.Name)
		}
		body = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, gwerrors.Internal(err, "build request for tool %s", tool.Name)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range tool.HeaderMapping {
		req.Header.Set(k, v)
	}
	for k, v := range passthrough {
		req.Header.Set(k, v)
	}

	client := r.clientFor(hostOf(url))
	resp, err := client.Do(req)
	if err != nil {
		return nil, gwerrors.Upstream(err, "tool %s: request failed", tool.Name)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gwerrors.Upstream(err, "tool %s: read response", tool.Name)
	}

	if resp.StatusCode >= 400 {
		r.logger.Warn("upstream tool call returned an error status", slog.String("tool", tool.Name), slog.Int("status", resp.StatusCode))
		return nil, gwerrors.Upstream(fmt.Errorf("status %d", resp.StatusCode), "tool %s: upstream error", tool.Name)
	}

	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		// Non-JSON upstreams are wrapped rather than rejected, so plain-text
		// REST adapters (status pages, health checks) still round-trip.
		return map[string]any{"raw": string(raw)}, nil
	}
	return result, nil
}

func buildURL(baseURL, pathTemplate string, queryMapping map[string]string, arguments map[string]any) (string, error) {
	path := pathTemplate
	for key, value := range arguments {
		placeholder := "{" + key + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, fmt.Sprintf("%v", value))
		}
	}
	if strings.Contains(path, "{") {
		return "", fmt.Errorf("unresolved path template placeholder in %q", path)
	}

	full := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	if len(queryMapping) == 0 {
		return full, nil
	}

	q := make([]string, 0, len(queryMapping))
	for argName, queryParam := range queryMapping {
		if v, ok := arguments[argName]; ok {
			q = append(q, fmt.Sprintf("%s=%v", queryParam, v))
		}
	}
	if len(q) == 0 {
		return full, nil
	}
	return full + "?" + strings.Join(q, "&"), nil
}

func hostOf(rawURL string) string {
	without := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if idx := strings.IndexByte(without, '/'); idx >= 0 {
		return without[:idx]
	}
	return without
}
