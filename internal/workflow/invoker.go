package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/record"
	"github.com/go-resty/resty/v2"
)

// DefaultStepTimeout bounds a step whose definition sets no timeout.
const DefaultStepTimeout = 120 * time.Second

// Invoker calls the endpoint a step declares. previous is the raw result of
// the preceding step, nil for the first step.
type Invoker interface {
	Invoke(ctx context.Context, step Step, previous any) (any, error)
}

// HTTPInvoker calls step endpoints on the portal's own HTTP surface.
type HTTPInvoker struct {
	client  *resty.Client
	baseURL string
	timeout time.Duration
}

// NewHTTPInvoker targets baseURL, e.g. "http://127.0.0.1:8080". Steps without
// their own timeout get defaultTimeout.
func NewHTTPInvoker(client *resty.Client, baseURL string, defaultTimeout time.Duration) *HTTPInvoker {
	if client == nil {
		client = resty.New()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultStepTimeout
	}
	return &HTTPInvoker{client: client, baseURL: strings.TrimRight(baseURL, "/"), timeout: defaultTimeout}
}

// StepFailure is returned for a non-2xx step response.
type StepFailure struct {
	Status int
	Body   string
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
}

// Invoke sends GET steps with their params as the query string and POST
// steps with params as the JSON body. Non-crawl POST steps also receive the
// previous result under "data".
func (h *HTTPInvoker) Invoke(ctx context.Context, step Step, previous any) (any, error) {
	timeout := h.timeout
	if step.TimeoutSeconds > 0 {
		timeout = time.Duration(step.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := strings.ToUpper(step.Config.Method)
	if method == "" {
		method = http.MethodGet
	}
	req := h.client.R().SetContext(ctx).SetHeader("Content-Type", "application/json")
	if method == http.MethodGet {
		query := make(map[string]string, len(step.Config.Params))
		for k, v := range step.Config.Params {
			query[k] = record.String(v)
		}
		req.SetQueryParams(query)
	} else {
		req.SetBody(RequestBody(step, previous))
	}

	resp, err := req.Execute(method, h.baseURL+step.Config.API)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", step.Config.API, err)
	}
	if !resp.IsSuccess() {
		return nil, &StepFailure{Status: resp.StatusCode(), Body: resp.String()}
	}
	var out any
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", step.Config.API, err)
	}
	return out, nil
}

// RequestBody builds the JSON body of a POST step.
func RequestBody(step Step, previous any) map[string]any {
	body := maps.Clone(step.Config.Params)
	if body == nil {
		body = map[string]any{}
	}
	if previous != nil && step.Type != StepCrawl {
		body["data"] = Payload(previous)
	}
	return body
}

// Payload extracts what the next step consumes from a step result: the
// result's data.items when present, else its data, else the result itself.
func Payload(result any) any {
	m, ok := result.(map[string]any)
	if !ok {
		return result
	}
	data, ok := m["data"]
	if !ok || !record.Truthy(data) {
		return result
	}
	if dm, ok := data.(map[string]any); ok {
		if items, ok := dm["items"]; ok && record.Truthy(items) {
			return items
		}
	}
	return data
}
