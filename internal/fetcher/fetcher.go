// Package fetcher performs upstream HTTP calls with bounded retries,
// classifying failures as transient (retried) or logical (returned at once).
package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/subsidy-portal/internal/telemetry"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// DefaultFaultMarker is embedded by the public data portal in gateway error pages.
const DefaultFaultMarker = "OpenAPI_S"

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// ResultChecker inspects a decoded body and returns a LogicalError when the
// upstream reports an application-level failure.
type ResultChecker func(decoded any) error

// Request describes one logical upstream call.
type Request struct {
	// Source labels metrics and logs, e.g. "partner_detail".
	Source  string
	Method  string
	URL     string
	Query   map[string]string
	Body    any
	Headers map[string]string
	Check   ResultChecker
}

// Response is a successfully fetched and decoded upstream payload.
type Response struct {
	Status   int
	Body     []byte
	Data     any
	Attempts int
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &LogicalError{Kind: KindParse, Status: r.Status, Err: err}
	}
	return nil
}

// Waiter throttles attempts per upstream host.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithWaiter throttles every attempt through w.
func WithWaiter(w Waiter) Option {
	return func(f *Fetcher) { f.waiter = w }
}

// WithSleeper replaces the backoff sleeper, mainly for tests.
func WithSleeper(s Sleeper) Option {
	return func(f *Fetcher) { f.sleep = s }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithFaultMarkers replaces the body markers that flag a gateway error page.
func WithFaultMarkers(markers ...string) Option {
	return func(f *Fetcher) { f.faultMarkers = markers }
}

// Fetcher executes Requests under a retry Policy.
type Fetcher struct {
	client       *resty.Client
	policy       Policy
	waiter       Waiter
	sleep        Sleeper
	logger       *zap.Logger
	faultMarkers []string
}

// NewClient builds the resty client shared by upstream integrations.
func NewClient(timeout time.Duration, userAgent string) *resty.Client {
	c := resty.New()
	c.SetTimeout(timeout)
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}
	c.SetHeader("Accept", "application/json")
	return c
}

// New creates a Fetcher using client as transport.
func New(client *resty.Client, policy Policy, opts ...Option) *Fetcher {
	if client == nil {
		client = resty.New()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	f := &Fetcher{
		client:       client,
		policy:       policy,
		sleep:        SleepContext,
		logger:       zap.NewNop(),
		faultMarkers: []string{DefaultFaultMarker},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Policy returns the retry policy in use.
func (f *Fetcher) Policy() Policy { return f.policy }

// Fetch runs req until it succeeds, fails logically or runs out of attempts.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		resp, err := f.attempt(ctx, req, attempt)
		if err == nil {
			resp.Attempts = attempt
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.URL, ctxErr)
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err
		if attempt == f.policy.MaxAttempts {
			break
		}

		delay := f.policy.Backoff(attempt)
		telemetry.ObserveFetchRetry(req.Source)
		f.logger.Warn("retrying upstream call",
			zap.String("source", req.Source),
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
		}
	}
	return nil, fmt.Errorf("fetch %s: %w after %d attempts: %w", req.URL, ErrExhausted, f.policy.MaxAttempts, lastErr)
}

func (f *Fetcher) attempt(ctx context.Context, req Request, attempt int) (*Response, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "fetch.attempt")
	defer span.End()
	span.SetAttributes(
		attribute.String("fetch.source", req.Source),
		attribute.String("http.url", req.URL),
		attribute.Int("fetch.attempt", attempt),
	)

	resp, err := f.do(ctx, req)
	outcome := "success"
	switch {
	case err == nil:
	case IsTransient(err):
		outcome = "transient"
	default:
		outcome = "logical"
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	telemetry.ObserveFetchAttempt(req.Source, outcome)
	return resp, err
}

func (f *Fetcher) do(ctx context.Context, req Request) (*Response, error) {
	if f.waiter != nil {
		if err := f.waiter.Wait(ctx, req.URL); err != nil {
			return nil, err
		}
	}

	r := f.client.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	raw, err := r.Execute(method, req.URL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Reason: "transport", Err: err}
	}

	status := raw.StatusCode()
	body := raw.Body()
	if retryableStatus[status] {
		return nil, &TransientError{Status: status, Reason: "status"}
	}
	if status < 200 || status > 299 {
		return nil, &LogicalError{Kind: KindStatus, Status: status}
	}
	if looksLikeHTML(body) {
		return nil, &TransientError{Status: status, Reason: "html body"}
	}
	for _, marker := range f.faultMarkers {
		if marker != "" && bytes.Contains(body, []byte(marker)) {
			return nil, &TransientError{Status: status, Reason: "fault marker " + marker}
		}
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &LogicalError{Kind: KindParse, Status: status, Err: err}
	}
	if req.Check != nil {
		if err := req.Check(decoded); err != nil {
			var le *LogicalError
			if !errors.As(err, &le) {
				err = &LogicalError{Kind: KindResultCode, Status: status, Message: err.Error(), Err: err}
			}
			return nil, err
		}
	}
	return &Response{Status: status, Body: body, Data: decoded}, nil
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// PublicDataResult checks response.header.resultCode against expected, the
// envelope used by apis.data.go.kr.
func PublicDataResult(expected string) ResultChecker {
	return func(decoded any) error {
		code, msg := publicDataHeader(decoded)
		if code != expected {
			return &LogicalError{Kind: KindResultCode, Code: code, Message: msg}
		}
		return nil
	}
}

func publicDataHeader(decoded any) (string, string) {
	root, _ := decoded.(map[string]any)
	resp, _ := root["response"].(map[string]any)
	header, _ := resp["header"].(map[string]any)
	code, _ := header["resultCode"].(string)
	msg, _ := header["resultMsg"].(string)
	return code, msg
}
