package t2d2

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/t2d2ai/t2d2_sdk_go/internal/httpx"
	"github.com/t2d2ai/t2d2_sdk_go/internal/t2d2api"
	"github.com/t2d2ai/t2d2_sdk_go/pkg/t2d2/storage"
)

// DefaultBaseURL is the production T2D2 API root.
const DefaultBaseURL = "https://api-v3.t2d2.ai/api/"

// DefaultUserAgent identifies the SDK in the User-Agent header.
const DefaultUserAgent = "t2d2-sdk-go"

const (
	headerAPIKey = "x-api-key"
	loginPath    = "auth/login"
)

// Option configures a Client.
type Option func(*options)

type options struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	tracing    bool
	tracer     trace.TracerProvider
	registerer prometheus.Registerer
	store      storage.Store
	s3         *storage.S3Config
	timeout    time.Duration
	debug      bool
	userAgent  string
}

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(o *options) { o.httpClient = h }
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracing instruments outbound requests with OpenTelemetry spans recorded
// on tp. A nil tp uses the global provider.
func WithTracing(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracing = true
		o.tracer = tp
	}
}

// WithMetrics registers request counters and latency histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithStorage replaces the S3 store used for asset bytes.
func WithStorage(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithS3Config customises the S3 store built after SetProject. An empty Region
// is filled from the project configuration.
func WithS3Config(cfg storage.S3Config) Option {
	return func(o *options) { o.s3 = &cfg }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserAgent replaces DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if strings.TrimSpace(ua) != "" {
			o.userAgent = ua
		}
	}
}

// WithDebug logs failing requests with their parameters and payloads.
func WithDebug(on bool) Option {
	return func(o *options) { o.debug = on }
}

// Client talks to the T2D2 API on behalf of one authenticated session.
type Client struct {
	http   *httpx.Client
	logger *zap.Logger
	debug  bool
	kind   CredentialKind
	s3     *storage.S3Config

	mu        sync.RWMutex
	store     storage.Store
	ownStore  bool
	project   Record
	s3BaseURL string
	region    string
	bucket    string
}

// New validates creds, builds the client and authenticates. Email/password
// credentials are exchanged for a bearer token before New returns.
func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	kind, err := creds.Kind()
	if err != nil {
		return nil, err
	}

	o := options{baseURL: DefaultBaseURL, logger: zap.NewNop(), userAgent: DefaultUserAgent}
	for _, opt := range opts {
		opt(&o)
	}

	httpOpts := []httpx.Option{
		httpx.WithHTTPClient(o.httpClient),
		httpx.WithTimeout(o.timeout),
		httpx.WithHeaders(http.Header{"User-Agent": []string{o.userAgent}}),
	}
	if o.tracing {
		httpOpts = append(httpOpts, httpx.WithTracing(o.tracer))
	}
	if o.registerer != nil {
		m, err := httpx.NewMetrics(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("t2d2: register metrics: %w", err)
		}
		httpOpts = append(httpOpts, httpx.WithMetrics(m))
	}
	hc, err := httpx.NewClient(o.baseURL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("t2d2: %w", err)
	}

	c := &Client{
		http:   hc,
		logger: o.logger,
		debug:  o.debug,
		kind:   kind,
		s3:     o.s3,
		store:  o.store,
	}
	if err := c.login(ctx, creds); err != nil {
		return nil, err
	}
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.http.BaseURL()
}

// CredentialKind reports which credential shape authenticated the client.
func (c *Client) CredentialKind() CredentialKind {
	return c.kind
}

func (c *Client) login(ctx context.Context, creds Credentials) error {
	switch c.kind {
	case CredentialAPIKey:
		c.http.SetHeader(headerAPIKey, strings.TrimSpace(creds.APIKey))
		return nil
	case CredentialAccessToken:
		c.http.SetHeader("Authorization", "Bearer "+strings.TrimSpace(creds.AccessToken))
		return nil
	}

	payload := map[string]string{"email": strings.TrimSpace(creds.Email), "password": creds.Password}
	rec, err := c.callRecord(ctx, http.MethodPost, loginPath, nil, payload)
	if err != nil {
		// Only a rejection of the credentials is an authentication failure;
		// outages and throttling surface unchanged.
		var apiErr *APIError
		if errors.As(err, &apiErr) && (errors.Is(apiErr, ErrAuthentication) || apiErr.StatusCode/100 == 2) {
			return fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		return err
	}
	token := rec.Map("data").Map("firebaseDetail").String("access_token")
	if token == "" {
		return fmt.Errorf("%w: login response carries no access token", ErrAuthentication)
	}
	c.http.SetHeader("Authorization", "Bearer "+token)
	c.logger.Debug("logged in", zap.String("email", creds.Email))
	return nil
}

// call performs one exchange and returns the decoded JSON document. A success
// body that is not JSON is returned as Record{"content": body}.
func (c *Client) call(ctx context.Context, method, path string, params Params, payload any) (any, error) {
	query, err := params.values()
	if err != nil {
		return nil, err
	}
	req := &httpx.Request{Method: method, Path: path, Query: query}
	if payload != nil {
		body, contentType, err := httpx.WithJSONBody(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode payload: %v", ErrInvalidArgument, err)
		}
		req.Body = body
		req.Header = http.Header{"Content-Type": []string{contentType}}
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		c.logFailure(method, path, params, payload, err)
		var httpErr *httpx.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &APIError{
				StatusCode: httpErr.StatusCode,
				Method:     method,
				Path:       path,
				Message:    httpErr.Message(),
				Body:       httpErr.Body,
			}
		}
		return nil, &RequestError{Method: method, Path: path, Err: err}
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, &RequestError{Method: method, Path: path, Err: err}
	}

	var out any
	err = t2d2api.Decode(body, &out)
	var failure *t2d2api.FailureError
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, t2d2api.ErrNotJSON):
		return Record{"content": string(body)}, nil
	case errors.As(err, &failure):
		apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path, Message: failure.Message, Body: body}
		c.logFailure(method, path, params, payload, apiErr)
		return nil, apiErr
	default:
		c.logFailure(method, path, params, payload, err)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrMalformedResponse, method, path, err)
	}
}

func (c *Client) logFailure(method, path string, params Params, payload any, err error) {
	if !c.debug {
		return
	}
	fields := []zap.Field{
		zap.String("method", method),
		zap.String("url", c.http.BaseURL()+strings.TrimPrefix(path, "/")),
		zap.Any("params", params),
		zap.Error(err),
	}
	if path != loginPath {
		fields = append(fields, zap.Any("payload", payload))
	}
	c.logger.Warn("t2d2 request failed", fields...)
}

// callRecord returns the response as a Record. Non-object documents are
// placed under "content".
func (c *Client) callRecord(ctx context.Context, method, path string, params Params, payload any) (Record, error) {
	v, err := c.call(ctx, method, path, params, payload)
	if err != nil {
		return nil, err
	}
	switch doc := v.(type) {
	case Record:
		return doc, nil
	case map[string]any:
		return Record(doc), nil
	case nil:
		return Record{}, nil
	default:
		return Record{"content": doc}, nil
	}
}

// callData returns the "data" member of the response.
func (c *Client) callData(ctx context.Context, method, path string, params Params, payload any) (any, error) {
	rec, err := c.callRecord(ctx, method, path, params, payload)
	if err != nil {
		return nil, err
	}
	data, ok := rec["data"]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s: response has no data member", ErrMalformedResponse, method, path)
	}
	return data, nil
}

func (c *Client) callDataRecord(ctx context.Context, method, path string, params Params, payload any) (Record, error) {
	data, err := c.callData(ctx, method, path, params, payload)
	if err != nil {
		return nil, err
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s: data is %T, want object", ErrMalformedResponse, method, path, data)
	}
	return Record(m), nil
}

func (c *Client) callDataList(ctx context.Context, method, path string, params Params, payload any) ([]Record, error) {
	data, err := c.callData(ctx, method, path, params, payload)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []Record{}, nil
	}
	if _, ok := data.([]any); !ok {
		return nil, fmt.Errorf("%w: %s %s: data is %T, want array", ErrMalformedResponse, method, path, data)
	}
	return toRecords(data), nil
}

// projectID returns the active project id or ErrProjectNotSet.
func (c *Client) projectID() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.project == nil {
		return 0, ErrProjectNotSet
	}
	return c.project.ID(), nil
}

func projectPath(pid int64, format string, args ...any) string {
	return fmt.Sprintf("%d/", pid) + fmt.Sprintf(format, args...)
}

const lowercase = "abcdefghijklmnopqrstuvwxyz"

func randomSuffix(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = lowercase[rand.IntN(len(lowercase))]
	}
	return string(b)
}

func randomColor() string {
	return fmt.Sprintf("#%02X%02X%02X", rand.IntN(256), rand.IntN(256), rand.IntN(256))
}
