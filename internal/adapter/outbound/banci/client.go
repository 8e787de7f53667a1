// Package banci provides the outbound session client for the BANCIWS REST
// API behind the F5 Big-IP APM access-control layer. The client owns one
// mTLS identity and one cookie jar, establishes the session lazily through
// a redirect-following bootstrap probe, and recovers from silent session
// invalidation with a single transparent retry.
package banci

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/danubesoft/ifn-gateway/internal/domain/upstream"
	"github.com/danubesoft/ifn-gateway/internal/port/outbound"
)

const (
	// DefaultBootstrapTimeout bounds the bootstrap probe including its
	// redirect chain. The access-control handshake is fast when it works.
	DefaultBootstrapTimeout = 30 * time.Second

	// DefaultRequestTimeout bounds business POSTs, whose upstream processing
	// can be slow (message downloads, uploads).
	DefaultRequestTimeout = 60 * time.Second

	// DefaultClientID is the distinguishing User-Agent sent on every call.
	DefaultClientID = "ifn-gateway/1.0"

	// maxResponseBodySize caps upstream response bodies to prevent OOM.
	maxResponseBodySize = 10 * 1024 * 1024 // 10MB
)

// SessionClient is the session-lifecycle state machine. One instance lives
// for the process lifetime and is safe for concurrent use: bootstrap probes
// are serialized behind mu, business POSTs run concurrently.
type SessionClient struct {
	baseURL           string
	clientID          string
	bootstrapEndpoint string
	bootstrapPayload  []byte
	classifier        upstream.Classifier
	logger            *slog.Logger
	metrics           *Metrics

	// authClient follows redirects: the access-control layer delivers the
	// session cookie through the redirect chain of the first request.
	authClient *http.Client
	// sendClient never follows redirects: a redirect on a business call is
	// itself evidence of session loss, and following it would route the call
	// into the login flow.
	sendClient *http.Client

	mu            sync.Mutex
	authenticated bool
	// generation increments on every successful bootstrap. Callers that
	// detect invalidity pass the generation they authenticated under, so
	// concurrent detections trigger at most one probe.
	generation uint64
}

// Option configures a SessionClient.
type Option func(*SessionClient)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *SessionClient) { c.logger = logger }
}

// WithClassifier replaces the response classifier. Defaults to the
// heuristic classifier with the observed F5 status sets.
func WithClassifier(cl upstream.Classifier) Option {
	return func(c *SessionClient) { c.classifier = cl }
}

// WithBootstrap sets the bootstrap endpoint and probe payload. The probe
// response body is discarded; only the cookie side effect matters.
func WithBootstrap(endpoint string, payload []byte) Option {
	return func(c *SessionClient) {
		c.bootstrapEndpoint = endpoint
		c.bootstrapPayload = payload
	}
}

// WithTimeouts overrides the bootstrap and business call timeouts.
func WithTimeouts(bootstrap, request time.Duration) Option {
	return func(c *SessionClient) {
		if bootstrap > 0 {
			c.authClient.Timeout = bootstrap
		}
		if request > 0 {
			c.sendClient.Timeout = request
		}
	}
}

// WithClientID sets the distinguishing User-Agent header value.
func WithClientID(id string) Option {
	return func(c *SessionClient) { c.clientID = id }
}

// WithMetrics attaches Prometheus metrics for probes and retries.
func WithMetrics(m *Metrics) Option {
	return func(c *SessionClient) { c.metrics = m }
}

// NewSessionClient creates a client for the given base URL using transport
// as the underlying round tripper. The mTLS identity and trust policy live
// in the transport (see NewTransport); wrap it with otelhttp for tracing.
// A trailing slash on baseURL is normalized here.
func NewSessionClient(baseURL string, transport http.RoundTripper, opts ...Option) (*SessionClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &SessionClient{
		baseURL:           strings.TrimSuffix(baseURL, "/") + "/",
		clientID:          DefaultClientID,
		bootstrapEndpoint: "listaMesaje",
		classifier:        upstream.NewHeuristicClassifier(nil, nil),
		logger:            slog.Default(),
		authClient: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   DefaultBootstrapTimeout,
		},
		sendClient: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   DefaultRequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// EnsureAuthenticated performs one bootstrap probe if no session is believed
// valid. The flag is optimistic: invalidity is re-checked on every real
// response in Send.
func (c *SessionClient) EnsureAuthenticated(ctx context.Context) error {
	_, err := c.ensure(ctx)
	return err
}

// ensure returns the current authentication generation, probing first if the
// session is not believed valid. Holding mu across the probe serializes
// concurrent authentication attempts.
func (c *SessionClient) ensure(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.authenticated {
		if err := c.bootstrapLocked(ctx); err != nil {
			return 0, err
		}
	}
	return c.generation, nil
}

// reauthenticate forces a fresh bootstrap probe after a business response
// proved the session stale. seenGen is the generation the caller sent its
// request under: if another caller already re-established the session, the
// probe is skipped and the new generation returned.
func (c *SessionClient) reauthenticate(ctx context.Context, seenGen uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != seenGen {
		return c.generation, nil
	}

	c.authenticated = false
	if err := c.bootstrapLocked(ctx); err != nil {
		return 0, err
	}
	return c.generation, nil
}

// bootstrapLocked runs the bootstrap probe. Caller must hold mu.
// The probe POSTs a minimal payload with redirects enabled; the redirect
// chain is how the access-control layer issues the session cookie. The
// response payload is discarded, only its classification matters.
func (c *SessionClient) bootstrapLocked(ctx context.Context) error {
	c.logger.Info("establishing upstream session", "endpoint", c.bootstrapEndpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+c.bootstrapEndpoint, bytes.NewReader(c.bootstrapPayload))
	if err != nil {
		return &upstream.ConnectionError{Op: "bootstrap", Err: err}
	}
	c.setHeaders(req)

	resp, err := c.authClient.Do(req)
	if err != nil {
		c.observeProbe("connection_error")
		return &upstream.ConnectionError{Op: "bootstrap", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	prefix, err := io.ReadAll(io.LimitReader(resp.Body, upstream.BodyPrefixLen))
	if err != nil {
		c.observeProbe("connection_error")
		return &upstream.ConnectionError{Op: "bootstrap", Err: err}
	}
	// Drain the rest so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	contentType := resp.Header.Get("Content-Type")
	if !c.classifier.BootstrapAccepted(resp.StatusCode, contentType, prefix) {
		c.observeProbe("auth_failed")
		reason := "status not in allow list"
		if upstream.LooksLikeHTML(contentType, prefix) {
			reason = "received HTML login page"
		}
		c.logger.Error("upstream session establishment failed",
			"status", resp.StatusCode, "reason", reason)
		return &upstream.AuthError{StatusCode: resp.StatusCode, Reason: reason}
	}

	c.authenticated = true
	c.generation++
	c.observeProbe("ok")
	c.logger.Info("upstream session established", "generation", c.generation)
	return nil
}

// Send POSTs payload to the named endpoint with redirects disabled. If the
// response is classified session-invalid, the client re-authenticates and
// retries exactly once; the second outcome is returned verbatim. At most two
// business POSTs and two bootstrap probes happen per call.
func (c *SessionClient) Send(ctx context.Context, endpoint string, payload []byte) (*upstream.Response, error) {
	gen, err := c.ensure(ctx)
	if err != nil {
		return nil, err
	}

	const maxAttempts = 2
	for attempt := 1; ; attempt++ {
		resp, err := c.post(ctx, endpoint, payload, attempt > 1)
		if err != nil {
			return nil, err
		}

		verdict := c.classifier.Classify(resp.StatusCode, resp.ContentType, bodyPrefix(resp.Body))
		if verdict == upstream.VerdictValid || attempt == maxAttempts {
			return resp, nil
		}

		c.logger.Warn("session likely invalidated, re-authenticating",
			"endpoint", endpoint, "status", resp.StatusCode)
		if c.metrics != nil {
			c.metrics.SessionRetries.Inc()
		}

		gen, err = c.reauthenticate(ctx, gen)
		if err != nil {
			return nil, err
		}
	}
}

// post performs a single business POST and reads the capped response body.
func (c *SessionClient) post(ctx context.Context, endpoint string, payload []byte, retried bool) (*upstream.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &upstream.ConnectionError{Op: endpoint, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.sendClient.Do(req)
	if err != nil {
		return nil, &upstream.ConnectionError{Op: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, &upstream.ConnectionError{Op: endpoint, Err: err}
	}

	return &upstream.Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		Retried:     retried,
	}, nil
}

func (c *SessionClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("User-Agent", c.clientID)
}

func (c *SessionClient) observeProbe(result string) {
	if c.metrics != nil {
		c.metrics.BootstrapProbes.WithLabelValues(result).Inc()
	}
}

// Authenticated reports the optimistic session flag, for health checks.
func (c *SessionClient) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func bodyPrefix(body []byte) []byte {
	if len(body) > upstream.BodyPrefixLen {
		return body[:upstream.BodyPrefixLen]
	}
	return body
}

// Compile-time check that SessionClient implements BusinessClient.
var _ outbound.BusinessClient = (*SessionClient)(nil)
