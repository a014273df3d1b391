// Package partner proxies internal actions to the fulfilment partner's REST
// API. The proxy owns canonicalization, signing, the request timeout, and
// normalization of the partner's heterogeneous response shapes; it holds no
// state between calls and never persists results. Persistence after a
// successful call (for example upserting the patient record a create-client
// response yields) is the caller's responsibility.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"greengate/internal/partner/metrics"
	"greengate/internal/partner/signer"
	"greengate/internal/platform/config"
)

const (
	headerAPIKey    = "x-auth-apikey"
	headerSignature = "x-auth-signature"
)

// Proxy signs and forwards internal actions to the partner API.
type Proxy struct {
	cfg     config.PartnerConfig
	client  *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Proxy)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Proxy) {
		p.client = client
	}
}

// WithMetrics attaches partner call metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Proxy) {
		p.metrics = m
	}
}

// New constructs a Proxy.
func New(cfg config.PartnerConfig, logger *slog.Logger, opts ...Option) *Proxy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	p := &Proxy{
		cfg:    cfg,
		client: &http.Client{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Invoke dispatches an internal action to the partner. It always returns a
// non-nil Envelope; the error mirrors the envelope's classification so
// callers can branch with errors.Is without inspecting strings. Partner-side
// business failures surface as ErrPartner with the partner's message intact.
func (p *Proxy) Invoke(ctx context.Context, action string, data map[string]any) (*Envelope, error) {
	start := time.Now()

	spec, ok := actionTable[action]
	if !ok {
		p.metrics.Observe(action, "unknown_action", start)
		return failure(kindConfig, fmt.Sprintf("unknown action %q", action), ErrUnknownAction)
	}

	if p.cfg.APIKey == "" || p.cfg.APISecret == "" {
		p.logger.ErrorContext(ctx, "partner credentials missing", "action", action)
		p.metrics.Observe(action, "config_error", start)
		return failure(kindConfig, "partner API credentials are not configured", ErrConfig)
	}

	path, payload, err := fillPath(spec.Path, data)
	if err != nil {
		p.metrics.Observe(action, "config_error", start)
		return failure(kindConfig, err.Error(), ErrConfig)
	}

	// Hard timeout for the whole call; a timeout surfaces as a normalized
	// network error, never a crash.
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := p.buildRequest(callCtx, spec, path, payload)
	if err != nil {
		p.metrics.Observe(action, "config_error", start)
		return failure(kindConfig, err.Error(), ErrConfig)
	}

	p.logger.DebugContext(ctx, "invoking partner action",
		"action", action,
		"method", spec.Method,
		"path", path,
		"signing_mode", string(spec.Mode),
	)

	resp, err := p.client.Do(req)
	if err != nil {
		msg := "partner request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "partner request timed out"
		}
		p.logger.WarnContext(ctx, msg, "action", action, "error", err)
		p.metrics.Observe(action, "network_error", start)
		return failure(kindNetwork, msg, ErrNetwork)
	}
	defer resp.Body.Close()

	env, err := p.normalize(ctx, action, resp)
	if err != nil {
		p.metrics.Observe(action, "partner_error", start)
		return env, err
	}
	p.metrics.Observe(action, "success", start)
	return env, nil
}

// buildRequest canonicalizes the payload per the action's signing mode,
// signs it, and assembles the outbound request with both auth headers.
func (p *Proxy) buildRequest(ctx context.Context, spec actionSpec, path string, payload map[string]any) (*http.Request, error) {
	target := strings.TrimRight(p.cfg.BaseURL, "/") + path

	var canonical string
	var body io.Reader

	switch spec.Mode {
	case SignQuery:
		values := url.Values{}
		for k, v := range payload {
			values.Set(k, fmt.Sprint(v))
		}
		// Encode sorts keys, so the signed string and the sent query string
		// are byte-identical and stable across calls.
		canonical = values.Encode()
		if canonical != "" {
			target += "?" + canonical
		}
	default: // SignBody
		serialized, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("serialize payload: %w", err)
		}
		canonical = string(serialized)
		if spec.Method != http.MethodGet {
			body = bytes.NewReader(serialized)
		}
	}

	signature, err := signer.Sign([]byte(p.cfg.APISecret), canonical)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set(headerAPIKey, p.cfg.APIKey)
	req.Header.Set(headerSignature, signature)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// normalize folds the partner's response variants into one Envelope. The
// partner signals failure as boolean false from some endpoints and the
// string "false" from others; both collapse here and the ambiguity never
// propagates past this boundary.
func (p *Proxy) normalize(ctx context.Context, action string, resp *http.Response) (*Envelope, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return failure(kindNetwork, "read partner response", ErrNetwork)
	}

	httpOK := resp.StatusCode >= 200 && resp.StatusCode < 300

	var pr partnerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		if httpOK {
			// Some endpoints return a bare JSON value with no envelope.
			return &Envelope{Success: true, Data: raw}, nil
		}
		msg := fmt.Sprintf("partner returned status %d", resp.StatusCode)
		p.logger.WarnContext(ctx, "unparseable partner failure", "action", action, "status", resp.StatusCode)
		return failure(kindPartner, msg, ErrPartner)
	}

	if !pr.succeeded(httpOK) {
		msg := pr.message()
		if msg == "" {
			msg = fmt.Sprintf("partner reported failure (status %d)", resp.StatusCode)
		}
		p.logger.WarnContext(ctx, "partner rejected action", "action", action, "status", resp.StatusCode, "message", msg)
		return failure(kindPartner, msg, ErrPartner)
	}

	data := pr.Data
	if len(data) == 0 {
		data = raw
	}
	return &Envelope{Success: true, Data: data, Message: pr.Message}, nil
}

// fillPath substitutes {param} segments from the payload and returns the
// remaining payload for body/query serialization. Path parameters are
// consumed: they never appear twice (in the path and the signed payload).
func fillPath(template string, data map[string]any) (string, map[string]any, error) {
	remaining := make(map[string]any, len(data))
	for k, v := range data {
		remaining[k] = v
	}

	segments := strings.Split(template, "/")
	for i, seg := range segments {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}
		name := seg[1 : len(seg)-1]
		v, ok := remaining[name]
		if !ok {
			return "", nil, fmt.Errorf("missing path parameter %q", name)
		}
		segments[i] = url.PathEscape(fmt.Sprint(v))
		delete(remaining, name)
	}
	return strings.Join(segments, "/"), remaining, nil
}
