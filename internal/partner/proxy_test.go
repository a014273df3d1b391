package partner

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greengate/internal/partner/signer"
	"greengate/internal/platform/config"
)

const testSecret = "test-partner-secret"

func testProxy(t *testing.T, baseURL string) *Proxy {
	t.Helper()
	cfg := config.PartnerConfig{
		BaseURL:   baseURL,
		APIKey:    "test-api-key",
		APISecret: testSecret,
		Timeout:   2 * time.Second,
	}
	return New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInvoke_BodySigning(t *testing.T) {
	var gotKey, gotSig, gotPath, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-auth-apikey")
		gotSig = r.Header.Get("x-auth-signature")
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"clientId": "dg-123"},
		})
	}))
	defer srv.Close()

	p := testProxy(t, srv.URL)
	env, err := p.Invoke(context.Background(), "create-client", map[string]any{
		"email":       "jane@example.com",
		"countryCode": "ZA",
	})
	require.NoError(t, err)
	require.True(t, env.Success)

	assert.Equal(t, "test-api-key", gotKey)
	assert.Equal(t, "/dapp/clients", gotPath)
	// The signature must cover the exact serialized body that was sent.
	assert.True(t, signer.Verify([]byte(testSecret), gotBody, gotSig))

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "dg-123", data["clientId"])
}

func TestInvoke_QuerySigning(t *testing.T) {
	var gotQuery, gotSig string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotSig = r.Header.Get("x-auth-signature")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": []any{}})
	}))
	defer srv.Close()

	p := testProxy(t, srv.URL)
	env, err := p.Invoke(context.Background(), "get-strains", map[string]any{
		"orderBy": "desc",
		"take":    10,
		"page":    1,
	})
	require.NoError(t, err)
	require.True(t, env.Success)

	// Query-signed endpoints sign the literal query string.
	assert.Equal(t, "orderBy=desc&page=1&take=10", gotQuery)
	assert.True(t, signer.Verify([]byte(testSecret), gotQuery, gotSig))
}

func TestInvoke_PathParameters(t *testing.T) {
	var gotPath, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]bool{"kycVerified": true}})
	}))
	defer srv.Close()

	p := testProxy(t, srv.URL)
	env, err := p.Invoke(context.Background(), "get-client", map[string]any{"clientId": "dg-123"})
	require.NoError(t, err)
	require.True(t, env.Success)

	assert.Equal(t, "/dapp/clients/dg-123", gotPath)
	// Path parameters are consumed, not repeated in the body; GETs carry no body.
	assert.Empty(t, gotBody)
}

func TestInvoke_PathParameterMissing(t *testing.T) {
	p := testProxy(t, "http://partner.invalid")
	env, err := p.Invoke(context.Background(), "get-client", map[string]any{})
	require.ErrorIs(t, err, ErrConfig)
	assert.False(t, env.Success)
	assert.Equal(t, "config_error", env.Error)
}

func TestInvoke_SuccessFlagNormalization(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"boolean false", `{"success": false, "message": "client already exists"}`},
		{"string false", `{"success": "false", "message": "client already exists"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := testProxy(t, srv.URL)
			env, err := p.Invoke(context.Background(), "create-client", map[string]any{"email": "a@b.co"})
			require.ErrorIs(t, err, ErrPartner)
			assert.False(t, env.Success)
			assert.Equal(t, "partner_error", env.Error)
			// Message extraction is identical for both shapes.
			assert.Equal(t, "client already exists", env.Message)
		})
	}
}

func TestInvoke_StringTrueSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": "true", "data": {"ok": true}}`))
	}))
	defer srv.Close()

	p := testProxy(t, srv.URL)
	env, err := p.Invoke(context.Background(), "get-client", map[string]any{"clientId": "dg-1"})
	require.NoError(t, err)
	assert.True(t, env.Success)
}

func TestInvoke_Idempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "data": {"clientId": "dg-9", "kycVerified": false}}`))
	}))
	defer srv.Close()

	p := testProxy(t, srv.URL)
	first, err := p.Invoke(context.Background(), "get-client", map[string]any{"clientId": "dg-9"})
	require.NoError(t, err)
	second, err := p.Invoke(context.Background(), "get-client", map[string]any{"clientId": "dg-9"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestInvoke_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	cfg := config.PartnerConfig{
		BaseURL:   srv.URL,
		APIKey:    "k",
		APISecret: "s",
		Timeout:   30 * time.Millisecond,
	}
	p := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	env, err := p.Invoke(context.Background(), "get-client", map[string]any{"clientId": "dg-1"})
	require.ErrorIs(t, err, ErrNetwork)
	assert.False(t, env.Success)
	assert.Equal(t, "network_error", env.Error)
}

func TestInvoke_MissingCredentials(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	cfg := config.PartnerConfig{BaseURL: srv.URL, Timeout: time.Second}
	p := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	env, err := p.Invoke(context.Background(), "create-client", map[string]any{"email": "a@b.co"})
	require.ErrorIs(t, err, ErrConfig)
	assert.False(t, env.Success)
	assert.Equal(t, "config_error", env.Error)
	// Config errors abort before any network call.
	assert.Equal(t, int32(0), calls.Load())
}

func TestInvoke_UnknownAction(t *testing.T) {
	p := testProxy(t, "http://partner.invalid")
	env, err := p.Invoke(context.Background(), "mint-tokens", nil)
	require.ErrorIs(t, err, ErrUnknownAction)
	assert.False(t, env.Success)
}

func TestInvoke_BareJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"strainId": "s1"}]`))
	}))
	defer srv.Close()

	p := testProxy(t, srv.URL)
	env, err := p.Invoke(context.Background(), "get-strains", map[string]any{"page": 1})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.JSONEq(t, `[{"strainId": "s1"}]`, string(env.Data))
}
