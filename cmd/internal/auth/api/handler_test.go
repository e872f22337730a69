package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"authcore/cmd/identity"
	"authcore/cmd/internal/auth/session"
	"authcore/cmd/security/password"
	"authcore/cmd/security/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()

	codec, err := token.NewJWTCodec([]byte(strings.Repeat("k", 32)), "authcore-test", 0)
	require.NoError(t, err)

	pw := password.DefaultConfig()
	pw.Algorithm = password.AlgorithmBcrypt
	pw.BcryptCost = 4

	m, err := session.NewManager(session.DefaultConfig(), identity.NewMemoryStore(), session.NewMemoryStore(), codec, pw)
	require.NoError(t, err)

	h, err := NewHandler(nil, m, cfg)
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, bearer, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.ContentLength != 0 {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

const aliceJSON = `{"username":"alice","display_name":"Alice","email":"alice@example.com","password":"wonderland"}`

func sessionField(t *testing.T, body map[string]any, key string) string {
	t.Helper()
	sess, ok := body["session"].(map[string]any)
	require.True(t, ok, "missing session in %v", body)
	v, _ := sess[key].(string)
	require.NotEmpty(t, v, "missing %s", key)
	return v
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHandler_RegisterLoginRefreshLogout(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	resp, body := doJSON(t, srv, http.MethodPost, "/auth/register", "", aliceJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "alice@example.com", user["email"])
	assert.NotContains(t, user, "password_hash")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	r1 := sessionField(t, body, "refresh_token")

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"wonderland"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	access := sessionField(t, body, "access_token")

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/refresh", "", `{"refresh_token":"`+r1+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sessionField(t, body, "refresh_token")

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/refresh", "", `{"refresh_token":"`+r1+`"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", errorCode(body))

	resp, body = doJSON(t, srv, http.MethodGet, "/auth/me", access, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["user"].(map[string]any)["username"])

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/logout", access, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["revoked"])
	assert.NotEmpty(t, body["message"])

	// Access tokens outlive logout.
	resp, body = doJSON(t, srv, http.MethodPost, "/auth/validate", "", `{"token":"`+access+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
}

func TestHandler_ErrorMapping(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	resp, _ := doJSON(t, srv, http.MethodPost, "/auth/register", "", aliceJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"duplicate email", http.MethodPost, "/auth/register", aliceJSON, http.StatusConflict, "conflict"},
		{"bad username", http.MethodPost, "/auth/register", `{"username":"x","email":"x@example.com","password":"secret1"}`, http.StatusBadRequest, "invalid_input"},
		{"unknown field", http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"p","admin":true}`, http.StatusBadRequest, "invalid_json"},
		{"trailing data", http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"p"}{}`, http.StatusBadRequest, "invalid_json"},
		{"missing password", http.MethodPost, "/auth/login", `{"email":"a@b.c"}`, http.StatusBadRequest, "invalid_input"},
		{"wrong password", http.MethodPost, "/auth/login", `{"email":"alice@example.com","password":"nope-nope"}`, http.StatusUnauthorized, "unauthorized"},
		{"missing refresh", http.MethodPost, "/auth/refresh", `{}`, http.StatusBadRequest, "invalid_input"},
		{"bad refresh", http.MethodPost, "/auth/refresh", `{"refresh_token":"junk"}`, http.StatusUnauthorized, "unauthorized"},
		{"logout without bearer", http.MethodPost, "/auth/logout", "", http.StatusUnauthorized, "unauthorized"},
		{"me without bearer", http.MethodGet, "/auth/me", "", http.StatusUnauthorized, "unauthorized"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, srv, tc.method, tc.path, "", tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, errorCode(body))
		})
	}
}

func TestHandler_LoginMessagesDoNotLeakExistence(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())
	_, _ = doJSON(t, srv, http.MethodPost, "/auth/register", "", aliceJSON)

	_, wrong := doJSON(t, srv, http.MethodPost, "/auth/login", "", `{"email":"alice@example.com","password":"nope-nope"}`)
	_, unknown := doJSON(t, srv, http.MethodPost, "/auth/login", "", `{"email":"bob@example.com","password":"nope-nope"}`)
	assert.Equal(t, wrong, unknown)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	for _, path := range []string{"/auth/register", "/auth/login", "/auth/refresh", "/auth/logout", "/auth/validate"} {
		resp, _ := doJSON(t, srv, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
	resp, _ := doJSON(t, srv, http.MethodPost, "/auth/me", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandler_ValidateNeverErrors(t *testing.T) {
	srv := newTestServer(t, DefaultConfig())

	resp, body := doJSON(t, srv, http.MethodPost, "/auth/validate", "", `{"token":"garbage"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["valid"])
	assert.NotContains(t, body, "user")

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/validate", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["valid"])

	for _, raw := range []string{`{"token":`, `not json`, `{"token":"x","extra":1}`} {
		resp, body = doJSON(t, srv, http.MethodPost, "/auth/validate", "", raw)
		require.Equal(t, http.StatusOK, resp.StatusCode, raw)
		assert.Equal(t, false, body["valid"], raw)
		assert.NotContains(t, body, "error", raw)
	}

	_, reg := doJSON(t, srv, http.MethodPost, "/auth/register", "", aliceJSON)
	access := sessionField(t, reg, "access_token")

	resp, body = doJSON(t, srv, http.MethodPost, "/auth/validate", access, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])
	assert.NotEmpty(t, body["expires_at"])
}

func TestHandler_LoginThrottle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoginIPMax = 3
	srv := newTestServer(t, cfg)

	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, srv, http.MethodPost, "/auth/login", "", `{"email":"x@example.com","password":"nope-nope"}`)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	resp, body := doJSON(t, srv, http.MethodPost, "/auth/login", "", `{"email":"y@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", errorCode(body))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

type stubService struct {
	Service
	err error
}

func (s stubService) Refresh(context.Context, string) (session.TokenPair, error) {
	return session.TokenPair{}, s.err
}

func TestHandler_StorageErrorIs500WithSafeMessage(t *testing.T) {
	storageFailure := &session.Error{Op: "session.Refresh", Kind: session.ErrStorage, Msg: "storage unavailable", Err: errors.New("dial tcp 10.0.0.5:5432: refused")}
	h, err := NewHandler(nil, stubService{err: storageFailure}, DefaultConfig())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"refresh_token":"x"}`))
	h.handleRefresh(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage_error"`)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "192.0.2.1", clientIP(req, false).String())
	assert.Equal(t, "203.0.113.9", clientIP(req, true).String())
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearerabc":    "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, bearerToken(req), header)
	}
}
