package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"runtime"
	"testing"

	"rentchain.org/internal/anchor"
	"rentchain.org/internal/auth"
	"rentchain.org/internal/market"
	"rentchain.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("RENTCHAIN_AUTH_SECRET", "")
	auth.ResetSecretForTests()

	sim := anchor.NewSimulated()
	svc := market.NewService(market.NewMemStore(), sim, sim)
	api := New(ReadyProbe{}, "test", svc, stream.New()).
		Tune(1000, 1000, 0, "", 0)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// errorCode extracts the machine code out of an error response.
func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code       string `json:"code"`
			Message    string `json:"message"`
			StatusCode int    `json:"statusCode"`
		} `json:"error"`
	}
	decodeBody(t, resp, &payload)
	if payload.Error.StatusCode != resp.StatusCode {
		t.Fatalf("statusCode mismatch: body %d vs http %d", payload.Error.StatusCode, resp.StatusCode)
	}
	return payload.Error.Code
}

func (c *apiClient) register(role, name, email string) market.User {
	c.t.Helper()
	resp := c.post("/v1/users/register", map[string]any{
		"role":     role,
		"name":     name,
		"email":    email,
		"password": "secret123",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: unexpected status %d", email, resp.StatusCode)
	}
	var session struct {
		User market.User `json:"user"`
	}
	decodeBody(c.t, resp, &session)
	return session.User
}

func TestHealthz(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var body map[string]any
	decodeBody(t, resp, &body)
	if body["service"] != "rentchain-api" || body["version"] != "test" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyzReportsProbeFailure(t *testing.T) {
	t.Setenv("RENTCHAIN_AUTH_SECRET", "")
	auth.ResetSecretForTests()

	sim := anchor.NewSimulated()
	svc := market.NewService(market.NewMemStore(), sim, sim)
	probe := ReadyProbe{Ping: func(ctx context.Context) error { return errors.New("db down") }}
	api := New(probe, "test", svc, stream.New())

	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/v1/nope", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestSecurityAndRequestIDHeaders(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/healthz", nil, nil)
	defer resp.Body.Close()
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing security headers")
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
}

func TestRateLimitRejectsAfterBurst(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	before := runtime.NumGoroutine()
	h := RateLimit(ok, 2, 1)
	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/properties", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: status %d, want %d", i, rec.Code, want)
		}
	}

	// A client on another address gets its own bucket.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/properties", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh client limited: %d", rec.Code)
	}

	for i := 0; i < 20; i++ {
		RateLimit(ok, 1, 1)
	}
	if after := runtime.NumGoroutine(); after > before {
		t.Fatalf("limiter spawned goroutines: %d -> %d", before, after)
	}
}

func TestRegisterLoginAndGetUser(t *testing.T) {
	c := newTestAPI(t)
	user := c.register("tenant", "Jane Tenant", "jane@example.com")
	if user.ID == 0 || user.Role != market.RoleTenant {
		t.Fatalf("unexpected user: %+v", user)
	}

	resp := c.post("/v1/users/login", map[string]any{
		"email":    "jane@example.com",
		"password": "secret123",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	var session struct {
		User market.User `json:"user"`
	}
	decodeBody(t, resp, &session)
	if session.User.ID != user.ID {
		t.Fatalf("login returned wrong user: %+v", session.User)
	}

	resp = c.get("/v1/users/"+itoa(user.ID), nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get user status: %d", resp.StatusCode)
	}
	var got market.User
	decodeBody(t, resp, &got)
	if got.Email != "jane@example.com" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	c := newTestAPI(t)
	c.register("tenant", "Jane Tenant", "jane@example.com")

	resp := c.post("/v1/users/login", map[string]any{
		"email":    "jane@example.com",
		"password": "wrong-password",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "INVALID_CREDENTIALS" {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestDuplicateEmailConflicts(t *testing.T) {
	c := newTestAPI(t)
	c.register("tenant", "Jane Tenant", "jane@example.com")

	resp := c.post("/v1/users/register", map[string]any{
		"role":     "owner",
		"name":     "Impostor",
		"email":    "JANE@example.com",
		"password": "secret123",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "EMAIL_EXISTS" {
		t.Fatalf("unexpected code: %s", code)
	}
}

func TestAuthRequiredWhenSecretSet(t *testing.T) {
	t.Setenv("RENTCHAIN_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	sim := anchor.NewSimulated()
	svc := market.NewService(market.NewMemStore(), sim, sim)
	api := New(ReadyProbe{}, "test", svc, stream.New()).Tune(1000, 1000, 0, "", 0)
	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	c := &apiClient{baseURL: srv.URL, client: srv.Client(), t: t}

	// register stays public and hands back a token
	resp := c.post("/v1/users/register", map[string]any{
		"role":     "owner",
		"name":     "John Owner",
		"email":    "john@example.com",
		"password": "secret123",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status: %d", resp.StatusCode)
	}
	var session struct {
		User  market.User `json:"user"`
		Token string      `json:"token"`
	}
	decodeBody(t, resp, &session)
	if session.Token == "" {
		t.Fatal("expected a token when auth is enabled")
	}

	// a mutation without the token is rejected
	resp = c.post("/v1/properties", map[string]any{
		"ownerId":     session.User.ID,
		"title":       "Loft",
		"description": "Open-plan loft",
		"images":      []string{"loft.jpg"},
		"price":       1800,
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// with the token it goes through
	resp = c.post("/v1/properties", map[string]any{
		"ownerId":     session.User.ID,
		"title":       "Loft",
		"description": "Open-plan loft",
		"images":      []string{"loft.jpg"},
		"price":       1800,
	}, map[string]string{"Authorization": "Bearer " + session.Token})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 with token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// browsing listings stays public
	resp = c.get("/v1/properties", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected public browse, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
