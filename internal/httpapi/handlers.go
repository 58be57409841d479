package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentchain.org/internal/audit"
	"rentchain.org/internal/cache"
	"rentchain.org/internal/market"
	"rentchain.org/internal/obs"
	"rentchain.org/internal/stream"
)

// ReadyProbe — простая проверка готовности (например, ping БД).
type ReadyProbe struct {
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping == nil {
		return nil
	}
	return rp.Ping(ctx)
}

// API — HTTP слой поверх доменного сервиса.
type API struct {
	mux        *http.ServeMux
	svc        *market.Service
	listings   *cache.Listings
	events     *stream.Stream
	readyProbe ReadyProbe
	version    string

	ratePerSec int
	rateBurst  int
	maxBody    int64
	corsOrigin string
	tokenTTL   time.Duration
}

func New(rp ReadyProbe, version string, svc *market.Service, events *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		listings:   cache.NewListings(),
		events:     events,
		readyProbe: rp,
		version:    version,
		ratePerSec: 50,
		rateBurst:  100,
		maxBody:    1 << 20,
		corsOrigin: "*",
		tokenTTL:   24 * time.Hour,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// users
	a.mux.HandleFunc("/v1/users/register", a.handleRegister)
	a.mux.HandleFunc("/v1/users/login", a.handleLogin)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	// properties
	a.mux.HandleFunc("/v1/properties", a.handlePropertiesCollection)
	a.mux.HandleFunc("/v1/properties/", a.handlePropertyResource)

	// offers
	a.mux.HandleFunc("/v1/offers", a.handleOffersCollection)
	a.mux.HandleFunc("/v1/offers/", a.handleOfferResource)

	// agreements
	a.mux.HandleFunc("/v1/agreements/", a.handleAgreementResource)

	// live event stream (SSE)
	a.mux.HandleFunc("/v1/events", a.StreamEvents)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Tune overrides the middleware knobs. Zero values keep the defaults.
func (a *API) Tune(ratePerSec, rateBurst int, maxBody int64, corsOrigin string, tokenTTL time.Duration) *API {
	if ratePerSec > 0 {
		a.ratePerSec = ratePerSec
	}
	if rateBurst > 0 {
		a.rateBurst = rateBurst
	}
	if maxBody > 0 {
		a.maxBody = maxBody
	}
	if corsOrigin != "" {
		a.corsOrigin = corsOrigin
	}
	if tokenTTL > 0 {
		a.tokenTTL = tokenTTL
	}
	return a
}

// Handler возвращает http.Handler с полной цепочкой middleware.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.corsOrigin)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "rentchain-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "rentchain-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Error("audit log failed", map[string]any{"event": event, "error": err.Error()})
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the wire shape every failure uses.
type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
	RequestID  string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := market.Code(err)
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
		obs.Error("request failed", map[string]any{
			"path":  r.URL.Path,
			"error": err.Error(),
		})
	}
	writeJSON(w, status, map[string]any{"error": errorBody{
		Code:       code,
		Message:    msg,
		StatusCode: status,
		RequestID:  RequestIDFromContext(r.Context()),
	}})
}

// badRequest reports a transport-level validation failure.
func badRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": errorBody{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		StatusCode: http.StatusBadRequest,
		RequestID:  RequestIDFromContext(r.Context()),
	}})
}

func statusFor(err error) int {
	switch {
	case market.NotFound(err):
		return http.StatusNotFound
	case market.Conflict(err):
		return http.StatusConflict
	case errors.Is(err, market.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, market.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrInvalidWallet),
		errors.Is(err, market.ErrInvalidInput),
		errors.Is(err, market.ErrInvalidTenant),
		errors.Is(err, market.ErrInvalidOwner):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": errorBody{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "method not allowed",
		StatusCode: http.StatusMethodNotAllowed,
	}})
}

func notFoundRoute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": errorBody{
		Code:       "NOT_FOUND",
		Message:    "resource not found",
		StatusCode: http.StatusNotFound,
	}})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// parseID parses one positive int64 path segment.
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
