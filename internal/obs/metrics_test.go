package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/properties":                "/v1/properties",
		"/v1/properties/17":             "/v1/properties/:id",
		"/v1/properties/owner/4":        "/v1/properties/owner/:id",
		"/v1/offers/42/accept":          "/v1/offers/:id/accept",
		"/v1/offers/property/17/chain":  "/v1/offers/property/:id/chain",
		"/v1/agreements/3/sign":         "/v1/agreements/:id/sign",
		"/v1/properties?maxPrice=2000":  "/v1/properties",
		"/v1/agreements/user/5?limit=1": "/v1/agreements/user/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

type flushRecorder struct {
	*httptest.ResponseRecorder
	flushed bool
}

func (f *flushRecorder) Flush() { f.flushed = true }

func TestInstrumentForwardsFlush(t *testing.T) {
	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("instrumented writer is not a Flusher")
		}
		f.Flush()
	}))
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events", nil))
	if !rec.flushed {
		t.Fatal("Flush did not reach the underlying writer")
	}
}
