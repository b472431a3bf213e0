package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/pokemon/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.CollectAndCount(HTTPLatencySeconds)

	for _, name := range []string{"pikachu", "bulbasaur"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pokemon/"+name, nil))
		if rr.Code != http.StatusTeapot {
			t.Fatalf("unexpected status %d", rr.Code)
		}
	}

	after := testutil.CollectAndCount(HTTPLatencySeconds)
	if after-before != 1 {
		t.Fatalf("expected one new series for the route pattern, got %d", after-before)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}
