package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ddrc/internal/platform/metrics"
	"ddrc/internal/platform/middleware"
	"ddrc/pkg/requestcontext"
	"ddrc/pkg/testutil"
)

type stubHandler struct{}

func (stubHandler) Register(r chi.Router) {
	r.Get("/stub/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(requestcontext.ClientIP(r.Context())))
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newRouter(t *testing.T) (*chi.Mux, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Config{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	}, stubHandler{}), reg
}

func TestHomeRedirectsToVitalRecords(t *testing.T) {
	router, _ := newRouter(t)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/"))
	testutil.AssertRedirect(t, rr, "/vital-records")
}

func TestHealthcheck(t *testing.T) {
	router, _ := newRouter(t)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthcheck"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Healthy", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestMountedHandlersSeeClientMetadata(t *testing.T) {
	router, _ := newRouter(t)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/stub/123"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "192.0.2.1", rr.Body.String())
}

func TestPanicsBecomeServerErrors(t *testing.T) {
	router, _ := newRouter(t)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/boom"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newRouter(t)
	testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/stub/123"))

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `route="/stub/{id}"`)
}
