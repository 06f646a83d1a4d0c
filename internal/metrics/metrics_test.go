package metrics_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ErlanBelekov/magic-auth/internal/health"
	"github.com/ErlanBelekov/magic-auth/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestRegister_AllCollectorsOnFreshRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.Register(reg)

	metrics.RedemptionsTotal.WithLabelValues("success").Inc()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range mfs {
		if mf.GetName() == "auth_magic_link_redemptions_total" {
			found = true
		}
	}
	if !found {
		t.Error("auth_magic_link_redemptions_total not gathered")
	}
}

func TestServer_ReadyzReflectsDependencies(t *testing.T) {
	checker := health.NewChecker(slog.Default(), prometheus.NewRegistry(), map[string]health.Pinger{
		"store": stubPinger{err: errors.New("down")},
	})
	srv := metrics.NewServer(":0", checker)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", w.Code)
	}

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", w.Code)
	}
}
