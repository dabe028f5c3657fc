package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/five82/wcpms/internal/config"
	"github.com/five82/wcpms/internal/wcpms"
)

func TestServeMetrics(t *testing.T) {
	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"coverages": ["S2-16D-2"]}`)
	}))
	t.Cleanup(service.Close)

	reg := prometheus.NewRegistry()
	metrics, err := wcpms.NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	cfg := config.Default()
	cfg.URL = service.URL
	client, err := newClient(cfg, slog.New(slog.DiscardHandler), metrics)
	if err != nil {
		t.Fatalf("newClient: %v", err)
	}
	if _, err := client.ListCollections(context.Background()); err != nil {
		t.Fatalf("ListCollections: %v", err)
	}

	addr, stop, err := serveMetrics("127.0.0.1:0", reg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("serveMetrics: %v", err)
	}
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := string(body)
	if !strings.Contains(out, "wcpms_client_requests_total") || !strings.Contains(out, `outcome="ok"`) {
		t.Fatalf("metrics output missing request counter:\n%s", out)
	}
}
