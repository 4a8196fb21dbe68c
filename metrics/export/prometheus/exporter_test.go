package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type fakeSource struct {
	snapshot goIdentity.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goIdentity.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                         { return f.dropped }

func scrape(t *testing.T, c prometheus.Collector) string {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestCollectorExportsCountersAndHistograms(t *testing.T) {
	out := scrape(t, NewCollectorFromSource(fakeSource{
		snapshot: goIdentity.MetricsSnapshot{
			Counters: map[goIdentity.MetricID]uint64{
				goIdentity.MetricLoginSuccess:         7,
				goIdentity.MetricRefreshTheftDetected: 2,
			},
			Histograms: map[goIdentity.MetricID][]uint64{
				goIdentity.MetricRefreshLatency: {1, 2, 0, 0, 0, 0, 0, 3},
			},
		},
		dropped: 4,
	}))

	for _, want := range []string{
		"goidentity_login_success_total 7",
		"goidentity_refresh_theft_detected_total 2",
		"goidentity_logout_total 0",
		`goidentity_refresh_latency_seconds_bucket{le="0.01"} 3`,
		`goidentity_refresh_latency_seconds_bucket{le="+Inf"} 6`,
		"goidentity_refresh_latency_seconds_count 6",
		"goidentity_validate_latency_seconds_count 0",
		"goidentity_audit_dropped_total 4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestCollectorWithNilSource(t *testing.T) {
	out := scrape(t, NewCollectorFromSource(nil))
	if strings.Contains(out, "goidentity_") {
		t.Fatalf("expected no series without a source, got:\n%s", out)
	}
}
