package internaldefs

import (
	"strings"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
)

func TestEveryMetricIsExportedOnce(t *testing.T) {
	seen := make(map[goIdentity.MetricID]string)
	names := make(map[string]bool)
	for _, d := range CounterDefs {
		if goIdentity.IsLatencyMetric(d.ID) {
			t.Fatalf("%s is a histogram but listed as a counter", d.Name)
		}
		seen[d.ID] = d.Name
		names[d.Name] = true
	}
	for _, d := range HistogramDefs {
		if !goIdentity.IsLatencyMetric(d.ID) {
			t.Fatalf("%s is a counter but listed as a histogram", d.Name)
		}
		seen[d.ID] = d.Name
		names[d.Name] = true
	}
	if len(seen) != goIdentity.MetricCount || len(names) != goIdentity.MetricCount {
		t.Fatalf("expected %d unique metrics, got %d ids / %d names", goIdentity.MetricCount, len(seen), len(names))
	}
	for name := range names {
		if !strings.HasPrefix(name, "goidentity_") {
			t.Fatalf("unprefixed metric %q", name)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 0, 3}))
	want := [8]uint64{1, 3, 3, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(HistogramUpperBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("bounds and suffixes disagree")
	}
}
