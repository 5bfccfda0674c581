package tenantauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if s := m.Snapshot(); len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("disabled snapshot should be empty: %+v", s)
	}
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Enabled() || m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics must stay inert")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricWalletLoginSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricWalletLoginSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLogout)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	m.Observe(MetricValidateLatency, 40*time.Millisecond)
	m.Observe(MetricValidateLatency, 2*time.Second)
	m.Observe(MetricLogout, time.Millisecond)

	s := m.Snapshot()
	if s.Counters[MetricLogout] != 1 {
		t.Fatalf("logout counter = %d", s.Counters[MetricLogout])
	}
	if _, ok := s.Counters[MetricValidateLatency]; ok {
		t.Fatal("latency histogram must not appear as a counter")
	}
	h := s.Histograms[MetricValidateLatency]
	if len(h) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(h))
	}
	if h[0] != 1 || h[3] != 1 || h[7] != 1 {
		t.Fatalf("unexpected buckets %v", h)
	}
}

func TestMetricsHistogramsOffWithoutFlag(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricValidateLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricValidateLatency]; ok {
		t.Fatal("histograms must be off unless enabled")
	}
}

func TestBucketIndex(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{100 * time.Millisecond, 4},
		{250 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{time.Second, 7},
	}
	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.want {
			t.Fatalf("bucketIndex(%s) = %d, want %d", tc.d, got, tc.want)
		}
	}
}
