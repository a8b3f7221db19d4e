package goSessionAuth

import (
	"sync/atomic"
	"time"
)

// MetricID names one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that returned tokens.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected credential checks.
	MetricLoginFailure
	// MetricLoginTwoFactorRequired counts logins that stopped at the code step.
	MetricLoginTwoFactorRequired
	MetricLoginRateLimited
	MetricRefreshSuccess
	MetricRefreshInvalidToken
	MetricRefreshSessionNotFound
	MetricRefreshFingerprintMismatch
	MetricRefreshSessionExpired
	// MetricRefreshRecovered counts stale sessions revived through Google.
	MetricRefreshRecovered
	// MetricRefreshReuseDetected counts refresh tokens that lost a rotation race.
	MetricRefreshReuseDetected
	MetricSessionCreated
	MetricSessionReused
	MetricSessionDeleted
	MetricLogout
	MetricLogoutAll
	MetricTwoFactorCodeSent
	MetricTwoFactorCodeVerified
	MetricTwoFactorCodeFailed
	MetricTwoFactorEnabled
	MetricTwoFactorDisabled
	MetricRegistrationSuccess
	MetricRegistrationDuplicate
	MetricEmailVerificationSent
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricPasswordChangeSuccess
	MetricPasswordChangeReuseRejected
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricPasswordResetFailure
	MetricGoogleAuthSuccess
	MetricGoogleAuthFailure
	MetricRateLimitHit
	MetricEmailDeliveryFailure
	// MetricAuthenticateLatency is the only histogram; it times access-token checks.
	MetricAuthenticateLatency
	metricIDCount
)

// LatencyBuckets are the inclusive upper bounds of the authenticate latency
// histogram. Observations above the last bound land in an overflow bucket,
// so snapshots carry len(LatencyBuckets)+1 counts.
var LatencyBuckets = []time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const cacheLineSize = 64

// counter sits alone on its cache line; login and refresh counters are
// bumped from every request goroutine.
type counter struct {
	atomic.Uint64
	_ [cacheLineSize - 8]byte
}

type latencyHistogram struct {
	counts [8]atomic.Uint64
	sumNS  atomic.Int64
}

// Metrics is a fixed set of lock-free counters plus the authenticate latency
// histogram. The zero value and a nil *Metrics both drop every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counter
	latency       latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of the engine metrics. Histogram
// counts are per bucket, not cumulative.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics returns a Metrics honouring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Observe records d in the histogram id. Only MetricAuthenticateLatency is
// a histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricAuthenticateLatency {
		return
	}
	m.latency.counts[latencyBucket(d)].Add(1)
	m.latency.sumNS.Add(int64(d))
}

// Value returns the counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies every counter and, when enabled, the latency histogram.
// A disabled Metrics yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
	if !m.Enabled() {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.counters[id].Load()
	}

	if m.enableLatency {
		counts := make([]uint64, len(m.latency.counts))
		for i := range m.latency.counts {
			counts[i] = m.latency.counts[i].Load()
		}
		s.Histograms[MetricAuthenticateLatency] = counts
		s.HistogramSums[MetricAuthenticateLatency] = time.Duration(m.latency.sumNS.Load())
	}

	return s
}

func latencyBucket(d time.Duration) int {
	for i, bound := range LatencyBuckets {
		if d <= bound {
			return i
		}
	}
	return len(LatencyBuckets)
}
