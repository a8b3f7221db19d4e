package internaldefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
)

func TestFamiliesCoverEveryCounterOnce(t *testing.T) {
	snap := goSessionAuth.NewMetrics(goSessionAuth.MetricsConfig{Enabled: true}).Snapshot()

	seen := map[goSessionAuth.MetricID]string{}
	for _, f := range Families {
		if f.Label == "" {
			assert.Len(t, f.Series, 1, f.Name)
		}
		for _, s := range f.Series {
			prev, dup := seen[s.ID]
			require.False(t, dup, "metric %d exported by %s and %s", s.ID, prev, f.Name)
			seen[s.ID] = f.Name
		}
	}

	for id := range snap.Counters {
		if id == goSessionAuth.MetricAuthenticateLatency {
			continue
		}
		assert.Contains(t, seen, id, "metric %d has no family", id)
	}
}

func TestLatencyBucketsAreCumulative(t *testing.T) {
	got := LatencyBuckets([]uint64{2, 1, 0, 0, 0, 0, 0, 3})
	require.Len(t, got, len(goSessionAuth.LatencyBuckets)+1)
	assert.Equal(t, Bucket{Le: "0.005", Count: 2}, got[0])
	assert.Equal(t, Bucket{Le: "0.01", Count: 3}, got[1])
	assert.Equal(t, Bucket{Le: "0.5", Count: 3}, got[6])
	assert.Equal(t, Bucket{Le: "+Inf", Count: 6}, got[7])
}

func TestLatencyBucketsToleratesShortInput(t *testing.T) {
	got := LatencyBuckets(nil)
	require.Len(t, got, len(goSessionAuth.LatencyBuckets)+1)
	for _, b := range got {
		assert.Zero(t, b.Count)
	}
}
