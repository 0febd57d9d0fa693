package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Run("nil is a no-op", func(t *testing.T) {
		var m *Metrics
		require.NotPanics(t, func() {
			m.Request("GET", 200, time.Millisecond)
			m.Hit(FileCache)
			m.Miss(FileCache)
			m.Evicted(ObjectStore, 3)
			m.Size(ObjectStore, 10)
		})
	})

	t.Run("counters", func(t *testing.T) {
		m := New()
		m.Hit(FileCache)
		m.Hit(FileCache)
		m.Miss(ObjectStore)
		m.Request("GET", 404, time.Millisecond)

		require.Equal(t, float64(2), testutil.ToFloat64(m.cacheHits.WithLabelValues(FileCache)))
		require.Equal(t, float64(1), testutil.ToFloat64(m.cacheMisses.WithLabelValues(ObjectStore)))
		require.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "404")))
	})

	t.Run("text exposition", func(t *testing.T) {
		m := New()
		m.Size(FileCache, 1024)

		var buff bytes.Buffer
		require.NoError(t, m.WriteText(&buff))
		require.Contains(t, buff.String(), `lingdar_cache_size_bytes{cache="file"} 1024`)
	})
}
