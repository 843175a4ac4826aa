package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreScopedToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "dashq_test")

	m.IncSnapshot("ok")
	m.IncSnapshot("ok")
	m.IncSnapshot("stale")
	m.IncEvent("your_turn")

	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range metric.GetLabel() {
				key += ":" + lp.GetValue()
			}
			got[key] = metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, 2.0, got["dashq_test_snapshot_fetches_total:ok"])
	assert.Equal(t, 1.0, got["dashq_test_snapshot_fetches_total:stale"])
	assert.Equal(t, 1.0, got["dashq_test_events_published_total:your_turn"])

	// A second set on another registry must not panic on duplicate registration.
	_ = New(prometheus.NewRegistry(), "dashq_test")
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "dashq_test")
	m.FeedEvents.Inc()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dashq_test_feed_events_total 1"))
}
