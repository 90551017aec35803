package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.JobStarted(true)
	m.JobSettled("finished")
	m.SetRunningJobs(3)
	m.EntryTranslated("api::article.article", "batch")
	m.ObserveProviderCall("deepl", "batch", 10, time.Second, nil)
	assert.Nil(t, m.Registry())
}

func TestCountersAndHandler(t *testing.T) {
	t.Parallel()

	m := New()
	m.JobStarted(false)
	m.JobStarted(true)
	m.JobSettled("paused")
	m.SetRunningJobs(2)
	m.EntryTranslated("api::article.article", "batch")
	m.ObserveProviderCall("deepl", "batch", 42, 200*time.Millisecond, nil)
	m.ObserveProviderCall("deepl", "direct", 10, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsStarted.WithLabelValues("resume")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunningJobs))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.ProviderCharacters.WithLabelValues("deepl")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCalls.WithLabelValues("deepl", "direct", "error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "translator_batch_jobs_settled_total"))
}

func TestInstancesDoNotCollide(t *testing.T) {
	t.Parallel()

	first, second := New(), New()
	first.JobSettled("finished")
	assert.Equal(t, 0.0, testutil.ToFloat64(second.JobsSettled.WithLabelValues("finished")))
}
