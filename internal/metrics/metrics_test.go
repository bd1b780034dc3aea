package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveJobOutcomes(t *testing.T) {
	m := New()

	m.ObserveJob("daily-scores", time.Now(), 10, 0, nil)
	m.ObserveJob("daily-scores", time.Now(), 10, 2, errors.New("two failed"))
	m.ObserveJob("daily-scores", time.Now(), 0, 0, errors.New("no ruleset"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("daily-scores", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("daily-scores", "partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobRuns.WithLabelValues("daily-scores", "aborted")))
	assert.Equal(t, 18.0, testutil.ToFloat64(m.Entities.WithLabelValues("daily-scores", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Entities.WithLabelValues("daily-scores", "failed")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.TokensIssued.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "clubleague_tokens_issued_total 1")
}
