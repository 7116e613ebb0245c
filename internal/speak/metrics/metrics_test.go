package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Transcript(OutcomeMatched)
	m.Transcript(OutcomeMatched)
	m.Transcript(OutcomeRetry)
	m.ScenarioCompleted("morning-greetings")
	m.TutorRequest(TutorOK, 300*time.Millisecond)
	m.TutorRequest(TutorError, 2*time.Second)
	m.AdvisoryShown()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transcripts.WithLabelValues(OutcomeMatched)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transcripts.WithLabelValues(OutcomeRetry)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completions.WithLabelValues("morning-greetings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tutorRequests.WithLabelValues(TutorError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.advisories))
	assert.Equal(t, 1, testutil.CollectAndCount(m.tutorDuration))
}

func TestSessionsGauge(t *testing.T) {
	m := New()

	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Transcript(OutcomeMatched)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `speakgenie_transcripts_total{outcome="matched"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
