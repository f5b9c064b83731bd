package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeech_Lifecycle(t *testing.T) {
	m := New()

	m.RecordQueued(2)
	m.RecordStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Speaking))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueueDepth))

	m.RecordEnded(1500 * time.Millisecond)
	m.RecordError("engine")
	m.RecordStall("resubmit")
	m.RecordRejected("muted")
	m.RecordCanceled()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UtterancesTotal.WithLabelValues("queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UtterancesTotal.WithLabelValues("ended")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("engine")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StallsTotal.WithLabelValues("resubmit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal.WithLabelValues("muted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Speaking))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueueDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(m.UtteranceDuration))
}

func TestSpeech_NilIsSafe(t *testing.T) {
	var m *Speech
	assert.NotPanics(t, func() {
		m.RecordQueued(1)
		m.RecordStarted()
		m.RecordEnded(time.Second)
		m.RecordError("engine")
		m.RecordCanceled()
		m.RecordRejected("empty")
		m.RecordStall("resume")
		m.SetQueueDepth(3)
		m.RecordEmotion("happy")
		m.SetClients(1)
	})
	assert.Nil(t, m.Registry())
}

func TestSpeech_Handler(t *testing.T) {
	m := New()
	m.RecordEmotion("happy")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body strings.Builder
	_, err = io.Copy(&body, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), `cortexface_sentiment_emotions_total{emotion="happy"} 1`)
}
