package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewRegistryRegistersAllCollectorsWithoutPanicking(t *testing.T) {
	assert.NotPanics(t, func() { NewRegistry() })
}

func TestObserveRecognitionIncrementsCounterAndHistogram(t *testing.T) {
	before := testutil.ToFloat64(RecognitionTasksTotal.WithLabelValues("rule", "ok"))
	ObserveRecognition("rule", "ok", 0.05)
	after := testutil.ToFloat64(RecognitionTasksTotal.WithLabelValues("rule", "ok"))
	assert.Equal(t, before+1, after)
}

func TestRecordTransitionIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(RecorderStateTransitionsTotal.WithLabelValues("stopped", "recording"))
	RecordTransition("stopped", "recording")
	after := testutil.ToFloat64(RecorderStateTransitionsTotal.WithLabelValues("stopped", "recording"))
	assert.Equal(t, before+1, after)
}

func TestRecordSavedIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(RecordingsTotal.WithLabelValues("battle", "WIN"))
	RecordSaved("battle", "WIN")
	after := testutil.ToFloat64(RecordingsTotal.WithLabelValues("battle", "WIN"))
	assert.Equal(t, before+1, after)
}
