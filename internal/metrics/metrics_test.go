package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsRepeatable(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))
}

func TestObserveInvestigationNormalisesOutcome(t *testing.T) {
	before := testutil.ToFloat64(investigationsTotal.WithLabelValues(OutcomeError))
	ObserveInvestigation(-time.Second, "exploded")
	assert.Equal(t, before+1, testutil.ToFloat64(investigationsTotal.WithLabelValues(OutcomeError)))
}

func TestObserveStageCountsFailures(t *testing.T) {
	before := testutil.ToFloat64(stageFailuresTotal.WithLabelValues("diagnosis"))
	ObserveStage("diagnosis", time.Millisecond, true)
	ObserveStage("diagnosis", time.Millisecond, false)
	assert.Equal(t, before+1, testutil.ToFloat64(stageFailuresTotal.WithLabelValues("diagnosis")))
}

func TestObserveRepair(t *testing.T) {
	before := testutil.ToFloat64(parseRepairsTotal.WithLabelValues("recovered"))
	ObserveRepair(true)
	assert.Equal(t, before+1, testutil.ToFloat64(parseRepairsTotal.WithLabelValues("recovered")))
}
