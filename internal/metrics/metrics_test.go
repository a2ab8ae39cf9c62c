package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/HammerCheck/pkg/models"
)

func pair(on, off, replayOn, replayOff int64) models.MatchedPair {
	rec := models.NewEvent(60, 0, nil, []models.PressureSample{{Time: on, Value: 1}, {Time: off, Value: 1}})
	rep := models.NewEvent(60, 0, nil, []models.PressureSample{{Time: replayOn, Value: 1}, {Time: replayOff, Value: 1}})
	return models.NewMatchedPair(0, 0, rec, rep)
}

func TestComputeDelayEmpty(t *testing.T) {
	assert.Equal(t, Delay{}, ComputeDelay(nil))
}

func TestComputeDelaySinglePair(t *testing.T) {
	d := ComputeDelay([]models.MatchedPair{pair(100, 400, 90, 400)})

	assert.Equal(t, 1, d.Count)
	assert.InDelta(t, -10, d.Mean, 1e-9)
	assert.InDelta(t, 10, d.MAE, 1e-9)
	assert.InDelta(t, 10, d.RMSE, 1e-9)
	assert.Zero(t, d.StdDev)
	assert.Zero(t, d.Variance)
	assert.Zero(t, d.CV)
	assert.Equal(t, int64(-10), d.Max)
	assert.Equal(t, int64(-10), d.Min)
}

func TestComputeDelay(t *testing.T) {
	// offsets: +10, -10, +30
	pairs := []models.MatchedPair{
		pair(0, 400, 10, 400),
		pair(1000, 1400, 990, 1400),
		pair(2000, 2400, 2030, 2400),
	}
	d := ComputeDelay(pairs)

	require.Equal(t, 3, d.Count)
	assert.InDelta(t, 10, d.Mean, 1e-9)
	assert.InDelta(t, 50.0/3, d.MAE, 1e-9)
	// deviations 0, -20, 20 -> variance 800/3
	assert.InDelta(t, 800.0/3, d.Variance, 1e-9)
	assert.InDelta(t, 16.3299316, d.StdDev, 1e-6)
	assert.InDelta(t, 163.299316, d.CV, 1e-5)
	// squares 100, 100, 900 -> mean 1100/3
	assert.InDelta(t, 19.1485422, d.RMSE, 1e-6)
	assert.Equal(t, int64(30), d.Max)
	assert.Equal(t, int64(-10), d.Min)
}

func TestComputeDelayZeroMeanHasNoCV(t *testing.T) {
	d := ComputeDelay([]models.MatchedPair{pair(0, 400, 20, 400), pair(0, 400, -20, 400)})
	assert.Zero(t, d.Mean)
	assert.InDelta(t, 20, d.StdDev, 1e-9)
	assert.Zero(t, d.CV)
}

func TestOffsets(t *testing.T) {
	rows := Offsets([]models.MatchedPair{pair(100, 500, 120, 560)})
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, int64(20), r.KeyOnOffset)
	assert.Equal(t, int64(60), r.KeyOffOffset)
	assert.InDelta(t, 40, r.AverageOffset, 1e-9)
	assert.Equal(t, int64(400), r.RecordDuration)
	assert.Equal(t, int64(440), r.ReplayDuration)
	assert.Equal(t, int64(40), r.DurationDiff)
	assert.Equal(t, 60, r.KeyID)
}

func TestSummarize(t *testing.T) {
	s := Summarize(4, 5, 3, 1, 2, 0)
	assert.InDelta(t, 0.75, s.SuccessRate, 1e-9)
	assert.Equal(t, 3, s.AnomalyCount())

	assert.Zero(t, Summarize(0, 3, 0, 0, 3, 0).SuccessRate)
}
