// Package metrics summarizes the timing of matched pairs.
package metrics

import (
	"math"

	"github.com/himanishpuri/HammerCheck/pkg/models"
)

// Delay holds statistics over the signed key-on offsets (replay - record) of
// matched pairs. All values are in the track time unit except CV, which is a
// percentage.
type Delay struct {
	Count    int
	Mean     float64 // ME, signed; positive means replay lags
	MAE      float64
	StdDev   float64 // population
	Variance float64 // population
	RMSE     float64
	CV       float64 // StdDev / |Mean| * 100
	Max      int64
	Min      int64
}

// cvEpsilon is the |Mean| below which the coefficient of variation is
// reported as 0.
const cvEpsilon = 1e-6

// KeyOnOffsets returns replay.KeyOn - record.KeyOn for every pair, in pair
// order.
func KeyOnOffsets(pairs []models.MatchedPair) []int64 {
	out := make([]int64, len(pairs))
	for i, p := range pairs {
		out[i] = p.Replay.KeyOn() - p.Record.KeyOn()
	}
	return out
}

// ComputeDelay derives the delay statistics for pairs. An empty input yields
// the zero value. Spread statistics need at least two pairs.
func ComputeDelay(pairs []models.MatchedPair) Delay {
	offsets := KeyOnOffsets(pairs)
	d := Delay{Count: len(offsets)}
	if d.Count == 0 {
		return d
	}

	var sum, absSum, sqSum float64
	d.Max, d.Min = offsets[0], offsets[0]
	for _, o := range offsets {
		f := float64(o)
		sum += f
		absSum += math.Abs(f)
		sqSum += f * f
		d.Max = max(d.Max, o)
		d.Min = min(d.Min, o)
	}
	n := float64(d.Count)
	d.Mean = sum / n
	d.MAE = absSum / n
	d.RMSE = math.Sqrt(sqSum / n)

	if d.Count < 2 {
		return d
	}
	var dev float64
	for _, o := range offsets {
		diff := float64(o) - d.Mean
		dev += diff * diff
	}
	d.Variance = dev / n
	d.StdDev = math.Sqrt(d.Variance)
	if math.Abs(d.Mean) >= cvEpsilon && d.StdDev > 0 {
		d.CV = d.StdDev / math.Abs(d.Mean) * 100
	}
	return d
}
