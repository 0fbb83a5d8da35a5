// Package kernel implements the pure, deterministic feature-computation
// routines shared by every schema extractor: a per-channel time-series
// kernel, a per-channel endpoint kernel, and a global cross-channel
// kernel. None of these functions perform I/O, hold state across calls,
// or use randomness - determinism across re-runs is the point.
package kernel

import (
	"math"
	"sort"

	"github.com/biomarker-io/worker/internal/domain"
)

const (
	baselineFraction   = 0.1
	earlySlopeFloor    = 2
	earlySlopeFraction = 0.2
	snrFloor           = 1e-9
)

// TimeseriesFeatures computes the per-channel time-series feature map for
// channel from paired time/signal vectors t and y. t and y must be the
// same length. An empty channel yields every feature as null.
//
// Tie-breaks (argmax, half-max crossing) always resolve to the first
// occurrence in sorted order, and baseline_std uses the population
// divisor n, so repeated extraction of the same payload is bit-identical.
func TimeseriesFeatures(channel string, t, y []float64) domain.FeatureMap {
	prefix := "channel." + channel + "."

	if len(y) == 0 {
		return emptyChannelFeatures(prefix)
	}

	n := len(y)
	order := stableSortOrder(t)

	st := make([]float64, n)
	sy := make([]float64, n)

	for i, idx := range order {
		st[i] = t[idx]
		sy[i] = y[idx]
	}

	baselineN := maxInt(1, int(float64(n)*baselineFraction))
	baseline := sy[:baselineN]

	baselineMean := mean(baseline)
	baselineStd := populationStddev(baseline, baselineMean)

	yMax, yMin := sy[0], sy[0]
	maxIdx := 0

	for i, v := range sy {
		if v > yMax {
			yMax = v
			maxIdx = i
		}

		if v < yMin {
			yMin = v
		}
	}

	tAtMax := st[maxIdx]
	auc := trapezoidal(st, sy)
	slopeEarly := earlySlope(st, sy)
	tHalfmax, hasHalfmax := halfmaxCrossing(st, sy, baselineMean, yMax)
	snr := (yMax - baselineMean) / math.Max(baselineStd, snrFloor)

	out := domain.FeatureMap{
		prefix + "baseline_mean": domain.Number(baselineMean),
		prefix + "baseline_std":  domain.Number(baselineStd),
		prefix + "y_max":         domain.Number(yMax),
		prefix + "y_min":         domain.Number(yMin),
		prefix + "t_at_max":      domain.Number(tAtMax),
		prefix + "auc":           domain.Number(auc),
		prefix + "slope_early":   domain.Number(slopeEarly),
		prefix + "snr":           domain.Number(snr),
	}

	if hasHalfmax {
		out[prefix+"t_halfmax"] = domain.Number(tHalfmax)
	} else {
		out[prefix+"t_halfmax"] = domain.Null()
	}

	return out
}

func emptyChannelFeatures(prefix string) domain.FeatureMap {
	keys := []string{
		"baseline_mean", "baseline_std", "y_max", "y_min",
		"t_at_max", "auc", "slope_early", "t_halfmax", "snr",
	}

	out := make(domain.FeatureMap, len(keys))
	for _, k := range keys {
		out[prefix+k] = domain.Null()
	}

	return out
}

// stableSortOrder returns the permutation of indices [0, len(t)) sorted by
// t ascending, with ties broken by original position (stable sort).
func stableSortOrder(t []float64) []int {
	order := make([]int, len(t))
	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(i, j int) bool {
		return t[order[i]] < t[order[j]]
	})

	return order
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	var sum float64
	for _, x := range xs {
		sum += x
	}

	return sum / float64(len(xs))
}

// populationStddev uses divisor n (not n-1), so the result does not depend
// on a library's choice of sample vs population variance.
func populationStddev(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(xs)))
}

// trapezoidal computes the trapezoidal-rule integral of y over t, assuming
// both are already sorted ascending by t.
func trapezoidal(t, y []float64) float64 {
	var area float64
	for i := 1; i < len(t); i++ {
		area += (t[i] - t[i-1]) * (y[i] + y[i-1]) / 2
	}

	return area
}

// earlySlope fits an ordinary-least-squares line to the first e points
// (e = max(2, floor(0.2*n))) and returns its slope, or 0.0 if fewer than
// two points are available for the fit.
func earlySlope(t, y []float64) float64 {
	n := len(t)
	e := maxInt(earlySlopeFloor, int(float64(n)*earlySlopeFraction))

	if e > n {
		e = n
	}

	if e < earlySlopeFloor {
		return 0.0
	}

	tEarly := t[:e]
	yEarly := y[:e]

	meanT := mean(tEarly)
	meanY := mean(yEarly)

	var num, den float64

	for i := range tEarly {
		dt := tEarly[i] - meanT
		num += dt * (yEarly[i] - meanY)
		den += dt * dt
	}

	if den == 0 {
		return 0.0
	}

	return num / den
}

// halfmaxCrossing scans the sorted series for the first t[i] with
// y[i] >= baselineMean + 0.5*(yMax-baselineMean).
func halfmaxCrossing(t, y []float64, baselineMean, yMax float64) (float64, bool) {
	h := baselineMean + 0.5*(yMax-baselineMean)

	for i := range y {
		if y[i] >= h {
			return t[i], true
		}
	}

	return 0, false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}
