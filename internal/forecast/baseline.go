package forecast

import (
	"MandiPulse/internal/domain/models"
)

// Holt smoothing constants. Fixed so the baseline is deterministic for
// identical input series.
const (
	holtAlpha = 0.5
	holtBeta  = 0.3
)

// baselineFit is the fitted state of the trend model on one series.
type baselineFit struct {
	level    float64
	slope    float64
	minRatio float64
	maxRatio float64
}

// fitBaseline runs double exponential smoothing (Holt linear trend) over
// the average series. Min and max are carried as mean ratios to the
// average so the projected band keeps its historical shape.
func fitBaseline(points []models.PricePoint) baselineFit {
	level := points[0].Average
	slope := 0.0
	if len(points) > 1 {
		slope = points[1].Average - points[0].Average
	}
	var minSum, maxSum float64
	for i, p := range points {
		if i > 0 {
			prevLevel := level
			level = holtAlpha*p.Average + (1-holtAlpha)*(level+slope)
			slope = holtBeta*(level-prevLevel) + (1-holtBeta)*slope
		}
		minSum += p.Min / p.Average
		maxSum += p.Max / p.Average
	}
	n := float64(len(points))
	return baselineFit{
		level:    level,
		slope:    slope,
		minRatio: minSum / n,
		maxRatio: maxSum / n,
	}
}

// project extrapolates the fit h days ahead. The band never inverts:
// min and max are clamped around the projected average.
func (f baselineFit) project(h int) (avg, min, max float64) {
	avg = f.level + float64(h)*f.slope
	if avg <= 0 {
		avg = f.level
	}
	min = avg * f.minRatio
	max = avg * f.maxRatio
	if min > avg {
		min = avg
	}
	if max < avg {
		max = avg
	}
	return avg, min, max
}
