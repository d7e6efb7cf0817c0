package forecast

import (
	"context"
	"math"
	"sort"

	"MandiPulse/internal/domain/models"
	domsvc "MandiPulse/internal/domain/service"
)

// Driver factor names shown in the explainability breakdown.
const (
	driverSentiment = "news sentiment"
	driverRainfall  = "recent rainfall"
	driverTrend     = "global market trends"
)

// referenceRainfallMM is the daily rainfall around which the anomaly is
// measured.
const referenceRainfallMM = 10.0

// BuiltinAdjustment is the default adjustment function used when no
// external model service is configured. Deterministic pure function of
// its input: sentiment shifts the band up to 5%, rainfall anomaly up to
// 3%, and the fitted trend contributes a driver without further shift.
type BuiltinAdjustment struct{}

func NewBuiltinAdjustment() *BuiltinAdjustment { return &BuiltinAdjustment{} }

func (m *BuiltinAdjustment) Adjust(_ context.Context, in domsvc.AdjustmentInput) (domsvc.AdjustmentResult, error) {
	sentiment := meanSentiment(in.Sentiments)
	rainAnomaly := rainfallAnomaly(in.Weather)

	shift := 0.05*sentiment + 0.03*rainAnomaly
	factor := 1 + shift

	trendMag := 0.0
	if in.Baseline > 0 {
		trendMag = math.Abs(in.TrendSlope) * float64(in.HorizonDays) / in.Baseline
		if trendMag > 1 {
			trendMag = 1
		}
	}

	drivers := rankDrivers([]models.ConfidenceDriver{
		{Name: driverSentiment, Impact: impactOf(sentiment), Weight: math.Abs(sentiment)},
		{Name: driverRainfall, Impact: impactOf(rainAnomaly), Weight: math.Abs(rainAnomaly)},
		{Name: driverTrend, Impact: impactOf(in.TrendSlope), Weight: trendMag},
	})

	return domsvc.AdjustmentResult{
		Average: in.Baseline * factor,
		Min:     in.BaselineMin * factor,
		Max:     in.BaselineMax * factor,
		Drivers: drivers,
	}, nil
}

func meanSentiment(scores []models.SentimentScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s.Score
	}
	return clamp(sum/float64(len(scores)), -1, 1)
}

// rainfallAnomaly is the window's mean daily rainfall relative to the
// reference, clamped to [-1, 1]. Heavy rain pressures supply upward.
func rainfallAnomaly(weather []models.WeatherPoint) float64 {
	if len(weather) == 0 {
		return 0
	}
	var sum float64
	for _, w := range weather {
		sum += w.RainfallMM
	}
	mean := sum / float64(len(weather))
	return clamp((mean-referenceRainfallMM)/referenceRainfallMM, -1, 1)
}

// rankDrivers normalizes weights to sum to one and sorts descending, so
// the breakdown always reads strongest factor first.
func rankDrivers(drivers []models.ConfidenceDriver) []models.ConfidenceDriver {
	var total float64
	for _, d := range drivers {
		total += d.Weight
	}
	if total > 0 {
		for i := range drivers {
			drivers[i].Weight /= total
		}
	}
	sort.SliceStable(drivers, func(i, j int) bool {
		return drivers[i].Weight > drivers[j].Weight
	})
	return drivers
}

func impactOf(v float64) string {
	if v < 0 {
		return "negative"
	}
	return "positive"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ domsvc.AdjustmentModel = (*BuiltinAdjustment)(nil)
