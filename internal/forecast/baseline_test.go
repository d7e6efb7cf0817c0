package forecast

import (
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
)

func linearSeries(n int, start, step float64) []models.PricePoint {
	base := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.PricePoint, 0, n)
	for i := 0; i < n; i++ {
		v := start + float64(i)*step
		out = append(out, models.PricePoint{
			Date: base.AddDate(0, 0, i), Unit: models.UnitQuintal,
			Min: v * 0.9, Max: v * 1.1, Average: v,
		})
	}
	return out
}

func TestFitBaselineTrend(t *testing.T) {
	fit := fitBaseline(linearSeries(60, 1000, 5))
	if fit.slope <= 0 {
		t.Fatalf("rising series must fit a positive slope, got %v", fit.slope)
	}
	avg, min, max := fit.project(30)
	if avg <= fit.level {
		t.Fatalf("projection should extend the trend: %v <= %v", avg, fit.level)
	}
	if min > avg || avg > max {
		t.Fatalf("band inverted: %v %v %v", min, avg, max)
	}
}

func TestFitBaselineFlat(t *testing.T) {
	fit := fitBaseline(linearSeries(40, 1500, 0))
	avg, _, _ := fit.project(14)
	if diff := avg - 1500; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("flat series should project flat, got %v", avg)
	}
}
