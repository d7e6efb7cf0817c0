package models

import "time"

// Observation is a ground-truth average price once it becomes available.
type Observation struct {
	Key           SeriesKey
	Date          time.Time
	ActualAverage float64
}

// PerformanceRecord holds rolling accuracy for one model on one series.
// Recomputed, not appended-forever; superseded records are retired on
// each recompute cycle.
type PerformanceRecord struct {
	Key         SeriesKey
	Model       ModelKind
	WindowDays  int
	RMSE        float64
	SampleCount int
	ComputedAt  time.Time
}

// ModelPerformance pairs both models' records with the derived
// improvement = (rmse_baseline - rmse_adjusted) / rmse_baseline.
type ModelPerformance struct {
	Key         SeriesKey
	Baseline    *PerformanceRecord
	Adjusted    *PerformanceRecord
	Improvement float64
	KeyDrivers  []ConfidenceDriver
}
