package models

import "time"

// ModelKind distinguishes the two forecast models.
type ModelKind string

const (
	ModelBaseline          ModelKind = "baseline"
	ModelSentimentAdjusted ModelKind = "sentiment_adjusted"
)

// DisplayName returns the human-facing model name.
func (m ModelKind) DisplayName() string {
	switch m {
	case ModelBaseline:
		return "ARIMA (baseline)"
	case ModelSentimentAdjusted:
		return "Sentiment Adjusted"
	default:
		return string(m)
	}
}

// ConfidenceDriver is one named factor behind an adjusted forecast,
// with its relative weight. Drivers are reported ranked by weight.
type ConfidenceDriver struct {
	Name   string
	Impact string // "positive" | "negative"
	Weight float64
}

// Forecast is one immutable prediction. A new prediction request always
// creates a new Forecast, never mutates one.
type Forecast struct {
	Key              SeriesKey
	Model            ModelKind
	IssuedAt         time.Time
	AsOf             time.Time
	HorizonDays      int
	TargetDate       time.Time
	PredictedAverage float64
	PredictedMin     float64
	PredictedMax     float64
	Drivers          []ConfidenceDriver
	StaleInput       bool // canonical series had no update within the freshness window
}

// ForecastPair groups the two forecasts of one request. Both share the
// same IssuedAt and AsOf so later comparison is apples-to-apples.
type ForecastPair struct {
	Baseline *Forecast
	Adjusted *Forecast
}

// Horizon bounds for a prediction request.
const (
	MinHorizonDays = 7
	MaxHorizonDays = 365
)

// MinViableHistory is the default minimum number of canonical points
// required before a forecast is attempted.
const MinViableHistory = 30
