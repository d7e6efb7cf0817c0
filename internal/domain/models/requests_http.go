package models

// Requests for the pipeline HTTP endpoints. Defined in domain for
// consistency and reuse.

type PredictRequest struct {
	Commodity   string `query:"commodity" json:"commodity" validate:"required"`
	Market      string `query:"market" json:"market" validate:"required"`
	HorizonDays int    `query:"horizon_days" json:"horizon_days" default:"7" validate:"gte=1,lte=1000"`
	AsOf        string `query:"as_of" json:"as_of"`
}

type SeriesRequest struct {
	Commodity string `query:"commodity" json:"commodity" validate:"required"`
	Market    string `query:"market" json:"market" validate:"required"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
	Unit      string `query:"unit" json:"unit" default:"quintal" validate:"oneof=quintal kg"`
}

type WeatherRequest struct {
	Location string `query:"location" json:"location" validate:"required"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
}

type IngestSentimentRequest struct {
	Commodity  string   `json:"commodity" validate:"required"`
	Date       string   `json:"date" validate:"required"`
	Score      float64  `json:"score" validate:"gte=-1,lte=1"`
	Label      string   `json:"label" validate:"omitempty,oneof=positive negative neutral"`
	ArticleIDs []string `json:"article_ids"`
}

type PerformanceRequest struct {
	Commodity  string `query:"commodity" json:"commodity" validate:"required"`
	Market     string `query:"market" json:"market" validate:"required"`
	WindowDays int    `query:"window_days" json:"window_days" default:"30" validate:"gte=1,lte=365"`
}

type SetAlertRequest struct {
	UserID      string  `json:"user_id" validate:"required"`
	Commodity   string  `json:"commodity" validate:"required"`
	Market      string  `json:"market" validate:"required"`
	TargetPrice float64 `json:"target_price" validate:"gt=0"`
	Direction   string  `json:"direction" validate:"required,oneof=above below"`
}

type TriggeredAlertsRequest struct {
	UserID string `query:"user_id" json:"user_id" validate:"required"`
	Status string `query:"status" json:"status" default:"triggered" validate:"oneof=triggered all"`
}

type HeatmapRequest struct {
	Commodity string `query:"commodity" json:"commodity" validate:"required"`
	AsOf      string `query:"as_of" json:"as_of"`
}

type CompareRequest struct {
	Commodities string `query:"commodities" json:"commodities" validate:"required"` // comma-separated
	Market      string `query:"market" json:"market" validate:"required"`
	From        string `query:"from" json:"from"`
	To          string `query:"to" json:"to"`
}

type CompareMarketsRequest struct {
	Commodity string `query:"commodity" json:"commodity" validate:"required"`
	Markets   string `query:"markets" json:"markets"` // comma-separated, defaults to configured set
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
}

type SyncRequest struct {
	From string `query:"from" json:"from"`
	To   string `query:"to" json:"to"`
}

type RecordObservationRequest struct {
	Commodity string  `json:"commodity" validate:"required"`
	Market    string  `json:"market" validate:"required"`
	Date      string  `json:"date" validate:"required"`
	Actual    float64 `json:"actual_average" validate:"gt=0"`
}

type SentimentDistributionRequest struct {
	Commodity  string `query:"commodity" json:"commodity" validate:"required"`
	WindowDays int    `query:"window_days" json:"window_days" default:"30" validate:"gte=1,lte=365"`
}
