package forecast

import (
	"context"
	"fmt"
	"time"

	"MandiPulse/internal/domain/models"
	domsvc "MandiPulse/internal/domain/service"
	xhttp "MandiPulse/pkg/http"
	"MandiPulse/pkg/util"
)

// HTTPAdjustment calls the externally hosted adjustment model. The
// service is a black box: the pipeline only guarantees that nothing
// dated after the as-of cutoff appears in the request.
type HTTPAdjustment struct {
	baseURL string
	client  *xhttp.Client
}

func NewHTTPAdjustment(baseURL string, timeout time.Duration) *HTTPAdjustment {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPAdjustment{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type adjustSentiment struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

type adjustWeather struct {
	Date       string  `json:"date"`
	TempC      float64 `json:"temp_c"`
	RainfallMM float64 `json:"rainfall_mm"`
}

type adjustReq struct {
	Commodity   string            `json:"commodity"`
	Market      string            `json:"market"`
	AsOf        string            `json:"as_of"`
	HorizonDays int               `json:"horizon_days"`
	Baseline    float64           `json:"baseline"`
	BaselineMin float64           `json:"baseline_min"`
	BaselineMax float64           `json:"baseline_max"`
	TrendSlope  float64           `json:"trend_slope"`
	Sentiments  []adjustSentiment `json:"sentiments"`
	Weather     []adjustWeather   `json:"weather"`
}

type adjustDriver struct {
	Name   string  `json:"name"`
	Impact string  `json:"impact"`
	Weight float64 `json:"weight"`
}

type adjustResp struct {
	Average float64        `json:"average"`
	Min     float64        `json:"min"`
	Max     float64        `json:"max"`
	Drivers []adjustDriver `json:"drivers"`
}

func (m *HTTPAdjustment) Adjust(ctx context.Context, in domsvc.AdjustmentInput) (domsvc.AdjustmentResult, error) {
	req := adjustReq{
		Commodity:   in.Key.Commodity,
		Market:      in.Key.Market,
		AsOf:        util.DayKey(in.AsOf),
		HorizonDays: in.HorizonDays,
		Baseline:    in.Baseline,
		BaselineMin: in.BaselineMin,
		BaselineMax: in.BaselineMax,
		TrendSlope:  in.TrendSlope,
		Sentiments:  make([]adjustSentiment, 0, len(in.Sentiments)),
		Weather:     make([]adjustWeather, 0, len(in.Weather)),
	}
	for _, s := range in.Sentiments {
		req.Sentiments = append(req.Sentiments, adjustSentiment{Date: util.DayKey(s.Date), Score: s.Score})
	}
	for _, w := range in.Weather {
		req.Weather = append(req.Weather, adjustWeather{Date: util.DayKey(w.Date), TempC: w.TempC, RainfallMM: w.RainfallMM})
	}

	var resp adjustResp
	err := m.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     m.baseURL + "/v1/adjust",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    req,
	}, &resp)
	if err != nil {
		return domsvc.AdjustmentResult{}, fmt.Errorf("post adjustment: %w", err)
	}

	drivers := make([]models.ConfidenceDriver, 0, len(resp.Drivers))
	for _, d := range resp.Drivers {
		drivers = append(drivers, models.ConfidenceDriver{Name: d.Name, Impact: d.Impact, Weight: d.Weight})
	}
	return domsvc.AdjustmentResult{
		Average: resp.Average,
		Min:     resp.Min,
		Max:     resp.Max,
		Drivers: rankDrivers(drivers),
	}, nil
}

var _ domsvc.AdjustmentModel = (*HTTPAdjustment)(nil)
