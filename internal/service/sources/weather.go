package sources

import (
	"context"
	"time"

	"MandiPulse/internal/domain/models"
	domsvc "MandiPulse/internal/domain/service"
	"MandiPulse/internal/service/ratelimit"
	"MandiPulse/pkg/util"
)

// WeatherAdapter pulls daily weather observations for the configured
// mandi locations.
type WeatherAdapter struct {
	c         *client
	locations []string
	now       func() time.Time
}

func NewWeatherAdapter(baseURL, apiKey string, locations []string, timeout time.Duration, limiter *ratelimit.Limiter, ratePerSec float64) *WeatherAdapter {
	return &WeatherAdapter{
		c:         newClient("weather", baseURL, apiKey, timeout, limiter, ratePerSec),
		locations: locations,
		now:       time.Now,
	}
}

func (a *WeatherAdapter) Name() string { return a.c.name }

type wireWeatherRecord struct {
	Date       string  `json:"date"`
	TempC      float64 `json:"temp_c"`
	RainfallMM float64 `json:"rainfall_mm"`
	Condition  string  `json:"condition"`
}

type wireWeatherResponse struct {
	Records []wireWeatherRecord `json:"records"`
	Missing []wireRange         `json:"missing,omitempty"`
}

func (a *WeatherAdapter) FetchLatest(ctx context.Context) (domsvc.FetchBatch, error) {
	today := models.Day(a.now())
	return a.FetchHistorical(ctx, models.DateRange{From: today.AddDate(0, 0, -1), To: today})
}

// FetchHistorical pulls every configured location. One failing location
// is recorded as a missing range and the rest of the batch survives; the
// fetch errors only when no location answered.
func (a *WeatherAdapter) FetchHistorical(ctx context.Context, rng models.DateRange) (domsvc.FetchBatch, error) {
	fetchedAt := a.now()
	var batch domsvc.FetchBatch
	answered := 0
	for _, loc := range a.locations {
		var resp wireWeatherResponse
		err := a.c.getJSON(ctx, "/v1/observations/"+loc, map[string][]string{
			"from": {util.DayKey(rng.From)},
			"to":   {util.DayKey(rng.To)},
		}, &resp)
		if err != nil {
			batch.Missing = append(batch.Missing, models.MissingRange{From: rng.From, To: rng.To})
			continue
		}
		answered++
		batch.Missing = append(batch.Missing, parseMissing(resp.Missing)...)
		for _, r := range resp.Records {
			date, ok := parseDay(r.Date)
			if !ok {
				continue
			}
			batch.Weather = append(batch.Weather, models.RawWeatherRecord{
				SourceID:   a.c.name,
				FetchedAt:  fetchedAt,
				LocationID: loc,
				Date:       date,
				TempC:      r.TempC,
				Condition:  r.Condition,
				RainfallMM: r.RainfallMM,
			})
		}
	}
	if answered == 0 && len(a.locations) > 0 {
		return domsvc.FetchBatch{}, models.ErrSourceUnavailable
	}
	return batch, nil
}

var _ domsvc.SourceAdapter = (*WeatherAdapter)(nil)
