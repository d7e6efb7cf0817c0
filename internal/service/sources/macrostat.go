package sources

import (
	"context"
	"time"

	"MandiPulse/internal/domain/models"
	domsvc "MandiPulse/internal/domain/service"
	"MandiPulse/internal/service/ratelimit"
	"MandiPulse/pkg/util"
)

// MacroStatAdapter pulls commodity-level national statistics. Its
// records carry no market; the Reconciler folds them into every market
// series of the commodity at reduced weight.
type MacroStatAdapter struct {
	c   *client
	now func() time.Time
}

func NewMacroStatAdapter(baseURL, apiKey string, timeout time.Duration, limiter *ratelimit.Limiter, ratePerSec float64) *MacroStatAdapter {
	return &MacroStatAdapter{
		c:   newClient("macro-stat", baseURL, apiKey, timeout, limiter, ratePerSec),
		now: time.Now,
	}
}

func (a *MacroStatAdapter) Name() string { return a.c.name }

type wireMacroRecord struct {
	Commodity string  `json:"commodity"`
	Date      string  `json:"date"`
	Unit      string  `json:"unit"`
	Min       float64 `json:"min_price"`
	Max       float64 `json:"max_price"`
	Average   float64 `json:"avg_price"`
}

type wireMacroResponse struct {
	Records []wireMacroRecord `json:"records"`
	Missing []wireRange       `json:"missing,omitempty"`
}

func (a *MacroStatAdapter) FetchLatest(ctx context.Context) (domsvc.FetchBatch, error) {
	today := models.Day(a.now())
	return a.FetchHistorical(ctx, models.DateRange{From: today.AddDate(0, 0, -1), To: today})
}

func (a *MacroStatAdapter) FetchHistorical(ctx context.Context, rng models.DateRange) (domsvc.FetchBatch, error) {
	var resp wireMacroResponse
	err := a.c.getJSON(ctx, "/v1/stats", map[string][]string{
		"from": {util.DayKey(rng.From)},
		"to":   {util.DayKey(rng.To)},
	}, &resp)
	if err != nil {
		return domsvc.FetchBatch{}, err
	}

	fetchedAt := a.now()
	batch := domsvc.FetchBatch{Missing: parseMissing(resp.Missing)}
	for _, r := range resp.Records {
		date, ok := parseDay(r.Date)
		if !ok {
			continue
		}
		unit := models.Unit(r.Unit)
		if r.Unit == "" {
			unit = models.UnitQuintal
		}
		batch.Prices = append(batch.Prices, models.RawPriceRecord{
			SourceID:  a.c.name,
			FetchedAt: fetchedAt,
			Key:       models.SeriesKey{Commodity: r.Commodity},
			Date:      date,
			Unit:      unit,
			Min:       r.Min,
			Max:       r.Max,
			Average:   r.Average,
		})
	}
	return batch, nil
}

var _ domsvc.SourceAdapter = (*MacroStatAdapter)(nil)
