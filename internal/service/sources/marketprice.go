package sources

import (
	"context"
	"time"

	"MandiPulse/internal/domain/models"
	domsvc "MandiPulse/internal/domain/service"
	"MandiPulse/internal/service/ratelimit"
	"MandiPulse/pkg/util"
)

// MarketPriceAdapter pulls daily mandi price records from the market
// price API. Records arrive keyed by (commodity, market) in quintal or
// kg; normalization to the common schema happens here, at the boundary.
type MarketPriceAdapter struct {
	c   *client
	now func() time.Time
}

func NewMarketPriceAdapter(baseURL, apiKey string, timeout time.Duration, limiter *ratelimit.Limiter, ratePerSec float64) *MarketPriceAdapter {
	return &MarketPriceAdapter{
		c:   newClient("market-price", baseURL, apiKey, timeout, limiter, ratePerSec),
		now: time.Now,
	}
}

func (a *MarketPriceAdapter) Name() string { return a.c.name }

type wirePriceRecord struct {
	Commodity string  `json:"commodity"`
	Market    string  `json:"market"`
	Date      string  `json:"date"`
	Unit      string  `json:"unit"`
	Min       float64 `json:"min_price"`
	Max       float64 `json:"max_price"`
	Average   float64 `json:"modal_price"`
}

type wirePriceResponse struct {
	Records []wirePriceRecord `json:"records"`
	Missing []wireRange       `json:"missing,omitempty"`
}

func (a *MarketPriceAdapter) FetchLatest(ctx context.Context) (domsvc.FetchBatch, error) {
	today := models.Day(a.now())
	return a.FetchHistorical(ctx, models.DateRange{From: today.AddDate(0, 0, -1), To: today})
}

func (a *MarketPriceAdapter) FetchHistorical(ctx context.Context, rng models.DateRange) (domsvc.FetchBatch, error) {
	var resp wirePriceResponse
	err := a.c.getJSON(ctx, "/v1/prices", map[string][]string{
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
			Key:       models.SeriesKey{Commodity: r.Commodity, Market: r.Market},
			Date:      date,
			Unit:      unit,
			Min:       r.Min,
			Max:       r.Max,
			Average:   r.Average,
		})
	}
	return batch, nil
}

var _ domsvc.SourceAdapter = (*MarketPriceAdapter)(nil)
