package api

import (
	"errors"
	"strings"
	"time"

	"MandiPulse/internal/aggregate"
	"MandiPulse/internal/alert"
	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	"MandiPulse/internal/forecast"
	"MandiPulse/internal/perf"
	"MandiPulse/internal/usecase"
	xhttp "MandiPulse/pkg/http"
	xlogger "MandiPulse/pkg/logger"
	"MandiPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// PipelineEchoHandler exposes the price-intelligence pipeline over Echo.
type PipelineEchoHandler struct {
	logger     *xlogger.Logger
	sync       *usecase.SyncUseCase
	series     *usecase.SeriesUseCase
	engine     *forecast.Engine
	tracker    *perf.Tracker
	alerts     *alert.Engine
	aggregates *aggregate.Service
	sentiments domrepo.SentimentStore
	store      domrepo.CanonicalStore
	markets    []string
}

func NewPipelineEchoHandler(
	logger *xlogger.Logger,
	sync *usecase.SyncUseCase,
	series *usecase.SeriesUseCase,
	engine *forecast.Engine,
	tracker *perf.Tracker,
	alerts *alert.Engine,
	aggregates *aggregate.Service,
	sentiments domrepo.SentimentStore,
	store domrepo.CanonicalStore,
	markets []string,
) *PipelineEchoHandler {
	return &PipelineEchoHandler{
		logger:     logger,
		sync:       sync,
		series:     series,
		engine:     engine,
		tracker:    tracker,
		alerts:     alerts,
		aggregates: aggregates,
		sentiments: sentiments,
		store:      store,
		markets:    markets,
	}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/sync", h.Sync)
	g.GET("/predict", h.Predict)
	g.GET("/series", h.Series)
	g.GET("/weather", h.Weather)
	g.POST("/sentiment", h.IngestSentiment)
	g.GET("/sentiment/distribution", h.SentimentDistribution)
	g.GET("/performance", h.Performance)
	g.POST("/performance/recompute", h.Recompute)
	g.POST("/observations", h.RecordObservation)
	g.POST("/alerts", h.SetAlert)
	g.GET("/alerts", h.ListAlerts)
	g.DELETE("/alerts/:id", h.CancelAlert)
	g.POST("/alerts/:id/reactivate", h.ReactivateAlert)
	g.GET("/heatmap", h.Heatmap)
	g.GET("/compare/markets", h.CompareMarkets)
	g.GET("/compare/commodities", h.CompareCommodities)
	g.GET("/health", h.Health)
}

// toAppError maps the pipeline's typed errors onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInvalidHorizon):
		return xhttp.BadRequestError(err.Error())
	case errors.Is(err, models.ErrInsufficientHistory):
		return xhttp.NewAppError("ERR_INSUFFICIENT_HISTORY", "", err.Error(), 422)
	case errors.Is(err, models.ErrNoValidRecords):
		return xhttp.NewAppError("ERR_NO_VALID_RECORDS", "", err.Error(), 422)
	case errors.Is(err, models.ErrSeriesNotFound), errors.Is(err, models.ErrAlertNotFound):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, models.ErrSourceUnavailable):
		return xhttp.NewAppError("ERR_SOURCE_UNAVAILABLE", "", err.Error(), 503)
	default:
		return nil
	}
}

func (h *PipelineEchoHandler) fail(c echo.Context, msg string, err error) error {
	if appErr := toAppError(err); appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	h.logger.Error(msg, xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

func (h *PipelineEchoHandler) Sync(c echo.Context) error {
	req := &models.SyncRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if req.From == "" && req.To == "" {
		report, err := h.sync.SyncLatest(ctx)
		if err != nil && report == nil {
			return h.fail(c, "sync error", err)
		}
		return xhttp.SuccessResponse(c, report)
	}

	rng, appErr := parseRange(req.From, req.To, 1)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	report, err := h.sync.SyncRange(ctx, rng)
	if err != nil && report == nil {
		return h.fail(c, "sync error", err)
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *PipelineEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := models.SeriesKey{Commodity: req.Commodity, Market: req.Market}
	asOf := util.ParseDayDefault(req.AsOf, time.Time{})

	pair, err := h.engine.Predict(c.Request().Context(), key, req.HorizonDays, asOf)
	if err != nil {
		return h.fail(c, "predict error", err)
	}
	resp := map[string]interface{}{
		"baseline":           pair.Baseline,
		"sentiment_adjusted": pair.Adjusted,
	}
	if pair.Baseline.StaleInput {
		resp["warning"] = "canonical series has no update within the freshness window"
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *PipelineEchoHandler) Series(c echo.Context) error {
	req := &models.SeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, appErr := parseRange(req.From, req.To, 30)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	key := models.SeriesKey{Commodity: req.Commodity, Market: req.Market}

	res, err := h.series.GetSeries(c.Request().Context(), key, rng, models.Unit(req.Unit))
	if err != nil {
		return h.fail(c, "series error", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) Weather(c echo.Context) error {
	req := &models.WeatherRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, appErr := parseRange(req.From, req.To, 14)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	res, err := h.series.GetWeather(c.Request().Context(), req.Location, rng)
	if err != nil {
		return h.fail(c, "weather error", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) IngestSentiment(c echo.Context) error {
	req := &models.IngestSentimentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, ok := util.ParseDay(req.Date)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid date"))
	}
	err := h.sentiments.Put(c.Request().Context(), models.SentimentScore{
		Commodity:        req.Commodity,
		Date:             date,
		Score:            req.Score,
		Label:            models.LabelOrDerive(req.Label, req.Score),
		SourceArticleIDs: req.ArticleIDs,
	})
	if err != nil {
		return h.fail(c, "ingest sentiment error", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *PipelineEchoHandler) SentimentDistribution(c echo.Context) error {
	req := &models.SentimentDistributionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	dist, err := h.sentiments.Distribution(c.Request().Context(), req.Commodity, time.Now().UTC(), req.WindowDays)
	if err != nil {
		return h.fail(c, "sentiment distribution error", err)
	}
	return xhttp.SuccessResponse(c, dist)
}

func (h *PipelineEchoHandler) Performance(c echo.Context) error {
	req := &models.PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := models.SeriesKey{Commodity: req.Commodity, Market: req.Market}
	summary, err := h.tracker.Summary(c.Request().Context(), key)
	if err != nil {
		return h.fail(c, "performance error", err)
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *PipelineEchoHandler) Recompute(c echo.Context) error {
	req := &models.PerformanceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := models.SeriesKey{Commodity: req.Commodity, Market: req.Market}
	records, err := h.tracker.Recompute(c.Request().Context(), key, req.WindowDays)
	if err != nil {
		return h.fail(c, "recompute error", err)
	}
	return xhttp.SuccessResponse(c, records)
}

func (h *PipelineEchoHandler) RecordObservation(c echo.Context) error {
	req := &models.RecordObservationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, ok := util.ParseDay(req.Date)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("invalid date"))
	}
	key := models.SeriesKey{Commodity: req.Commodity, Market: req.Market}
	if err := h.tracker.RecordObservation(c.Request().Context(), key, date, req.Actual); err != nil {
		return h.fail(c, "record observation error", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *PipelineEchoHandler) SetAlert(c echo.Context) error {
	req := &models.SetAlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	key := models.SeriesKey{Commodity: req.Commodity, Market: req.Market}
	a, err := h.alerts.Set(c.Request().Context(), req.UserID, key, req.TargetPrice, models.AlertDirection(req.Direction))
	if err != nil {
		return h.fail(c, "set alert error", err)
	}
	return xhttp.CreatedResponse(c, a)
}

func (h *PipelineEchoHandler) ListAlerts(c echo.Context) error {
	req := &models.TriggeredAlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var (
		alerts []*models.PriceAlert
		err    error
	)
	if req.Status == "all" {
		alerts, err = h.alerts.ListByUser(c.Request().Context(), req.UserID)
	} else {
		alerts, err = h.alerts.ListTriggered(c.Request().Context(), req.UserID)
	}
	if err != nil {
		return h.fail(c, "list alerts error", err)
	}
	return xhttp.SuccessResponse(c, alerts)
}

func (h *PipelineEchoHandler) CancelAlert(c echo.Context) error {
	if err := h.alerts.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, "cancel alert error", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *PipelineEchoHandler) ReactivateAlert(c echo.Context) error {
	if err := h.alerts.Reactivate(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, "reactivate alert error", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *PipelineEchoHandler) Heatmap(c echo.Context) error {
	req := &models.HeatmapRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	asOf := util.ParseDayDefault(req.AsOf, time.Time{})
	snaps, err := h.aggregates.Heatmap(c.Request().Context(), req.Commodity, asOf)
	if err != nil {
		return h.fail(c, "heatmap error", err)
	}
	return xhttp.SuccessResponse(c, snaps)
}

func (h *PipelineEchoHandler) CompareMarkets(c echo.Context) error {
	req := &models.CompareMarketsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, appErr := parseRange(req.From, req.To, 30)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	markets := splitCSV(req.Markets)
	if len(markets) == 0 {
		markets = h.markets
	}
	cmp, err := h.aggregates.CompareMarkets(c.Request().Context(), req.Commodity, markets, rng)
	if err != nil {
		return h.fail(c, "compare markets error", err)
	}
	return xhttp.SuccessResponse(c, cmp)
}

func (h *PipelineEchoHandler) CompareCommodities(c echo.Context) error {
	req := &models.CompareRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rng, appErr := parseRange(req.From, req.To, 30)
	if appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	cmp, err := h.aggregates.CompareCommodities(c.Request().Context(), splitCSV(req.Commodities), req.Market, rng)
	if err != nil {
		return h.fail(c, "compare commodities error", err)
	}
	return xhttp.SuccessResponse(c, cmp)
}

func (h *PipelineEchoHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_UNHEALTHY", "", err.Error(), 503))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// parseRange builds an inclusive day range, defaulting to the trailing
// defaultDays ending today.
func parseRange(from, to string, defaultDays int) (models.DateRange, *xhttp.AppError) {
	today := models.Day(time.Now().UTC())
	rng := models.DateRange{
		From: today.AddDate(0, 0, -defaultDays),
		To:   today,
	}
	if to != "" {
		t, ok := util.ParseDay(to)
		if !ok {
			return models.DateRange{}, xhttp.BadRequestError("invalid 'to' date")
		}
		rng.To = t
		rng.From = t.AddDate(0, 0, -defaultDays)
	}
	if from != "" {
		t, ok := util.ParseDay(from)
		if !ok {
			return models.DateRange{}, xhttp.BadRequestError("invalid 'from' date")
		}
		rng.From = t
	}
	if rng.To.Before(rng.From) {
		return models.DateRange{}, xhttp.BadRequestError("'to' before 'from'")
	}
	return rng, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
