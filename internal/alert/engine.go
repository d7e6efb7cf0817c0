package alert

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"MandiPulse/internal/domain/models"
	domrepo "MandiPulse/internal/domain/repository"
	applogger "MandiPulse/pkg/logger"
	"MandiPulse/pkg/util"
)

// Engine owns the alert state machine. Each alert fires at most once:
// active -> triggered on the first satisfying value, and only explicit
// user action moves it back to active.
type Engine struct {
	alerts  domrepo.AlertStore
	pub     domrepo.Publisher
	metrics domrepo.Metrics
	log     *applogger.Logger
	locks   *util.KeyedMutex
	now     func() time.Time
}

type Option func(*Engine)

func WithPublisher(pub domrepo.Publisher) Option {
	return func(e *Engine) { e.pub = pub }
}

func WithLogger(l *applogger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(alerts domrepo.AlertStore, metrics domrepo.Metrics, opts ...Option) *Engine {
	e := &Engine{
		alerts:  alerts,
		metrics: metrics,
		locks:   util.NewKeyedMutex(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Set creates a new active alert for the user.
func (e *Engine) Set(ctx context.Context, userID string, key models.SeriesKey, target float64, direction models.AlertDirection) (*models.PriceAlert, error) {
	if target <= 0 {
		return nil, fmt.Errorf("non-positive target price %v", target)
	}
	if direction != models.AlertAbove && direction != models.AlertBelow {
		return nil, fmt.Errorf("unknown direction %q", direction)
	}
	a := &models.PriceAlert{
		ID:          uuid.NewString(),
		UserID:      userID,
		Key:         key,
		TargetPrice: target,
		Direction:   direction,
		Status:      models.AlertActive,
		CreatedAt:   e.now(),
	}
	if err := e.alerts.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save alert: %w", err)
	}
	return a, nil
}

// Cancel moves an alert to cancelled. Cancelling a triggered or already
// cancelled alert is a no-op.
func (e *Engine) Cancel(ctx context.Context, id string) error {
	l := e.locks.Lock(id)
	defer l.Unlock()

	a, err := e.alerts.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != models.AlertActive {
		return nil
	}
	a.Status = models.AlertCancelled
	return e.alerts.Update(ctx, a)
}

// Reactivate moves a triggered or cancelled alert back to active. This
// is the only path out of triggered.
func (e *Engine) Reactivate(ctx context.Context, id string) error {
	l := e.locks.Lock(id)
	defer l.Unlock()

	a, err := e.alerts.Get(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == models.AlertActive {
		return nil
	}
	a.Status = models.AlertActive
	a.TriggeredAt = nil
	return e.alerts.Update(ctx, a)
}

// ListByUser returns all of a user's alerts.
func (e *Engine) ListByUser(ctx context.Context, userID string) ([]*models.PriceAlert, error) {
	return e.alerts.ListByUser(ctx, userID)
}

// ListTriggered returns the user's alerts that have fired and not been
// reactivated.
func (e *Engine) ListTriggered(ctx context.Context, userID string) ([]*models.PriceAlert, error) {
	all, err := e.alerts.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.PriceAlert, 0, len(all))
	for _, a := range all {
		if a.Status == models.AlertTriggered {
			out = append(out, a)
		}
	}
	return out, nil
}

// Evaluate checks every active alert on key against value and fires the
// satisfied ones. Concurrent evaluations of the same alert are
// serialized so it still fires exactly once. Returns the fired alerts.
func (e *Engine) Evaluate(ctx context.Context, key models.SeriesKey, value float64, at time.Time) ([]*models.PriceAlert, error) {
	active, err := e.alerts.ListActiveForKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list alerts %s: %w", key, err)
	}

	var fired []*models.PriceAlert
	var errs []string
	for _, a := range active {
		if !a.Satisfied(value) {
			continue
		}
		ok, err := e.fire(ctx, a.ID, value, at)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		if ok {
			fired = append(fired, a)
		}
	}
	if len(errs) > 0 {
		return fired, fmt.Errorf("evaluate %s: %s", key, strings.Join(errs, "; "))
	}
	return fired, nil
}

// fire transitions one alert to triggered under its lock. Returns false
// when another evaluation got there first.
func (e *Engine) fire(ctx context.Context, id string, value float64, at time.Time) (bool, error) {
	l := e.locks.Lock(id)
	defer l.Unlock()

	a, err := e.alerts.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if a.Status != models.AlertActive {
		return false, nil
	}

	if at.IsZero() {
		at = e.now()
	}
	a.Status = models.AlertTriggered
	a.TriggeredAt = &at
	if err := e.alerts.Update(ctx, a); err != nil {
		return false, fmt.Errorf("update alert %s: %w", id, err)
	}

	e.metrics.RecordAlertFired(a.Key.String())
	if e.log != nil {
		e.log.Info("alert triggered",
			applogger.String("alert_id", a.ID),
			applogger.String("series", a.Key.String()),
			applogger.Float64("target", a.TargetPrice),
			applogger.Float64("value", value),
		)
	}
	if e.pub != nil {
		ev := models.AlertEvent{
			AlertID:     a.ID,
			UserID:      a.UserID,
			Key:         a.Key,
			Direction:   a.Direction,
			TargetPrice: a.TargetPrice,
			Value:       value,
			At:          at,
		}
		if err := e.pub.PublishAlertEvent(ctx, ev); err != nil {
			// The transition already committed; delivery failure must not
			// re-arm the alert.
			e.metrics.RecordError("publish_alert")
			if e.log != nil {
				e.log.Warn("publish alert event failed", applogger.String("alert_id", a.ID), applogger.Error(err))
			}
		}
	}
	return true, nil
}
