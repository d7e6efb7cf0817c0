package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"MandiPulse/internal/domain/models"
)

type stubAlerts struct {
	mu sync.Mutex
	m  map[string]*models.PriceAlert
}

func newStubAlerts() *stubAlerts {
	return &stubAlerts{m: make(map[string]*models.PriceAlert)}
}

func (s *stubAlerts) Save(_ context.Context, a *models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.m[a.ID] = &cp
	return nil
}

func (s *stubAlerts) Get(_ context.Context, id string) (*models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.m[id]
	if !ok {
		return nil, models.ErrAlertNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *stubAlerts) Update(_ context.Context, a *models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[a.ID]; !ok {
		return models.ErrAlertNotFound
	}
	cp := *a
	s.m[a.ID] = &cp
	return nil
}

func (s *stubAlerts) ListByUser(_ context.Context, userID string) ([]*models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PriceAlert
	for _, a := range s.m {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubAlerts) ListActiveForKey(_ context.Context, key models.SeriesKey) ([]*models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PriceAlert
	for _, a := range s.m {
		if a.Key == key && a.Status == models.AlertActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type stubPublisher struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (p *stubPublisher) PublishPricePoints(context.Context, []models.PricePoint) error {
	return nil
}
func (p *stubPublisher) PublishAlertEvent(_ context.Context, ev models.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}
func (p *stubPublisher) Close() error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordFetched(string, int)       {}
func (noopMetrics) RecordRejected(string, int)      {}
func (noopMetrics) RecordMerged(string, int)        {}
func (noopMetrics) RecordAlertFired(string)         {}
func (noopMetrics) RecordError(string)              {}
func (noopMetrics) RecordLastPrice(string, float64) {}
func (noopMetrics) RecordLatency(string, float64)   {}

var testKey = models.SeriesKey{Commodity: "wheat", Market: "indore"}

func TestAlertFiresOnce(t *testing.T) {
	store := newStubAlerts()
	pub := &stubPublisher{}
	e := New(store, noopMetrics{}, WithPublisher(pub))

	a, err := e.Set(context.Background(), "u1", testKey, 100, models.AlertAbove)
	if err != nil {
		t.Fatalf("set: %v", err)
	}

	// Successive prices cross the threshold once at 105; the later 110
	// must not re-fire.
	for _, v := range []float64{90, 95, 105, 110} {
		if _, err := e.Evaluate(context.Background(), testKey, v, time.Time{}); err != nil {
			t.Fatalf("evaluate %v: %v", v, err)
		}
	}

	got, err := store.Get(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.AlertTriggered {
		t.Fatalf("expected triggered, got %s", got.Status)
	}
	if got.TriggeredAt == nil {
		t.Fatalf("expected TriggeredAt set")
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected exactly 1 event, got %d", len(pub.events))
	}
	if pub.events[0].Value != 105 {
		t.Fatalf("expected trigger at 105, got %v", pub.events[0].Value)
	}
}

func TestAlertBelowDirection(t *testing.T) {
	store := newStubAlerts()
	pub := &stubPublisher{}
	e := New(store, noopMetrics{}, WithPublisher(pub))

	if _, err := e.Set(context.Background(), "u1", testKey, 100, models.AlertBelow); err != nil {
		t.Fatalf("set: %v", err)
	}
	fired, err := e.Evaluate(context.Background(), testKey, 100, time.Time{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("exact threshold must satisfy, fired %d", len(fired))
	}
}

func TestAlertReactivate(t *testing.T) {
	store := newStubAlerts()
	e := New(store, noopMetrics{})

	a, err := e.Set(context.Background(), "u1", testKey, 100, models.AlertAbove)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := e.Evaluate(context.Background(), testKey, 120, time.Time{}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if err := e.Reactivate(context.Background(), a.ID); err != nil {
		t.Fatalf("reactivate: %v", err)
	}

	fired, err := e.Evaluate(context.Background(), testKey, 120, time.Time{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(fired) != 1 {
		t.Fatalf("reactivated alert must be able to fire again")
	}
}

func TestAlertCancelledNeverFires(t *testing.T) {
	store := newStubAlerts()
	e := New(store, noopMetrics{})

	a, err := e.Set(context.Background(), "u1", testKey, 100, models.AlertAbove)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := e.Cancel(context.Background(), a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	fired, err := e.Evaluate(context.Background(), testKey, 120, time.Time{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(fired) != 0 {
		t.Fatalf("cancelled alert must not fire")
	}
}

func TestAlertConcurrentEvaluateFiresOnce(t *testing.T) {
	store := newStubAlerts()
	pub := &stubPublisher{}
	e := New(store, noopMetrics{}, WithPublisher(pub))

	if _, err := e.Set(context.Background(), "u1", testKey, 100, models.AlertAbove); err != nil {
		t.Fatalf("set: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Evaluate(context.Background(), testKey, 120, time.Time{})
		}()
	}
	wg.Wait()

	if len(pub.events) != 1 {
		t.Fatalf("concurrent evaluation must fire exactly once, got %d events", len(pub.events))
	}
}

func TestListTriggeredFiltersStatus(t *testing.T) {
	store := newStubAlerts()
	e := New(store, noopMetrics{})

	fired, err := e.Set(context.Background(), "u1", testKey, 100, models.AlertAbove)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := e.Set(context.Background(), "u1", testKey, 500, models.AlertAbove); err != nil {
		t.Fatalf("set: %v", err)
	}

	if _, err := e.Evaluate(context.Background(), testKey, 120, time.Time{}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	got, err := e.ListTriggered(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list triggered: %v", err)
	}
	if len(got) != 1 || got[0].ID != fired.ID {
		t.Fatalf("triggered = %v, want only %s", got, fired.ID)
	}

	all, err := e.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all alerts = %d, want 2", len(all))
	}
}
