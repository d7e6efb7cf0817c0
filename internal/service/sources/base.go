package sources

import (
	"context"
	"fmt"
	"time"

	"MandiPulse/internal/domain/models"
	"MandiPulse/internal/service/ratelimit"
	xhttp "MandiPulse/pkg/http"
)

// client wraps the shared HTTP plumbing of every source adapter: one
// rate-limited JSON GET with timeouts surfaced as SourceUnavailable.
type client struct {
	name    string
	baseURL string
	apiKey  string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	rate    float64
}

func newClient(name, baseURL, apiKey string, timeout time.Duration, limiter *ratelimit.Limiter, ratePerSec float64) *client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &client{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter: limiter,
		rate:    ratePerSec,
	}
}

// getJSON performs one rate-limited GET and decodes into dest. Any
// transport or decode failure is reported as SourceUnavailable: the
// pipeline proceeds with partial data either way.
func (c *client) getJSON(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if err := c.waitToken(ctx); err != nil {
		return err
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["Authorization"] = "Bearer " + c.apiKey
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
		Headers:     headers,
	}, dest)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", c.name, path, err, models.ErrSourceUnavailable)
	}
	return nil
}

func (c *client) waitToken(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx, c.name, c.rate, c.rate); err != nil {
		return fmt.Errorf("%s rate wait: %v: %w", c.name, err, models.ErrSourceUnavailable)
	}
	return nil
}

// parseMissing maps upstream gap reports onto MissingRange.
type wireRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func parseMissing(ranges []wireRange) []models.MissingRange {
	out := make([]models.MissingRange, 0, len(ranges))
	for _, r := range ranges {
		from, okF := parseDay(r.From)
		to, okT := parseDay(r.To)
		if !okF || !okT {
			continue
		}
		out = append(out, models.MissingRange{From: from, To: to})
	}
	return out
}

func parseDay(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
