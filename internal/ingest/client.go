// Package ingest is the market-data collaborator: it pulls daily close
// prices over HTTP, turns them into cleaned daily fractional returns, and
// loads them into the store. The core engine never calls this package; it
// only consumes the validated series it produces.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/quantfund/portrun/internal/persistence"
)

// Close is one daily closing price.
type Close struct {
	Date  time.Time
	Price float64
}

// ClientConfig holds the price source settings.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"` // CSV endpoint, stooq-style daily download
	RPS     float64       `yaml:"rps"`      // request budget toward the source
	Burst   int           `yaml:"burst"`
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultClientConfig returns conservative source settings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: "https://stooq.com/q/d/l/",
		RPS:     2,
		Burst:   1,
		Timeout: 15 * time.Second,
	}
}

// Client fetches daily price history, rate limited and circuit broken so a
// degraded source slows the loader down instead of hammering it.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cfg     ClientConfig
	log     zerolog.Logger
}

// NewClient creates a price source client.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "price-source",
		Interval: time.Minute,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Price source circuit state changed")
		},
	})

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		breaker: breaker,
		cfg:     cfg,
		log:     log,
	}
}

// DailyCloses fetches one ticker's daily close series over the range,
// ascending by date.
func (c *Client) DailyCloses(ctx context.Context, ticker string, dr persistence.DateRange) ([]Close, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, ticker, dr)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}
	return result.([]Close), nil
}

func (c *Client) fetch(ctx context.Context, ticker string, dr persistence.DateRange) ([]Close, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	q := u.Query()
	q.Set("s", ticker)
	q.Set("i", "d")
	q.Set("d1", dr.From.Format("20060102"))
	q.Set("d2", dr.To.Format("20060102"))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price source returned status %d", resp.StatusCode)
	}
	return parseDailyCSV(resp.Body)
}

// parseDailyCSV reads a Date,Open,High,Low,Close[,Volume] daily download.
// Rows with unparseable dates or prices are dropped; gap handling happens
// in the cleaning stage.
func parseDailyCSV(r io.Reader) ([]Close, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	closeIdx := -1
	for i, col := range records[0] {
		if col == "Close" {
			closeIdx = i
		}
	}
	if closeIdx < 0 {
		return nil, fmt.Errorf("no Close column in price download")
	}

	var closes []Close
	for _, rec := range records[1:] {
		if len(rec) <= closeIdx {
			continue
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(rec[closeIdx], 64)
		if err != nil {
			continue
		}
		closes = append(closes, Close{Date: date, Price: price})
	}
	return closes, nil
}
