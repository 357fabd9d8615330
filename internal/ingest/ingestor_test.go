package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/persistence"
	"github.com/quantfund/portrun/internal/persistence/sqldb"
)

func newIngestStore(t *testing.T) persistence.Repository {
	t.Helper()
	db, err := sqldb.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqldb.Migrate(context.Background(), db))
	return sqldb.NewRepository(db, sqldb.DefaultTimeout)
}

func TestIngestorLoadsCleanedReturnsAndSkipsFailingTickers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("s") != "AAA" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n"+
			"2023-01-02,100,101,99,100,1000\n"+
			"2023-01-03,100,103,100,102,1000\n"+
			"2023-01-04,102,105,102,104.04,1000\n")
	}))
	defer srv.Close()

	repo := newIngestStore(t)
	ctx := context.Background()
	require.NoError(t, repo.Instruments.InsertBatch(ctx, []domain.Instrument{
		{Ticker: "AAA", RiskProfile: domain.LowRisk, Name: "Alpha"},
		{Ticker: "BAD", RiskProfile: domain.LowRisk, Name: "Broken"},
	}))

	client := NewClient(ClientConfig{
		BaseURL: srv.URL,
		RPS:     100,
		Burst:   10,
		Timeout: 5 * time.Second,
	}, zerolog.Nop())
	ing := NewIngestor(client, repo, zerolog.Nop())

	dr := persistence.DateRange{
		From: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	stats, err := ing.Run(ctx, dr)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Instruments)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Rows)

	series, err := repo.Returns.SeriesByTicker(ctx, "AAA", dr)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.InDelta(t, 0.02, series[0].Value, 1e-12)
	assert.InDelta(t, 0.02, series[1].Value, 1e-12)
	assert.Equal(t, time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), series[0].Date.UTC())
}

func TestIngestorCancelledContext(t *testing.T) {
	repo := newIngestStore(t)
	require.NoError(t, repo.Instruments.InsertBatch(context.Background(), []domain.Instrument{
		{Ticker: "AAA", RiskProfile: domain.LowRisk, Name: "Alpha"},
	}))

	client := NewClient(DefaultClientConfig(), zerolog.Nop())
	ing := NewIngestor(client, repo, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ing.Run(ctx, persistence.DateRange{})
	assert.ErrorIs(t, err, context.Canceled)
}
