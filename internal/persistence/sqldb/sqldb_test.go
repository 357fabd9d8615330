package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfund/portrun/internal/domain"
	"github.com/quantfund/portrun/internal/persistence"
)

func newTestRepo(t *testing.T) persistence.Repository {
	t.Helper()
	db, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return NewRepository(db, DefaultTimeout)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestInstrumentsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.Instruments.InsertBatch(ctx, []domain.Instrument{
		{Ticker: "GOLD.PA", RiskProfile: domain.LowRisk, Name: "ETF Amundi Physical Gold"},
		{Ticker: "AAPL", RiskProfile: domain.HighYieldEquityOnly, Name: "Apple"},
	})
	require.NoError(t, err)

	got, err := repo.Instruments.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "GOLD.PA", got[0].Ticker)
	assert.Equal(t, domain.LowRisk, got[0].RiskProfile)
	assert.NotZero(t, got[0].ID)
}

func TestInstrumentsRejectInvalidProfile(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Instruments.InsertBatch(context.Background(), []domain.Instrument{
		{Ticker: "XXX", RiskProfile: "reckless", Name: "Nope"},
	})
	require.Error(t, err)

	// the bad batch must not be partially visible
	got, err := repo.Instruments.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPortfolioInstrumentOrderSurvivesRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := domain.Portfolio{
		Name:          "Portfolio_low_risk",
		RiskProfile:   domain.LowRisk,
		InstrumentIDs: []int64{3, 1, 2},
	}
	require.NoError(t, repo.Portfolios.Insert(ctx, &p))
	assert.NotZero(t, p.ID)

	got, err := repo.Portfolios.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []int64{3, 1, 2}, got[0].InstrumentIDs)
	assert.Equal(t, domain.LowRisk, got[0].RiskProfile)
}

func TestManagerForPortfolio(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	p := domain.Portfolio{Name: "P", RiskProfile: domain.LowRisk}
	require.NoError(t, repo.Portfolios.Insert(ctx, &p))

	m := domain.Manager{Name: "Alice Moreau", Email: "alice@portrun.example", PortfolioID: p.ID}
	require.NoError(t, repo.Managers.Insert(ctx, &m))
	require.NotZero(t, m.ID)

	got, err := repo.Managers.ForPortfolio(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "Alice Moreau", got.Name)
}

func TestManagerForPortfolioMissing(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.Managers.ForPortfolio(context.Background(), 999)
	assert.ErrorIs(t, err, persistence.ErrNoManager)
}

func TestTradesPositionsFold(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	trades := []domain.Trade{
		{Date: date(2023, 1, 2), PortfolioID: 1, ManagerID: 1, InstrumentID: 10, Qty: 5},
		{Date: date(2023, 1, 9), PortfolioID: 1, ManagerID: 1, InstrumentID: 10, Qty: -2},
		{Date: date(2023, 1, 9), PortfolioID: 1, ManagerID: 1, InstrumentID: 11, Qty: 7},
		{Date: date(2023, 1, 9), PortfolioID: 2, ManagerID: 2, InstrumentID: 10, Qty: 99},
	}
	require.NoError(t, repo.Trades.InsertBatch(ctx, trades))

	positions, err := repo.Trades.Positions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{10: 3, 11: 7}, positions)

	// other portfolio's ledger is untouched
	other, err := repo.Trades.Positions(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{10: 99}, other)
}

func TestTradesCountSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Trades.InsertBatch(ctx, []domain.Trade{
		{Date: date(2023, 1, 30), PortfolioID: 1, ManagerID: 1, InstrumentID: 10, Qty: 1},
		{Date: date(2023, 2, 6), PortfolioID: 1, ManagerID: 1, InstrumentID: 10, Qty: 1},
		{Date: date(2023, 2, 13), PortfolioID: 1, ManagerID: 1, InstrumentID: 11, Qty: -1},
	}))

	// month boundary is inclusive on the start date
	count, err := repo.Trades.CountSince(ctx, 1, date(2023, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.Trades.CountSince(ctx, 1, date(2023, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestTradesListRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Trades.InsertBatch(ctx, []domain.Trade{
		{Date: date(2023, 1, 2), PortfolioID: 1, ManagerID: 1, InstrumentID: 10, Qty: 1},
		{Date: date(2023, 1, 9), PortfolioID: 1, ManagerID: 1, InstrumentID: 11, Qty: 2},
		{Date: date(2023, 1, 16), PortfolioID: 1, ManagerID: 1, InstrumentID: 12, Qty: 3},
	}))

	got, err := repo.Trades.ListRecent(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(12), got[0].InstrumentID)
	assert.Equal(t, int64(11), got[1].InstrumentID)
}

func TestReturnsListUpTo(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Returns.InsertBatch(ctx, []domain.ReturnObservation{
		{InstrumentID: 1, Ticker: "AAA", Date: date(2023, 1, 2), Value: 0.01},
		{InstrumentID: 1, Ticker: "AAA", Date: date(2023, 1, 3), Value: 0.02},
		{InstrumentID: 1, Ticker: "AAA", Date: date(2023, 1, 4), Value: 0.03},
	}))

	got, err := repo.Returns.ListUpTo(ctx, date(2023, 1, 3))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.01, got[0].Value)
	assert.Equal(t, 0.02, got[1].Value)
}

func TestReturnsPortfolioDailyAveragesAcrossInstruments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Returns.InsertBatch(ctx, []domain.ReturnObservation{
		{InstrumentID: 1, Ticker: "AAA", Date: date(2023, 1, 2), Value: 0.02},
		{InstrumentID: 2, Ticker: "BBB", Date: date(2023, 1, 2), Value: 0.04},
		{InstrumentID: 3, Ticker: "CCC", Date: date(2023, 1, 2), Value: 0.99}, // not in the portfolio
		{InstrumentID: 1, Ticker: "AAA", Date: date(2023, 1, 3), Value: 0.01},
	}))

	dr := persistence.DateRange{From: date(2023, 1, 1), To: date(2023, 1, 31)}
	got, err := repo.Returns.PortfolioDaily(ctx, []int64{1, 2}, dr)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, 0.03, got[0].Value, 1e-12)
	assert.InDelta(t, 0.01, got[1].Value, 1e-12)

	empty, err := repo.Returns.PortfolioDaily(ctx, nil, dr)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReturnsSeriesByTicker(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Returns.InsertBatch(ctx, []domain.ReturnObservation{
		{InstrumentID: 1, Ticker: "500.PA", Date: date(2023, 1, 2), Value: 0.01},
		{InstrumentID: 1, Ticker: "500.PA", Date: date(2023, 1, 3), Value: -0.02},
		{InstrumentID: 2, Ticker: "AAPL", Date: date(2023, 1, 2), Value: 0.10},
	}))

	dr := persistence.DateRange{From: date(2023, 1, 1), To: date(2023, 1, 31)}
	got, err := repo.Returns.SeriesByTicker(ctx, "500.PA", dr)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0.01, got[0].Value)
	assert.Equal(t, -0.02, got[1].Value)
}
