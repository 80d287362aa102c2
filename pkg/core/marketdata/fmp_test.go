package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFMP(t *testing.T, handler http.HandlerFunc) *FMPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFMPClient("test-key", srv.URL)
}

func TestFMPIncomeNormalization(t *testing.T) {
	c := newTestFMP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "quarter", r.URL.Query().Get("period"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`[
			{"period":"Q2","calendarYear":"2025","revenue":100000000.55,
			 "grossProfit":60000000,"operatingIncome":25000000,
			 "netIncome":20000000,"ebitda":30000000,"epsdiluted":1.2345,
			 "weightedAverageShsOutDil":16000000},
			{"period":"Q1","calendarYear":"2025","revenue":90000000}
		]`))
	})

	rows, err := c.IncomeStatements(context.Background(), "AAPL", 4)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Most recent first, as the provider orders them.
	assert.Equal(t, "Q2", rows[0].Period)
	assert.Equal(t, "2025", rows[0].CalendarYear)
	require.True(t, rows[0].Revenue.Valid)
	assert.Equal(t, "100000000.55", rows[0].Revenue.Decimal.String())
	assert.Equal(t, "1.2345", rows[0].EPSDiluted.Decimal.String())

	// Fields the provider omitted stay absent.
	assert.False(t, rows[1].GrossProfit.Valid)
	assert.False(t, rows[1].EBITDA.Valid)
}

func TestFMPRateLimited(t *testing.T) {
	c := newTestFMP(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.IncomeStatements(context.Background(), "AAPL", 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestFMPSegments(t *testing.T) {
	c := newTestFMP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"2025-06-30": {"iPhone": 7000, "Services": 3000}},
			{"2025-03-31": {"iPhone": 6500, "Services": 2500}}
		]`))
	})

	segs, err := c.Segments(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, segs, 2)

	byName := map[string]string{}
	for _, s := range segs {
		require.True(t, s.Revenue.Valid)
		byName[s.Name] = s.Revenue.Decimal.String()
	}
	assert.Equal(t, "7000", byName["iPhone"])
	assert.Equal(t, "3000", byName["Services"])
}

func TestFMPQuote(t *testing.T) {
	c := newTestFMP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"price":198.23,"change":1.5,"changesPercentage":0.76,
			"previousClose":196.73,"timestamp":1735689600}]`))
	})

	q, err := c.Quote(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "198.23", q.Price.Decimal.String())
	assert.Equal(t, "2025-01-01", q.TradingDay)
}

func TestFMPUnknownTickerIsEmpty(t *testing.T) {
	c := newTestFMP(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	rows, err := c.IncomeStatements(context.Background(), "NOPE", 4)
	require.NoError(t, err)
	assert.Empty(t, rows)

	q, err := c.Quote(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, q)
}
