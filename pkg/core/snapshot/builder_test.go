package snapshot

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/models"
)

// fakeStore keeps snapshots in memory keyed by fiscal period.
type fakeStore struct {
	snapshots map[string]*models.FinancialSnapshot
	segments  map[string][]models.Segment
	created   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[string]*models.FinancialSnapshot),
		segments:  make(map[string][]models.Segment),
	}
}

func periodKey(companyID uuid.UUID, year, quarter int) string {
	return fmt.Sprintf("%s/%d/%d", companyID, year, quarter)
}

func (f *fakeStore) FindSnapshotByPeriod(_ context.Context, companyID uuid.UUID, year, quarter int) (*models.FinancialSnapshot, error) {
	if s, ok := f.snapshots[periodKey(companyID, year, quarter)]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("snapshot FY%d Q%d: %w", year, quarter, store.ErrNotFound)
}

func (f *fakeStore) CreateSnapshot(_ context.Context, s *models.FinancialSnapshot, segments []models.Segment) error {
	key := periodKey(s.CompanyID, s.FiscalYear, s.FiscalQuarter)
	if _, ok := f.snapshots[key]; ok {
		return fmt.Errorf("unique violation on %s", key)
	}
	s.ID = uuid.New()
	f.snapshots[key] = s
	f.segments[key] = segments
	f.created++
	return nil
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func incomeQ2() marketdata.IncomeStatement {
	return marketdata.IncomeStatement{
		Period:          "Q2",
		CalendarYear:    "2025",
		Revenue:         dec("100"),
		GrossProfit:     dec("60"),
		OperatingIncome: dec("25"),
		NetIncome:       dec("20"),
	}
}

func TestBuildComputesRatios(t *testing.T) {
	st := newFakeStore()
	companyID := uuid.New()

	raw := RawData{
		Income: []marketdata.IncomeStatement{incomeQ2()},
		Balance: []marketdata.BalanceSheet{{
			Period: "Q2", CalendarYear: "2025",
			TotalEquity: dec("200"), TotalDebt: dec("50"),
		}},
	}

	snap, err := Build(context.Background(), st, companyID, "USD", raw)
	require.NoError(t, err)

	assert.Equal(t, 2025, snap.FiscalYear)
	assert.Equal(t, 2, snap.FiscalQuarter)
	assert.Equal(t, "0.6", snap.GrossMargin.Decimal.String())
	assert.Equal(t, "0.25", snap.OperatingMargin.Decimal.String())
	assert.Equal(t, "0.2", snap.NetMargin.Decimal.String())
	assert.Equal(t, "0.1", snap.ROE.Decimal.String())
	assert.Equal(t, "0.25", snap.DebtToEquity.Decimal.String())
}

func TestBuildNoIncomeData(t *testing.T) {
	st := newFakeStore()
	_, err := Build(context.Background(), st, uuid.New(), "USD", RawData{})
	assert.ErrorIs(t, err, ErrNoData)
	assert.Zero(t, st.created)
}

func TestBuildDuplicatePeriod(t *testing.T) {
	st := newFakeStore()
	companyID := uuid.New()
	raw := RawData{Income: []marketdata.IncomeStatement{incomeQ2()}}

	_, err := Build(context.Background(), st, companyID, "USD", raw)
	require.NoError(t, err)

	_, err = Build(context.Background(), st, companyID, "USD", raw)
	assert.ErrorIs(t, err, ErrDuplicatePeriod)
	assert.Equal(t, 1, st.created, "duplicate period must not create a second row")
}

func TestBuildMissingBalanceDegradesToAbsent(t *testing.T) {
	st := newFakeStore()
	raw := RawData{Income: []marketdata.IncomeStatement{incomeQ2()}}

	snap, err := Build(context.Background(), st, uuid.New(), "USD", raw)
	require.NoError(t, err)

	assert.False(t, snap.TotalEquity.Valid)
	assert.False(t, snap.ROE.Valid, "missing equity must yield absent ROE, not zero")
	assert.False(t, snap.DebtToEquity.Valid)
}

func TestBuildUnrecognizedPeriodDefaults(t *testing.T) {
	st := newFakeStore()
	income := incomeQ2()
	income.Period = "FY"
	raw := RawData{Income: []marketdata.IncomeStatement{income}}

	snap, err := Build(context.Background(), st, uuid.New(), "USD", raw)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.FiscalQuarter)
}

func TestBuildSegmentPercentages(t *testing.T) {
	st := newFakeStore()
	companyID := uuid.New()
	raw := RawData{
		Income: []marketdata.IncomeStatement{incomeQ2()},
		Segments: []marketdata.SegmentData{
			{Name: "Retail", Revenue: dec("70")},
			{Name: "Capital Markets", Revenue: dec("30")},
		},
	}

	snap, err := Build(context.Background(), st, companyID, "USD", raw)
	require.NoError(t, err)

	segs := st.segments[periodKey(companyID, snap.FiscalYear, snap.FiscalQuarter)]
	require.Len(t, segs, 2)
	assert.Equal(t, "0.7", segs[0].RevenuePct.Decimal.String())
	assert.Equal(t, "0.3", segs[1].RevenuePct.Decimal.String())
}

func TestBuildSegmentWithMissingRevenue(t *testing.T) {
	st := newFakeStore()
	companyID := uuid.New()
	raw := RawData{
		Income: []marketdata.IncomeStatement{incomeQ2()},
		Segments: []marketdata.SegmentData{
			{Name: "Known", Revenue: dec("80")},
			{Name: "Unknown"},
		},
	}

	snap, err := Build(context.Background(), st, companyID, "USD", raw)
	require.NoError(t, err)

	segs := st.segments[periodKey(companyID, snap.FiscalYear, snap.FiscalQuarter)]
	require.Len(t, segs, 2)
	// Missing revenue counts as zero for the total but stays absent itself.
	assert.Equal(t, "1", segs[0].RevenuePct.Decimal.String())
	assert.False(t, segs[1].Revenue.Valid)
	assert.False(t, segs[1].RevenuePct.Valid)
}

func TestBuildEmptySegments(t *testing.T) {
	st := newFakeStore()
	companyID := uuid.New()
	raw := RawData{Income: []marketdata.IncomeStatement{incomeQ2()}}

	snap, err := Build(context.Background(), st, companyID, "USD", raw)
	require.NoError(t, err)
	assert.Empty(t, st.segments[periodKey(companyID, snap.FiscalYear, snap.FiscalQuarter)])
}
