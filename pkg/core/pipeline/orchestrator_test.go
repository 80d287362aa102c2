package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"thesisengine/pkg/core/filings"
	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/narrative"
	"thesisengine/pkg/core/snapshot"
	"thesisengine/pkg/core/storage"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/models"
)

// memStore is an in-memory RunStore and TxRunner for pipeline tests.
type memStore struct {
	documents []models.Document
	snapshots []models.FinancialSnapshot
	segments  []models.Segment
	profiles  []models.BusinessProfile
	theses    []models.ThesisVersion
	updates   []models.QuarterlyUpdate
}

func (m *memStore) RunInTx(ctx context.Context, fn func(RunStore) error) error {
	return fn(m)
}

func (m *memStore) FindDocumentByURL(_ context.Context, companyID uuid.UUID, url string) (*models.Document, error) {
	for i := range m.documents {
		if m.documents[i].CompanyID == companyID && m.documents[i].SourceURL == url {
			return &m.documents[i], nil
		}
	}
	return nil, fmt.Errorf("document: %w", store.ErrNotFound)
}

func (m *memStore) CreateDocument(_ context.Context, d *models.Document) error {
	d.ID = uuid.New()
	m.documents = append(m.documents, *d)
	return nil
}

func (m *memStore) FindSnapshotByPeriod(_ context.Context, companyID uuid.UUID, year, quarter int) (*models.FinancialSnapshot, error) {
	for i := range m.snapshots {
		s := &m.snapshots[i]
		if s.CompanyID == companyID && s.FiscalYear == year && s.FiscalQuarter == quarter {
			return s, nil
		}
	}
	return nil, fmt.Errorf("snapshot: %w", store.ErrNotFound)
}

func (m *memStore) CreateSnapshot(_ context.Context, s *models.FinancialSnapshot, segments []models.Segment) error {
	s.ID = uuid.New()
	m.snapshots = append(m.snapshots, *s)
	for i := range segments {
		segments[i].SnapshotID = s.ID
		m.segments = append(m.segments, segments[i])
	}
	return nil
}

func (m *memStore) PriorSnapshot(_ context.Context, companyID uuid.UUID, year, quarter int) (*models.FinancialSnapshot, error) {
	var prior *models.FinancialSnapshot
	for i := range m.snapshots {
		s := &m.snapshots[i]
		if s.CompanyID != companyID {
			continue
		}
		if s.FiscalYear > year || (s.FiscalYear == year && s.FiscalQuarter >= quarter) {
			continue
		}
		if prior == nil || s.FiscalYear > prior.FiscalYear ||
			(s.FiscalYear == prior.FiscalYear && s.FiscalQuarter > prior.FiscalQuarter) {
			prior = s
		}
	}
	if prior == nil {
		return nil, fmt.Errorf("prior snapshot: %w", store.ErrNotFound)
	}
	return prior, nil
}

func (m *memStore) CurrentProfile(_ context.Context, companyID uuid.UUID) (*models.BusinessProfile, error) {
	var current *models.BusinessProfile
	for i := range m.profiles {
		p := &m.profiles[i]
		if p.CompanyID == companyID && (current == nil || p.Version > current.Version) {
			current = p
		}
	}
	if current == nil {
		return nil, fmt.Errorf("profile: %w", store.ErrNotFound)
	}
	return current, nil
}

func (m *memStore) CreateProfile(_ context.Context, p *models.BusinessProfile) error {
	p.ID = uuid.New()
	m.profiles = append(m.profiles, *p)
	return nil
}

func (m *memStore) LockCompanyForThesis(_ context.Context, _ uuid.UUID) error { return nil }

func (m *memStore) LatestThesis(_ context.Context, companyID uuid.UUID) (*models.ThesisVersion, error) {
	var latest *models.ThesisVersion
	for i := range m.theses {
		t := &m.theses[i]
		if t.CompanyID == companyID && (latest == nil || t.Version > latest.Version) {
			latest = t
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("thesis: %w", store.ErrNotFound)
	}
	return latest, nil
}

func (m *memStore) InsertThesis(_ context.Context, t *models.ThesisVersion) error {
	t.ID = uuid.New()
	m.theses = append(m.theses, *t)
	return nil
}

func (m *memStore) FindUpdateByPeriod(_ context.Context, companyID uuid.UUID, year, quarter int) (*models.QuarterlyUpdate, error) {
	for i := range m.updates {
		u := &m.updates[i]
		if u.CompanyID == companyID && u.FiscalYear == year && u.FiscalQuarter == quarter {
			return u, nil
		}
	}
	return nil, fmt.Errorf("update: %w", store.ErrNotFound)
}

func (m *memStore) CreateUpdate(_ context.Context, u *models.QuarterlyUpdate) error {
	u.ID = uuid.New()
	m.updates = append(m.updates, *u)
	return nil
}

// fakeFetcher scripts the market-data outcome.
type fakeFetcher struct {
	raw snapshot.RawData
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *models.Company) (snapshot.RawData, error) {
	return f.raw, f.err
}

// fakeSource serves a canned filing body.
type fakeSource struct {
	body []byte
	err  error
}

func (f *fakeSource) Name() string { return "edgar" }
func (f *fakeSource) ListRecent(_ context.Context, _, _ string) ([]filings.Filing, error) {
	return nil, nil
}
func (f *fakeSource) Download(_ context.Context, _ string) ([]byte, error) {
	return f.body, f.err
}

// fakeGen returns canned narrative artifacts and records which were called.
type fakeGen struct {
	profileCalls int
	thesisCalls  int
	updateCalls  int
	profileErr   error
	lastProfile  narrative.ProfileContext
	lastFiling   string
}

func (g *fakeGen) GenerateBusinessProfile(_ context.Context, _ narrative.CompanyInfo, filingText string) (*narrative.ProfileResult, error) {
	g.profileCalls++
	g.lastFiling = filingText
	if g.profileErr != nil {
		return nil, g.profileErr
	}
	return &narrative.ProfileResult{
		Description:   "desc",
		BusinessModel: "model",
		KeyProducts:   "[]",
		GeographicMix: "{}",
		MoatSources:   "[]",
	}, nil
}

func (g *fakeGen) GenerateThesis(_ context.Context, _ narrative.CompanyInfo, _ narrative.SnapshotFigures, profile narrative.ProfileContext, prior *narrative.PriorThesis, _ string) (*narrative.ThesisResult, error) {
	g.thesisCalls++
	g.lastProfile = profile
	result := &narrative.ThesisResult{
		BullCase: "bull", BaseCase: "base", BearCase: "bear",
		KeyDrivers: "[]", KeyRisks: "[]", Catalysts: "[]",
	}
	if prior != nil {
		result.DriftSummary = "shifted"
		result.ConvictionDirection = models.ConvictionWeakened
	}
	return result, nil
}

func (g *fakeGen) GenerateQuarterlySummary(_ context.Context, _ string, _ *narrative.SnapshotFigures) (*narrative.UpdateResult, error) {
	g.updateCalls++
	return &narrative.UpdateResult{ExecutiveSummary: "summary", KeyChanges: "[]"}, nil
}

func (g *fakeGen) Model() string { return "fake-model" }

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func testRaw() snapshot.RawData {
	return snapshot.RawData{
		Income: []marketdata.IncomeStatement{{
			Period: "Q2", CalendarYear: "2025",
			Revenue: dec("100"), GrossProfit: dec("60"), NetIncome: dec("20"),
		}},
		Balance: []marketdata.BalanceSheet{{
			Period: "Q2", CalendarYear: "2025", TotalEquity: dec("200"),
		}},
	}
}

func testPipeline(t *testing.T, mem *memStore, fetcher *fakeFetcher, gen *fakeGen, src filings.Source, blobs storage.BlobStore) *Orchestrator {
	t.Helper()
	return NewOrchestrator(mem, map[string]filings.Source{"edgar": src}, fetcher, gen, blobs, zaptest.NewLogger(t))
}

func usCompany() *models.Company {
	return &models.Company{
		ID: uuid.New(), Ticker: "AAPL", Name: "Apple Inc.",
		Exchange: "NASDAQ", Sector: "Technology", Industry: "Hardware",
		Currency: "USD", CIK: "320193", IsActive: true,
	}
}

func annualFiling() filings.Filing {
	return filings.Filing{Ref: "0000320193-24-000123", Type: "10-K", FilingDate: "2024-11-01", URL: "https://example.com/10k.htm"}
}

func quarterlyFiling() filings.Filing {
	return filings.Filing{Ref: "0000320193-25-000057", Type: "10-Q", FilingDate: "2025-05-02", URL: "https://example.com/10q.htm"}
}

func TestProcessFilingFullAnnualRun(t *testing.T) {
	mem := &memStore{}
	gen := &fakeGen{}
	blobs := storage.NewMemoryBlobStore()
	orch := testPipeline(t, mem, &fakeFetcher{raw: testRaw()}, gen, &fakeSource{body: []byte("<html><body>annual report</body></html>")}, blobs)
	company := usCompany()

	summary, err := orch.ProcessFiling(context.Background(), company, annualFiling())
	require.NoError(t, err)

	assert.Equal(t, StateDone, summary.State)
	require.Len(t, mem.documents, 1)
	assert.Equal(t, "10-K", mem.documents[0].DocType)
	assert.NotEmpty(t, mem.documents[0].StorageKey, "raw filing should be archived")
	require.Len(t, mem.snapshots, 1)
	assert.Equal(t, 2025, mem.snapshots[0].FiscalYear)
	require.Len(t, mem.profiles, 1)
	assert.Equal(t, 1, mem.profiles[0].Version)
	require.Len(t, mem.theses, 1)
	assert.Equal(t, 1, mem.theses[0].Version)
	assert.Equal(t, mem.snapshots[0].ID, mem.theses[0].SnapshotID)
	require.Len(t, mem.updates, 1)
	assert.Equal(t, mem.theses[0].ID, mem.updates[0].ThesisVersionID)
	assert.Contains(t, gen.lastFiling, "annual report")
}

func TestProcessFilingNoProviderDataIsolation(t *testing.T) {
	mem := &memStore{}
	gen := &fakeGen{}
	orch := testPipeline(t, mem, &fakeFetcher{}, gen, &fakeSource{body: []byte("body")}, nil)
	company := usCompany()

	summary, err := orch.ProcessFiling(context.Background(), company, quarterlyFiling())
	require.NoError(t, err, "a run without provider data must not raise to the dispatcher")

	assert.Equal(t, StateDone, summary.State)
	assert.Len(t, mem.documents, 1, "the document survives even with no financials")
	assert.Empty(t, mem.snapshots)
	assert.Empty(t, mem.profiles)
	assert.Empty(t, mem.theses)
	assert.Empty(t, mem.updates)
	assert.Zero(t, gen.thesisCalls)
	assert.Zero(t, gen.updateCalls)
}

func TestProcessFilingInterimSkipsProfile(t *testing.T) {
	mem := &memStore{}
	gen := &fakeGen{}
	orch := testPipeline(t, mem, &fakeFetcher{raw: testRaw()}, gen, &fakeSource{body: []byte("q")}, nil)

	_, err := orch.ProcessFiling(context.Background(), usCompany(), quarterlyFiling())
	require.NoError(t, err)

	assert.Zero(t, gen.profileCalls, "profiles refresh only on annual filings")
	assert.Empty(t, mem.profiles)
	require.Len(t, mem.theses, 1, "thesis proceeds with an empty profile context")
	assert.Equal(t, narrative.ProfileContext{}, gen.lastProfile)
}

func TestProcessFilingRerunDoesNotDuplicate(t *testing.T) {
	mem := &memStore{}
	gen := &fakeGen{}
	orch := testPipeline(t, mem, &fakeFetcher{raw: testRaw()}, gen, &fakeSource{body: []byte("b")}, nil)
	company := usCompany()
	filing := quarterlyFiling()

	_, err := orch.ProcessFiling(context.Background(), company, filing)
	require.NoError(t, err)
	summary, err := orch.ProcessFiling(context.Background(), company, filing)
	require.NoError(t, err)

	assert.Len(t, mem.documents, 1, "retry must reuse the existing document row")
	assert.Len(t, mem.snapshots, 1, "duplicate period must not create a second snapshot")
	assert.Len(t, mem.theses, 1, "no snapshot this run means no new thesis")
	assert.Contains(t, summary.Notes, "snapshot skipped: period already ingested")
}

func TestProcessFilingRateLimitedIsRetryable(t *testing.T) {
	mem := &memStore{}
	fetcher := &fakeFetcher{err: fmt.Errorf("income: %w", marketdata.ErrRateLimited)}
	orch := testPipeline(t, mem, fetcher, &fakeGen{}, &fakeSource{body: []byte("b")}, nil)

	_, err := orch.ProcessFiling(context.Background(), usCompany(), quarterlyFiling())
	require.Error(t, err)
	assert.ErrorIs(t, err, marketdata.ErrRateLimited)
	assert.Empty(t, mem.documents, "an aborted run commits nothing")
}

func TestProcessFilingDownloadFailureDegrades(t *testing.T) {
	mem := &memStore{}
	gen := &fakeGen{}
	orch := testPipeline(t, mem, &fakeFetcher{raw: testRaw()}, gen, &fakeSource{err: fmt.Errorf("registry down")}, nil)
	company := usCompany()

	summary, err := orch.ProcessFiling(context.Background(), company, annualFiling())
	require.NoError(t, err)

	assert.Equal(t, StateDone, summary.State)
	require.Len(t, mem.documents, 1)
	assert.Empty(t, mem.documents[0].StorageKey)
	assert.Zero(t, mem.documents[0].FileSizeBytes)
	require.Equal(t, 1, gen.profileCalls)
	assert.Contains(t, gen.lastFiling, "Apple Inc. (AAPL) is a Hardware company in the Technology sector.")
}

func TestProcessFilingProfileFailureIsIsolated(t *testing.T) {
	mem := &memStore{}
	gen := &fakeGen{profileErr: fmt.Errorf("model refused")}
	orch := testPipeline(t, mem, &fakeFetcher{raw: testRaw()}, gen, &fakeSource{body: []byte("b")}, nil)

	summary, err := orch.ProcessFiling(context.Background(), usCompany(), annualFiling())
	require.NoError(t, err)

	assert.Equal(t, StateDone, summary.State)
	assert.Empty(t, mem.profiles)
	assert.Len(t, mem.theses, 1, "thesis still runs when the profile step fails")
}
