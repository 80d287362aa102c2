package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"thesisengine/pkg/core/marketdata"
	"thesisengine/pkg/core/snapshot"
	"thesisengine/pkg/core/storage"
	"thesisengine/pkg/core/store"
	"thesisengine/pkg/core/thesis"
	"thesisengine/pkg/models"
)

// stubStore answers from in-memory fixtures and wraps store.ErrNotFound for
// everything it does not hold.
type stubStore struct {
	companies map[uuid.UUID]*models.Company
	snapshots map[uuid.UUID]*models.FinancialSnapshot // by company
	segments  map[uuid.UUID][]models.Segment          // by snapshot
	theses    map[uuid.UUID]*models.ThesisVersion     // by thesis id
	documents map[uuid.UUID]*models.Document          // by document id
}

func newStubStore() *stubStore {
	return &stubStore{
		companies: map[uuid.UUID]*models.Company{},
		snapshots: map[uuid.UUID]*models.FinancialSnapshot{},
		segments:  map[uuid.UUID][]models.Segment{},
		theses:    map[uuid.UUID]*models.ThesisVersion{},
		documents: map[uuid.UUID]*models.Document{},
	}
}

func notFound(what string) error { return fmt.Errorf("%s: %w", what, store.ErrNotFound) }

func (f *stubStore) CreateCompany(_ context.Context, c *models.Company) error {
	c.ID = uuid.New()
	f.companies[c.ID] = c
	return nil
}

func (f *stubStore) GetCompany(_ context.Context, id uuid.UUID) (*models.Company, error) {
	if c, ok := f.companies[id]; ok {
		return c, nil
	}
	return nil, notFound("company")
}

func (f *stubStore) GetCompanyByTicker(_ context.Context, ticker string) (*models.Company, error) {
	for _, c := range f.companies {
		if c.Ticker == ticker {
			return c, nil
		}
	}
	return nil, notFound("company")
}

func (f *stubStore) ListCompanies(_ context.Context) ([]models.Company, error) {
	var out []models.Company
	for _, c := range f.companies {
		out = append(out, *c)
	}
	return out, nil
}

func (f *stubStore) UpdateCompany(_ context.Context, c *models.Company) error {
	if _, ok := f.companies[c.ID]; !ok {
		return notFound("company")
	}
	f.companies[c.ID] = c
	return nil
}

func (f *stubStore) LatestSnapshot(_ context.Context, companyID uuid.UUID) (*models.FinancialSnapshot, error) {
	if s, ok := f.snapshots[companyID]; ok {
		return s, nil
	}
	return nil, notFound("snapshot")
}

func (f *stubStore) ListSnapshots(_ context.Context, companyID uuid.UUID) ([]models.FinancialSnapshot, error) {
	if s, ok := f.snapshots[companyID]; ok {
		return []models.FinancialSnapshot{*s}, nil
	}
	return nil, nil
}

func (f *stubStore) ListSegments(_ context.Context, snapshotID uuid.UUID) ([]models.Segment, error) {
	return f.segments[snapshotID], nil
}

func (f *stubStore) CurrentProfile(_ context.Context, _ uuid.UUID) (*models.BusinessProfile, error) {
	return nil, notFound("profile")
}

func (f *stubStore) ListProfiles(_ context.Context, _ uuid.UUID) ([]models.BusinessProfile, error) {
	return nil, nil
}

func (f *stubStore) LatestThesis(_ context.Context, _ uuid.UUID) (*models.ThesisVersion, error) {
	return nil, notFound("thesis")
}

func (f *stubStore) GetThesis(_ context.Context, id uuid.UUID) (*models.ThesisVersion, error) {
	if t, ok := f.theses[id]; ok {
		return t, nil
	}
	return nil, notFound("thesis")
}

func (f *stubStore) ListTheses(_ context.Context, _ uuid.UUID) ([]models.ThesisVersion, error) {
	return nil, nil
}

func (f *stubStore) ListUpdates(_ context.Context, _ uuid.UUID) ([]models.QuarterlyUpdate, error) {
	return nil, nil
}

func (f *stubStore) GetDocument(_ context.Context, id uuid.UUID) (*models.Document, error) {
	if d, ok := f.documents[id]; ok {
		return d, nil
	}
	return nil, notFound("document")
}

func (f *stubStore) ListDocuments(_ context.Context, _ uuid.UUID) ([]models.Document, error) {
	return nil, nil
}

func (f *stubStore) ListJobs(_ context.Context, _ uuid.UUID) ([]models.IngestionJob, error) {
	return nil, nil
}

type stubIngestor struct {
	snap *models.FinancialSnapshot
	err  error
}

func (f *stubIngestor) IngestLatestFinancials(_ context.Context, _ uuid.UUID) (*models.FinancialSnapshot, error) {
	return f.snap, f.err
}

type stubThesisService struct {
	version *models.ThesisVersion
	err     error
}

func (f *stubThesisService) CreateThesisVersion(_ context.Context, _ uuid.UUID) (*models.ThesisVersion, error) {
	return f.version, f.err
}

type stubSweeper struct {
	dispatched int
	err        error
}

func (f *stubSweeper) SweepForNewFilings(_ context.Context) (int, error) {
	return f.dispatched, f.err
}

type stubQuoteSource struct {
	quote  *marketdata.Quote
	err    error
	symbol string
}

func (f *stubQuoteSource) GetQuote(_ context.Context, symbol string) (*marketdata.Quote, error) {
	f.symbol = symbol
	return f.quote, f.err
}

type serverFixture struct {
	store    *stubStore
	ingestor *stubIngestor
	theses   *stubThesisService
	sweeper  *stubSweeper
	quotes   *stubQuoteSource
	blobs    *storage.MemoryBlobStore
	ts       *httptest.Server
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()
	fx := &serverFixture{
		store:    newStubStore(),
		ingestor: &stubIngestor{},
		theses:   &stubThesisService{},
		sweeper:  &stubSweeper{},
		quotes:   &stubQuoteSource{},
		blobs:    storage.NewMemoryBlobStore(),
	}
	srv := NewServer(fx.store, fx.ingestor, fx.theses, fx.sweeper, fx.quotes, fx.blobs, nil, zaptest.NewLogger(t))
	fx.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(fx.ts.Close)
	return fx
}

func (fx *serverFixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(fx.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func (fx *serverFixture) post(t *testing.T, path, body string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Post(fx.ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(out)
}

func TestHealth(t *testing.T) {
	fx := newFixture(t)
	resp, body := fx.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestHealthFailingPing(t *testing.T) {
	fx := newFixture(t)
	srv := NewServer(fx.store, nil, nil, nil, nil, nil, func(context.Context) error {
		return fmt.Errorf("connection refused")
	}, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCreateCompany(t *testing.T) {
	fx := newFixture(t)
	resp, body := fx.post(t, "/api/companies",
		`{"ticker":"shop","name":"Shopify Inc.","exchange":"TSX","currency":"CAD","sedar_id":"00012345"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	var created models.Company
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.Equal(t, "SHOP", created.Ticker, "tickers normalize to upper case")
	assert.True(t, created.IsActive)
	assert.NotEqual(t, uuid.Nil, created.ID)
}

func TestCreateCompanyValidation(t *testing.T) {
	fx := newFixture(t)
	cases := map[string]string{
		"missing ticker":  `{"name":"X","exchange":"NYSE","currency":"USD","cik":"123"}`,
		"bad exchange":    `{"ticker":"X","name":"X","exchange":"LSE","currency":"USD","cik":"123"}`,
		"bad currency":    `{"ticker":"X","name":"X","exchange":"NYSE","currency":"EUR","cik":"123"}`,
		"no filer id":     `{"ticker":"X","name":"X","exchange":"NYSE","currency":"USD"}`,
		"non-numeric cik": `{"ticker":"X","name":"X","exchange":"NYSE","currency":"USD","cik":"ABC"}`,
		"not json at all": `ticker=X`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			resp, _ := fx.post(t, "/api/companies", payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetCompanyNotFound(t *testing.T) {
	fx := newFixture(t)
	resp, _ := fx.get(t, "/api/companies/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetCompanyBadID(t *testing.T) {
	fx := newFixture(t)
	resp, _ := fx.get(t, "/api/companies/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLatestSnapshotWithSegments(t *testing.T) {
	fx := newFixture(t)
	companyID := uuid.New()
	snapID := uuid.New()
	fx.store.snapshots[companyID] = &models.FinancialSnapshot{
		ID: snapID, CompanyID: companyID, FiscalYear: 2025, FiscalQuarter: 2,
		Revenue: decimal.NewNullDecimal(decimal.RequireFromString("100.00")),
	}
	fx.store.segments[snapID] = []models.Segment{{SnapshotID: snapID, Name: "Cloud"}}

	resp, body := fx.get(t, fmt.Sprintf("/api/companies/%s/snapshots/latest", companyID))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail struct {
		FiscalYear int              `json:"fiscal_year"`
		Revenue    *decimal.Decimal `json:"revenue"`
		Segments   []models.Segment `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(body, &detail))
	assert.Equal(t, 2025, detail.FiscalYear)
	require.NotNil(t, detail.Revenue)
	require.Len(t, detail.Segments, 1)
	assert.Equal(t, "Cloud", detail.Segments[0].Name)
}

func TestThesisHTML(t *testing.T) {
	fx := newFixture(t)
	id := uuid.New()
	fx.store.theses[id] = &models.ThesisVersion{
		ID: id, Version: 3,
		BullCase:   "Growth *accelerates*.",
		BaseCase:   "Steady state.",
		BearCase:   "Margins compress.",
		BullTarget: decimal.NewNullDecimal(decimal.RequireFromString("210.00")),
		KeyRisks:   `["customer concentration","fx exposure"]`,
	}

	resp, body := fx.get(t, fmt.Sprintf("/api/theses/%s/html", id))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	html := string(body)
	assert.Contains(t, html, "Investment Thesis v3")
	assert.Contains(t, html, "<em>accelerates</em>")
	assert.Contains(t, html, "210.00")
	assert.Contains(t, html, "N/A", "absent targets render as N/A")
	assert.Contains(t, html, "<li>customer concentration</li>")
}

func TestIngestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no provider data", snapshot.ErrNoData, http.StatusUnprocessableEntity},
		{"period already ingested", snapshot.ErrDuplicatePeriod, http.StatusConflict},
		{"provider rate limited", fmt.Errorf("income: %w", marketdata.ErrRateLimited), http.StatusServiceUnavailable},
		{"unknown company", fmt.Errorf("company: %w", store.ErrNotFound), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.ingestor.err = tc.err
			resp, _ := fx.post(t, "/api/companies/"+uuid.NewString()+"/ingest", "")
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCreateThesisErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"no snapshot yet", thesis.ErrMissingSnapshot, http.StatusConflict},
		{"no profile yet", thesis.ErrMissingProfile, http.StatusPreconditionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.theses.err = tc.err
			resp, _ := fx.post(t, "/api/companies/"+uuid.NewString()+"/thesis", "")
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestCreateThesisSuccess(t *testing.T) {
	fx := newFixture(t)
	fx.theses.version = &models.ThesisVersion{ID: uuid.New(), Version: 1, BullCase: "bull"}
	resp, body := fx.post(t, "/api/companies/"+uuid.NewString()+"/thesis", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, body, `"version":1`)
}

func TestSweep(t *testing.T) {
	fx := newFixture(t)
	fx.sweeper.dispatched = 7
	resp, body := fx.post(t, "/api/sweep", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"dispatched":7}`, body)
}

func TestGetQuote(t *testing.T) {
	fx := newFixture(t)
	companyID := uuid.New()
	fx.store.companies[companyID] = &models.Company{ID: companyID, Ticker: "SHOP", Exchange: "TSX"}
	fx.quotes.quote = &marketdata.Quote{
		Price:      decimal.NewNullDecimal(decimal.RequireFromString("98.40")),
		TradingDay: "2025-05-02",
	}

	resp, body := fx.get(t, fmt.Sprintf("/api/companies/%s/quote", companyID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SHOP.TO", fx.quotes.symbol, "exchange suffix applied before lookup")

	var out map[string]string
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "98.40", out["price"])
	assert.Equal(t, "N/A", out["change"], "absent fields render as N/A")
	assert.Equal(t, "2025-05-02", out["trading_day"])
}

func TestGetQuoteNoProviderAnswer(t *testing.T) {
	fx := newFixture(t)
	companyID := uuid.New()
	fx.store.companies[companyID] = &models.Company{ID: companyID, Ticker: "AAPL", Exchange: "NASDAQ"}

	resp, _ := fx.get(t, fmt.Sprintf("/api/companies/%s/quote", companyID))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetQuoteRateLimited(t *testing.T) {
	fx := newFixture(t)
	companyID := uuid.New()
	fx.store.companies[companyID] = &models.Company{ID: companyID, Ticker: "AAPL", Exchange: "NASDAQ"}
	fx.quotes.err = fmt.Errorf("quote: %w", marketdata.ErrRateLimited)

	resp, _ := fx.get(t, fmt.Sprintf("/api/companies/%s/quote", companyID))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDocumentContent(t *testing.T) {
	fx := newFixture(t)
	docID := uuid.New()
	fx.store.documents[docID] = &models.Document{ID: docID, StorageKey: "filings/AAPL/2025-05-02/acc-1"}
	require.NoError(t, fx.blobs.Put(context.Background(), "filings/AAPL/2025-05-02/acc-1", []byte("<html>10-Q</html>"), "text/html"))

	resp, body := fx.get(t, "/api/documents/"+docID.String()+"/content")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Equal(t, "<html>10-Q</html>", string(body))
}

func TestDocumentContentMissingObject(t *testing.T) {
	fx := newFixture(t)
	docID := uuid.New()
	fx.store.documents[docID] = &models.Document{ID: docID, StorageKey: "filings/AAPL/gone"}

	resp, _ := fx.get(t, "/api/documents/"+docID.String()+"/content")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDocumentURL(t *testing.T) {
	fx := newFixture(t)
	docID := uuid.New()
	fx.store.documents[docID] = &models.Document{ID: docID, StorageKey: "filings/AAPL/2025-05-02/acc-1"}
	require.NoError(t, fx.blobs.Put(context.Background(), "filings/AAPL/2025-05-02/acc-1", []byte("x"), "text/html"))

	resp, body := fx.get(t, "/api/documents/"+docID.String()+"/url")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"url":"memory://filings/AAPL/2025-05-02/acc-1"}`, string(body))
}

func TestDocumentURLNoBody(t *testing.T) {
	fx := newFixture(t)
	docID := uuid.New()
	fx.store.documents[docID] = &models.Document{ID: docID}

	resp, _ := fx.get(t, "/api/documents/"+docID.String()+"/url")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
