package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"thesisengine/pkg/core/numeric"
)

// FMPClient pulls structured financials from a Financial Modeling Prep style
// API. Requests are rate limited client-side; a 429 from the provider is
// surfaced as ErrRateLimited.
type FMPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Provider = (*FMPClient)(nil)

// NewFMPClient creates a client for the given base URL,
// e.g. "https://financialmodelingprep.com".
func NewFMPClient(apiKey, baseURL string) *FMPClient {
	return &FMPClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// The free tier allows ~250 calls/day; 1 rps with small bursts keeps
		// a sweep over many companies inside the per-minute window.
		limiter: rate.NewLimiter(rate.Limit(1), 4),
	}
}

func (c *FMPClient) Name() string { return "fmp" }

// fmpIncome mirrors the provider's income-statement JSON. Numbers decode as
// json.Number so string coercion to decimal loses no precision.
type fmpIncome struct {
	Period                   string      `json:"period"`
	CalendarYear             string      `json:"calendarYear"`
	Revenue                  json.Number `json:"revenue"`
	CostOfRevenue            json.Number `json:"costOfRevenue"`
	GrossProfit              json.Number `json:"grossProfit"`
	OperatingIncome          json.Number `json:"operatingIncome"`
	NetIncome                json.Number `json:"netIncome"`
	EBITDA                   json.Number `json:"ebitda"`
	EPSDiluted               json.Number `json:"epsdiluted"`
	WeightedAverageShsOutDil json.Number `json:"weightedAverageShsOutDil"`
}

type fmpBalance struct {
	Period               string      `json:"period"`
	CalendarYear         string      `json:"calendarYear"`
	TotalAssets          json.Number `json:"totalAssets"`
	TotalLiabilities     json.Number `json:"totalLiabilities"`
	TotalStockholdersEq  json.Number `json:"totalStockholdersEquity"`
	CashAndCashEquiv     json.Number `json:"cashAndCashEquivalents"`
	TotalDebt            json.Number `json:"totalDebt"`
}

type fmpCashFlow struct {
	Period              string      `json:"period"`
	CalendarYear        string      `json:"calendarYear"`
	OperatingCashFlow   json.Number `json:"operatingCashFlow"`
	CapitalExpenditure  json.Number `json:"capitalExpenditure"`
	FreeCashFlow        json.Number `json:"freeCashFlow"`
}

type fmpQuote struct {
	Price             json.Number `json:"price"`
	Change            json.Number `json:"change"`
	ChangesPercentage json.Number `json:"changesPercentage"`
	PreviousClose     json.Number `json:"previousClose"`
	Timestamp         int64       `json:"timestamp"`
}

// IncomeStatements returns up to limit quarterly income statements, most
// recent first (the provider already orders newest-first).
func (c *FMPClient) IncomeStatements(ctx context.Context, symbol string, limit int) ([]IncomeStatement, error) {
	var raw []fmpIncome
	path := fmt.Sprintf("/api/v3/income-statement/%s", url.PathEscape(symbol))
	if err := c.get(ctx, path, url.Values{"period": {"quarter"}, "limit": {fmt.Sprint(limit)}}, &raw); err != nil {
		return nil, err
	}
	out := make([]IncomeStatement, 0, len(raw))
	for _, r := range raw {
		out = append(out, IncomeStatement{
			Period:            r.Period,
			CalendarYear:      r.CalendarYear,
			Revenue:           numeric.FromAny(r.Revenue),
			CostOfRevenue:     numeric.FromAny(r.CostOfRevenue),
			GrossProfit:       numeric.FromAny(r.GrossProfit),
			OperatingIncome:   numeric.FromAny(r.OperatingIncome),
			NetIncome:         numeric.FromAny(r.NetIncome),
			EBITDA:            numeric.FromAny(r.EBITDA),
			EPSDiluted:        numeric.FromAny(r.EPSDiluted),
			SharesOutstanding: numeric.FromAny(r.WeightedAverageShsOutDil),
		})
	}
	return out, nil
}

func (c *FMPClient) BalanceSheets(ctx context.Context, symbol string, limit int) ([]BalanceSheet, error) {
	var raw []fmpBalance
	path := fmt.Sprintf("/api/v3/balance-sheet-statement/%s", url.PathEscape(symbol))
	if err := c.get(ctx, path, url.Values{"period": {"quarter"}, "limit": {fmt.Sprint(limit)}}, &raw); err != nil {
		return nil, err
	}
	out := make([]BalanceSheet, 0, len(raw))
	for _, r := range raw {
		out = append(out, BalanceSheet{
			Period:             r.Period,
			CalendarYear:       r.CalendarYear,
			TotalAssets:        numeric.FromAny(r.TotalAssets),
			TotalLiabilities:   numeric.FromAny(r.TotalLiabilities),
			TotalEquity:        numeric.FromAny(r.TotalStockholdersEq),
			CashAndEquivalents: numeric.FromAny(r.CashAndCashEquiv),
			TotalDebt:          numeric.FromAny(r.TotalDebt),
		})
	}
	return out, nil
}

func (c *FMPClient) CashFlows(ctx context.Context, symbol string, limit int) ([]CashFlow, error) {
	var raw []fmpCashFlow
	path := fmt.Sprintf("/api/v3/cash-flow-statement/%s", url.PathEscape(symbol))
	if err := c.get(ctx, path, url.Values{"period": {"quarter"}, "limit": {fmt.Sprint(limit)}}, &raw); err != nil {
		return nil, err
	}
	out := make([]CashFlow, 0, len(raw))
	for _, r := range raw {
		out = append(out, CashFlow{
			Period:              r.Period,
			CalendarYear:        r.CalendarYear,
			OperatingCashFlow:   numeric.FromAny(r.OperatingCashFlow),
			CapitalExpenditures: numeric.FromAny(r.CapitalExpenditure),
			FreeCashFlow:        numeric.FromAny(r.FreeCashFlow),
		})
	}
	return out, nil
}

// Segments fetches the product segmentation for the most recent period. The
// provider returns a list of {date: {segment: revenue}} objects, newest first.
func (c *FMPClient) Segments(ctx context.Context, symbol string) ([]SegmentData, error) {
	var raw []map[string]map[string]json.Number
	q := url.Values{"symbol": {symbol}, "period": {"quarter"}, "structure": {"flat"}}
	if err := c.get(ctx, "/api/v4/revenue-product-segmentation", q, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var out []SegmentData
	for _, byName := range raw[0] {
		for name, rev := range byName {
			out = append(out, SegmentData{Name: name, Revenue: numeric.FromAny(rev)})
		}
		break // only the most recent period entry
	}
	return out, nil
}

func (c *FMPClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	var raw []fmpQuote
	path := fmt.Sprintf("/api/v3/quote/%s", url.PathEscape(symbol))
	if err := c.get(ctx, path, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	r := raw[0]
	q := &Quote{
		Price:     numeric.FromAny(r.Price),
		Change:    numeric.FromAny(r.Change),
		ChangePct: numeric.FromAny(r.ChangesPercentage),
		PrevClose: numeric.FromAny(r.PreviousClose),
	}
	if r.Timestamp > 0 {
		q.TradingDay = time.Unix(r.Timestamp, 0).UTC().Format("2006-01-02")
	}
	return q, nil
}

func (c *FMPClient) get(ctx context.Context, path string, query url.Values, into any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("apikey", c.apiKey)
	reqURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fmp request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("fmp %s: %w", path, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fmp %s returned status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read fmp response: %w", err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("parse fmp response: %w", err)
	}
	return nil
}
