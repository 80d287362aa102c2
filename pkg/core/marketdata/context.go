package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// MarketContext is analyst overview plus recent news commentary, used to
// ground thesis generation in real analyst sentiment. Every field is
// best-effort.
type MarketContext struct {
	AnalystTargetPrice string
	Week52Range        string
	PERatio            string
	ForwardPE          string
	RecentNews         []NewsItem
}

// NewsItem is one article with its overall sentiment label.
type NewsItem struct {
	Title         string
	Source        string
	Summary       string
	Sentiment     string
	TimePublished string // YYYYMMDD
}

// Higher absolute value = more opinionated (bull or bear).
var sentimentRank = map[string]int{
	"Bullish":          2,
	"Somewhat-Bullish": 1,
	"Neutral":          0,
	"Somewhat-Bearish": -1,
	"Bearish":          -2,
}

// AlphaVantageClient pulls analyst overview and news sentiment. All methods
// fall back gracefully: a failed or empty fetch yields an empty context,
// never an error to the caller.
type AlphaVantageClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewAlphaVantageClient creates a client for baseURL,
// e.g. "https://www.alphavantage.co".
func NewAlphaVantageClient(log *zap.Logger, apiKey, baseURL string) *AlphaVantageClient {
	return &AlphaVantageClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		log:        log,
	}
}

// GetMarketContext fetches overview and news for a ticker. Either half may be
// missing; both failing yields an empty context.
func (c *AlphaVantageClient) GetMarketContext(ctx context.Context, ticker string) *MarketContext {
	mc := &MarketContext{}
	if c.apiKey == "" {
		return mc
	}

	if overview, err := c.getOverview(ctx, ticker); err != nil {
		c.log.Warn("overview fetch failed", zap.String("ticker", ticker), zap.Error(err))
	} else {
		mc.AnalystTargetPrice = overview.AnalystTargetPrice
		mc.Week52Range = overview.Week52Range
		mc.PERatio = overview.PERatio
		mc.ForwardPE = overview.ForwardPE
	}

	if news, err := c.getNews(ctx, ticker); err != nil {
		c.log.Warn("news fetch failed", zap.String("ticker", ticker), zap.Error(err))
	} else {
		mc.RecentNews = news
	}
	return mc
}

// FormatForPrompt renders a context as a prompt-friendly block.
func (mc *MarketContext) FormatForPrompt() string {
	if mc == nil {
		return "No market context available."
	}

	var lines []string
	var metrics []string
	if mc.AnalystTargetPrice != "" {
		metrics = append(metrics, "Analyst Consensus Target: $"+mc.AnalystTargetPrice)
	}
	if mc.Week52Range != "" {
		metrics = append(metrics, "52-Week Range: "+mc.Week52Range)
	}
	if mc.PERatio != "" {
		metrics = append(metrics, "P/E: "+mc.PERatio)
	}
	if mc.ForwardPE != "" {
		metrics = append(metrics, "Fwd P/E: "+mc.ForwardPE)
	}
	if len(metrics) > 0 {
		lines = append(lines, strings.Join(metrics, "  "))
	}

	if len(mc.RecentNews) > 0 {
		lines = append(lines, "", "Recent Analyst & News Commentary:")
		for _, art := range mc.RecentNews {
			tag := ""
			if art.Sentiment != "" {
				tag = "[" + art.Sentiment + "] "
			}
			src := ""
			if art.Source != "" {
				src = fmt.Sprintf(" (%s, %s)", art.Source, art.TimePublished)
			}
			lines = append(lines, fmt.Sprintf("  %s%q%s", tag, art.Title, src))
			if art.Summary != "" {
				lines = append(lines, "    "+art.Summary)
			}
		}
	} else {
		lines = append(lines, "No recent analyst news available.")
	}

	if len(lines) == 0 {
		return "No market context available."
	}
	return strings.Join(lines, "\n")
}

func (c *AlphaVantageClient) getOverview(ctx context.Context, ticker string) (*MarketContext, error) {
	var data struct {
		Symbol             string `json:"Symbol"`
		AnalystTargetPrice string `json:"AnalystTargetPrice"`
		Week52High         string `json:"52WeekHigh"`
		Week52Low          string `json:"52WeekLow"`
		PERatio            string `json:"PERatio"`
		ForwardPE          string `json:"ForwardPE"`
	}
	if err := c.get(ctx, url.Values{"function": {"OVERVIEW"}, "symbol": {ticker}}, &data); err != nil {
		return nil, err
	}
	if data.Symbol == "" {
		return &MarketContext{}, nil
	}
	out := &MarketContext{
		AnalystTargetPrice: cleanAV(data.AnalystTargetPrice),
		PERatio:            cleanAV(data.PERatio),
		ForwardPE:          cleanAV(data.ForwardPE),
	}
	if high, low := cleanAV(data.Week52High), cleanAV(data.Week52Low); high != "" && low != "" {
		out.Week52Range = fmt.Sprintf("$%s - $%s", low, high)
	}
	return out, nil
}

func (c *AlphaVantageClient) getNews(ctx context.Context, ticker string) ([]NewsItem, error) {
	var data struct {
		Feed []struct {
			Title                 string `json:"title"`
			Source                string `json:"source"`
			Summary               string `json:"summary"`
			OverallSentimentLabel string `json:"overall_sentiment_label"`
			TimePublished         string `json:"time_published"`
			TickerSentiment       []struct {
				Ticker         string `json:"ticker"`
				RelevanceScore string `json:"relevance_score"`
			} `json:"ticker_sentiment"`
		} `json:"feed"`
	}
	q := url.Values{
		"function": {"NEWS_SENTIMENT"},
		"tickers":  {ticker},
		"limit":    {"20"},
		"sort":     {"RELEVANCE"},
	}
	if err := c.get(ctx, q, &data); err != nil {
		return nil, err
	}

	var items []NewsItem
	for _, art := range data.Feed {
		// Skip articles where this ticker is only a marginal subject.
		relevant := true
		for _, ts := range art.TickerSentiment {
			if !strings.EqualFold(ts.Ticker, ticker) {
				continue
			}
			relevance, _ := strconv.ParseFloat(ts.RelevanceScore, 64)
			relevant = relevance >= 0.25
			break
		}
		if !relevant {
			continue
		}
		items = append(items, NewsItem{
			Title:         art.Title,
			Source:        art.Source,
			Summary:       truncate(art.Summary, 500),
			Sentiment:     art.OverallSentimentLabel,
			TimePublished: truncate(art.TimePublished, 8),
		})
	}

	// Most opinionated articles first.
	sort.SliceStable(items, func(i, j int) bool {
		return abs(sentimentRank[items[i].Sentiment]) > abs(sentimentRank[items[j].Sentiment])
	})
	if len(items) > 8 {
		items = items[:8]
	}
	return items, nil
}

func (c *AlphaVantageClient) get(ctx context.Context, query url.Values, into any) error {
	query.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "/query?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alpha vantage returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, into)
}

// cleanAV returns "" for Alpha Vantage's placeholder values.
func cleanAV(v string) string {
	switch v {
	case "", "None", "-", "0", "0.0", "N/A":
		return ""
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
