package cse

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"cse-market-assistant/internal/cache"
)

const (
	DefaultBaseURL = "https://www.cse.lk/api"

	endpointCompanyInfo  = "companyInfoSummery"
	endpointTradeSummary = "tradeSummary"
	endpointTopGainers   = "topGainers"
	endpointTopLosers    = "topLooses" // the CSE API spells it this way

	maxSearchResults = 10
	maxMoversPerSide = 5
)

// Client reads quote data from the CSE backend. Every operation is total:
// backend, transport and parse failures degrade to an absent or empty result
// and a log line, never an error to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client
	quotes     *cache.Cache[Quote]
	lists      *cache.Cache[[]Quote]
}

// NewClient builds a client for the given base URL. An empty base URL falls
// back to the public CSE endpoint. A nil clock defaults to time.Now.
func NewClient(baseURL string, timeout time.Duration, now func() time.Time) *Client {
	if baseURL == "" {
		log.Printf("cse base url not configured, using default endpoint")
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		quotes:     cache.New[Quote](cache.DefaultTTL, now),
		lists:      cache.New[[]Quote](cache.DefaultTTL, now),
	}
}

// GetQuote returns the current quote for a symbol, consulting the cache first.
func (c *Client) GetQuote(ctx context.Context, symbol string) (Quote, bool) {
	q, apiErr := c.LookupQuote(ctx, symbol)
	return q, apiErr == nil
}

// LookupQuote is GetQuote with the failure classified: a miss comes back as
// an *APIError whose Kind distinguishes an unknown symbol from a backend or
// transport failure.
func (c *Client) LookupQuote(ctx context.Context, symbol string) (Quote, *APIError) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return Quote{}, &APIError{Kind: KindNotFound, Endpoint: endpointCompanyInfo}
	}
	key := "quote:" + sym
	if q, ok := c.quotes.Get(key); ok {
		return q, nil
	}

	var info companyInfo
	if err := c.post(ctx, endpointCompanyInfo, map[string]string{"symbol": sym}, &info); err != nil {
		log.Printf("cse quote error for %s: %v", sym, err)
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Quote{}, apiErr
		}
		return Quote{}, &APIError{Kind: KindUnknown, Endpoint: endpointCompanyInfo, Err: err}
	}
	q, ok := mapQuote(info)
	if !ok {
		return Quote{}, &APIError{Kind: KindNotFound, Endpoint: endpointCompanyInfo}
	}
	c.quotes.Set(key, q)
	return q, nil
}

// Search returns up to 10 quotes whose symbol or name contains the query,
// case-insensitively. Backend failure yields an empty list, never an error.
func (c *Client) Search(ctx context.Context, query string) []Quote {
	q := strings.TrimSpace(query)
	if q == "" {
		return []Quote{}
	}
	key := "search:" + strings.ToLower(q)
	if hit, ok := c.lists.Get(key); ok {
		return hit
	}

	var resp listResponse
	if err := c.post(ctx, endpointTradeSummary, map[string]string{}, &resp); err != nil {
		log.Printf("cse search error for %q: %v", q, err)
		return []Quote{}
	}

	lower := strings.ToLower(q)
	out := make([]Quote, 0, maxSearchResults)
	for _, item := range resp.Data {
		if len(out) == maxSearchResults {
			break
		}
		if !strings.Contains(strings.ToLower(item.Symbol), lower) &&
			!strings.Contains(strings.ToLower(item.SecurityName), lower) {
			continue
		}
		if mq, ok := mapQuote(item); ok {
			out = append(out, mq)
		}
	}
	c.lists.Set(key, out)
	return out
}

// TopMovers fetches gainers and losers concurrently and returns up to five of
// each, gainers first. Failure of one side still returns the other.
func (c *Client) TopMovers(ctx context.Context) []Quote {
	if hit, ok := c.lists.Get("movers"); ok {
		return hit
	}

	var gainers, losers listResponse
	var gErr, lErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		gErr = c.post(ctx, endpointTopGainers, map[string]string{}, &gainers)
	}()
	go func() {
		defer wg.Done()
		lErr = c.post(ctx, endpointTopLosers, map[string]string{}, &losers)
	}()
	wg.Wait()

	if gErr != nil {
		log.Printf("cse top gainers error: %v", gErr)
	}
	if lErr != nil {
		log.Printf("cse top losers error: %v", lErr)
	}

	movers := make([]Quote, 0, 2*maxMoversPerSide)
	movers = append(movers, mapTop(gainers.Data)...)
	movers = append(movers, mapTop(losers.Data)...)
	c.lists.Set("movers", movers)
	return movers
}

// ClearCache drops every cached quote and listing.
func (c *Client) ClearCache() {
	c.quotes.Clear()
	c.lists.Clear()
}

func (c *Client) post(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &APIError{Kind: KindUnknown, Endpoint: endpoint, Err: fmt.Errorf("marshal request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return &APIError{Kind: KindUnknown, Endpoint: endpoint, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: ClassifyErr(err), Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{Kind: ClassifyStatus(resp.StatusCode), Status: resp.StatusCode, Endpoint: endpoint}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{Kind: KindUnknown, Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// mapQuote normalizes a backend item. An item with neither symbol nor name
// carries no identity and maps to absent.
func mapQuote(info companyInfo) (Quote, bool) {
	if info.Symbol == "" && info.SecurityName == "" {
		return Quote{}, false
	}
	open := info.OpeningPrice
	if open == 0 {
		open = info.PreviousClose
	}
	updated := info.LastTradedTime
	if updated == "" {
		updated = time.Now().UTC().Format(time.RFC3339)
	}
	return sanitizeQuote(Quote{
		Symbol:        info.Symbol,
		Name:          info.SecurityName,
		Price:         info.LastTradedPrice,
		Currency:      "LKR",
		Change:        info.Change,
		ChangePercent: info.PercentageChange,
		Open:          open,
		High:          info.HighPrice,
		Low:           info.LowPrice,
		LastUpdated:   updated,
	}), true
}

// sanitizeQuote normalizes backend values that would break the Quote
// invariants: prices are never negative, and change and changePercent must
// carry the same sign (both zeroed when they disagree).
func sanitizeQuote(q Quote) Quote {
	if q.Price < 0 {
		q.Price = 0
	}
	if q.Open < 0 {
		q.Open = 0
	}
	if q.High < 0 {
		q.High = 0
	}
	if q.Low < 0 {
		q.Low = 0
	}
	if sign(q.Change) != sign(q.ChangePercent) {
		q.Change = 0
		q.ChangePercent = 0
	}
	return q
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func mapTop(items []companyInfo) []Quote {
	out := make([]Quote, 0, maxMoversPerSide)
	for _, item := range items {
		if len(out) == maxMoversPerSide {
			break
		}
		if q, ok := mapQuote(item); ok {
			out = append(out, q)
		}
	}
	return out
}
