// Package kalshi reads market listings from the Kalshi trade API. Kalshi
// quotes prices in cents.
package kalshi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// maxBody bounds how much of a response is read.
const maxBody = 8 << 20

// Client is a read-only client for the Kalshi trade API.
type Client struct {
	baseURL string
	keyID   string
	signer  *signer
	http    *http.Client
}

// NewClient targets baseURL, e.g.
// "https://api.elections.kalshi.com/trade-api/v2". Requests go out unsigned
// until SetRSAPrivateKey is called; market data endpoints are public.
func NewClient(baseURL, apiKeyID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		keyID:   apiKeyID,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetRSAPrivateKey enables request signing with a PEM key.
func (c *Client) SetRSAPrivateKey(pemBytes []byte) error {
	key, err := parseRSAKey(pemBytes)
	if err != nil {
		return err
	}
	c.signer = &signer{keyID: c.keyID, key: key, now: time.Now}
	return nil
}

// MarketsPage is one page of the markets listing. An empty Cursor means the
// last page was reached.
type MarketsPage struct {
	Markets []KalshiMarket `json:"markets"`
	Cursor  string         `json:"cursor"`
}

// GetMarkets returns one page of markets. status ("open", "closed",
// "settled") may be empty.
func (c *Client) GetMarkets(ctx context.Context, limit int, cursor, status string) (MarketsPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if status != "" {
		q.Set("status", status)
	}

	var page MarketsPage
	if err := c.get(ctx, "/markets", q, &page); err != nil {
		return MarketsPage{}, fmt.Errorf("kalshi: list markets: %w", err)
	}
	return page, nil
}

// GetMarket returns one market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (KalshiMarket, error) {
	var resp struct {
		Market KalshiMarket `json:"market"`
	}
	if err := c.get(ctx, "/markets/"+url.PathEscape(ticker), nil, &resp); err != nil {
		return KalshiMarket{}, fmt.Errorf("kalshi: market %s: %w", ticker, err)
	}
	return resp.Market, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	target := c.baseURL + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.signer != nil {
		if err := c.signer.sign(req); err != nil {
			return err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return statusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

// statusError maps HTTP failures onto the domain sentinels the pipeline
// branches on.
func statusError(code int, body []byte) error {
	var apiErr KalshiErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	detail := apiErr.Message
	if apiErr.Code != "" {
		detail += " (" + apiErr.Code + ")"
	}

	var sentinel error
	switch code {
	case http.StatusNotFound:
		sentinel = domain.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		sentinel = domain.ErrUnauthorized
	case http.StatusTooManyRequests:
		sentinel = domain.ErrRateLimited
	default:
		return fmt.Errorf("HTTP %d: %s", code, detail)
	}
	return fmt.Errorf("%w: %s", sentinel, detail)
}
