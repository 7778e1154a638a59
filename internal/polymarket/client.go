// Package polymarket fetches historical prices from the Polymarket
// CLOB API for ingestion into the snapshot store.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultCLOBBase = "https://clob.polymarket.com"

	// Stay well under the documented CLOB limits.
	clobRatePerSec = 20

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is the Polymarket HTTP client with rate limiting and retries.
type Client struct {
	http     *http.Client
	clobBase string
	limiter  *rate.Limiter
}

// NewClient creates a Client for the given base URL. Empty means the
// production CLOB.
func NewClient(clobBase string) *Client {
	if clobBase == "" {
		clobBase = defaultCLOBBase
	}
	return &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		clobBase: clobBase,
		limiter:  rate.NewLimiter(clobRatePerSec, 5),
	}
}

// PricePoint is one (timestamp, price) sample from the prices-history
// endpoint.
type PricePoint struct {
	Time  time.Time
	Price float64
}

type pricesHistoryResponse struct {
	History []struct {
		T int64   `json:"t"`
		P float64 `json:"p"`
	} `json:"history"`
}

// FetchPriceHistory returns the price series for one CLOB token in
// [start, end] at the given fidelity (sample spacing in minutes).
func (c *Client) FetchPriceHistory(ctx context.Context, tokenID string, start, end time.Time, fidelityMinutes int) ([]PricePoint, error) {
	q := url.Values{}
	q.Set("market", tokenID)
	q.Set("startTs", strconv.FormatInt(start.Unix(), 10))
	q.Set("endTs", strconv.FormatInt(end.Unix(), 10))
	q.Set("fidelity", strconv.Itoa(fidelityMinutes))

	var resp pricesHistoryResponse
	if err := c.get(ctx, c.clobBase+"/prices-history?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("polymarket.FetchPriceHistory %s: %w", tokenID, err)
	}

	points := make([]PricePoint, 0, len(resp.History))
	for _, h := range resp.History {
		points = append(points, PricePoint{Time: time.Unix(h.T, 0).UTC(), Price: h.P})
	}
	return points, nil
}

// get performs a rate-limited GET with retries on 429/5xx.
func (c *Client) get(ctx context.Context, u string, out any) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = readErr
			case resp.StatusCode == http.StatusOK:
				return json.Unmarshal(body, out)
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = fmt.Errorf("status %d", resp.StatusCode)
			default:
				return fmt.Errorf("status %d: %s", resp.StatusCode, body)
			}
		}

		wait := baseRetryWait << attempt
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("after %d retries: %w", maxRetries, lastErr)
}
