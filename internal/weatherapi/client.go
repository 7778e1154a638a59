// Package weatherapi fetches hourly historical weather from the
// Open-Meteo archive API for ingestion into the snapshot store.
package weatherapi

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

	"weathertrader/types"
)

const (
	defaultBase = "https://archive-api.open-meteo.com"

	// Open-Meteo allows 10k calls/day on the free tier; a few per
	// second is plenty for backfills.
	archiveRatePerSec = 4

	hourlyFields = "temperature_2m,relative_humidity_2m,wind_speed_10m,precipitation"
)

// Client is the weather archive HTTP client with rate limiting.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

func NewClient(base string) *Client {
	if base == "" {
		base = defaultBase
	}
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(archiveRatePerSec, 2),
	}
}

type archiveResponse struct {
	Hourly struct {
		Time             []string  `json:"time"`
		Temperature2m    []float64 `json:"temperature_2m"`
		RelativeHumidity []float64 `json:"relative_humidity_2m"`
		WindSpeed10m     []float64 `json:"wind_speed_10m"`
		Precipitation    []float64 `json:"precipitation"`
	} `json:"hourly"`
}

// FetchHourly returns hourly readings for the coordinates over
// [start, end], labelled with the given location name.
func (c *Client) FetchHourly(ctx context.Context, location string, lat, lon float64, start, end time.Time) ([]types.WeatherSnapshot, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	q.Set("start_date", start.UTC().Format("2006-01-02"))
	q.Set("end_date", end.UTC().Format("2006-01-02"))
	q.Set("hourly", hourlyFields)
	q.Set("timezone", "UTC")

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/archive?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weatherapi.FetchHourly %s: %w", location, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("weatherapi.FetchHourly %s: read: %w", location, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weatherapi.FetchHourly %s: status %d: %s", location, resp.StatusCode, body)
	}

	var ar archiveResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, fmt.Errorf("weatherapi.FetchHourly %s: parse: %w", location, err)
	}

	snaps := make([]types.WeatherSnapshot, 0, len(ar.Hourly.Time))
	for i, raw := range ar.Hourly.Time {
		ts, err := time.Parse("2006-01-02T15:04", raw)
		if err != nil {
			return nil, fmt.Errorf("weatherapi.FetchHourly %s: timestamp %q: %w", location, raw, err)
		}
		snap := types.WeatherSnapshot{
			Timestamp: ts.UTC(),
			Location:  location,
		}
		// The API returns parallel arrays; guard each in case a field
		// is missing from the response.
		if i < len(ar.Hourly.Temperature2m) {
			snap.TemperatureC = ar.Hourly.Temperature2m[i]
		}
		if i < len(ar.Hourly.RelativeHumidity) {
			snap.Humidity = ar.Hourly.RelativeHumidity[i]
		}
		if i < len(ar.Hourly.WindSpeed10m) {
			snap.WindSpeedKph = ar.Hourly.WindSpeed10m[i]
		}
		if i < len(ar.Hourly.Precipitation) {
			snap.PrecipitationMM = ar.Hourly.Precipitation[i]
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}
