package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"airq-forecast/internal/airq"
)

// OpenAQSource fetches PM2.5 measurements from the OpenAQ v3 API. OpenAQ
// needs no API key; apiKey is accepted for interface symmetry and sent as
// the X-API-Key header when present.
type OpenAQSource struct {
	name     string
	baseURL  string
	apiKey   string
	pageSize int
	httpCfg  httpConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewOpenAQSource(client *http.Client, apiKey string) *OpenAQSource {
	return &OpenAQSource{
		name:     "openaq",
		baseURL:  "https://api.openaq.org/v3/measurements",
		apiKey:   apiKey,
		pageSize: 1000,
		httpCfg:  defaultHTTPConfig(client),
		circuit:  newBreaker("openaq"),
	}
}

func (s *OpenAQSource) Name() string {
	return s.name
}

// Fetch pages through measurements until limit rows are collected or a page
// comes back empty.
func (s *OpenAQSource) Fetch(ctx context.Context, limit int, apiKey string) ([]airq.Measurement, error) {
	key := apiKey
	if key == "" {
		key = s.apiKey
	}

	var out []airq.Measurement
	for page := 1; len(out) < limit; page++ {
		size := s.pageSize
		if remaining := limit - len(out); remaining < size {
			size = remaining
		}

		results, err := s.fetchPage(ctx, page, size, key)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			break
		}

		for _, r := range results {
			m, ok := r.toMeasurement()
			if !ok {
				continue
			}
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *OpenAQSource) fetchPage(ctx context.Context, page, size int, key string) ([]openaqResult, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("parameter", "pm25")
		values.Set("limit", strconv.Itoa(size))
		values.Set("page", strconv.Itoa(page))
		values.Set("sort", "desc")

		u := fmt.Sprintf("%s?%s", s.baseURL, values.Encode())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		return req, nil
	}

	resp, err := doWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []openaqResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode openaq response: %w", err)
	}
	return payload.Results, nil
}

type openaqResult struct {
	Location    string `json:"location"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Coordinates struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"coordinates"`
	Date struct {
		UTC string `json:"utc"`
	} `json:"date"`
	Value *float64 `json:"value"`
}

func (r openaqResult) toMeasurement() (airq.Measurement, bool) {
	if r.Location == "" || r.Value == nil {
		return airq.Measurement{}, false
	}
	ts, err := time.Parse(time.RFC3339, r.Date.UTC)
	if err != nil {
		return airq.Measurement{}, false
	}

	lat, lon := math.NaN(), math.NaN()
	if r.Coordinates.Latitude != nil {
		lat = *r.Coordinates.Latitude
	}
	if r.Coordinates.Longitude != nil {
		lon = *r.Coordinates.Longitude
	}

	return airq.Measurement{
		StationID:   StationID("OPENAQ", r.Location, r.City),
		StationName: r.Location,
		City:        r.City,
		Country:     r.Country,
		Lat:         lat,
		Lon:         lon,
		Timestamp:   ts.UTC(),
		PM25:        *r.Value,
	}, true
}
