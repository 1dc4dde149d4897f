package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/sony/gobreaker"

	"airq-forecast/internal/airq"
)

// CPCBSource fetches live PM2.5 records from the data.gov.in CPCB resource.
type CPCBSource struct {
	name       string
	baseURL    string
	resourceID string
	apiKey     string
	httpCfg    httpConfig
	circuit    *gobreaker.CircuitBreaker
}

// cpcbResourceID identifies the CPCB real-time air-quality resource on
// data.gov.in.
const cpcbResourceID = "3b01bcb8-0b14-4abf-b6f2-c1bfd384ba69"

func NewCPCBSource(client *http.Client, apiKey string) *CPCBSource {
	return &CPCBSource{
		name:       "cpcb",
		baseURL:    "https://api.data.gov.in/resource",
		resourceID: cpcbResourceID,
		apiKey:     apiKey,
		httpCfg:    defaultHTTPConfig(client),
		circuit:    newBreaker("cpcb"),
	}
}

func (s *CPCBSource) Name() string {
	return s.name
}

// Fetch pulls up to limit records and keeps the PM2.5 rows, normalized to
// the processed schema. apiKey overrides the configured key for this run.
func (s *CPCBSource) Fetch(ctx context.Context, limit int, apiKey string) ([]airq.Measurement, error) {
	key := apiKey
	if key == "" {
		key = s.apiKey
	}
	if key == "" {
		return nil, fmt.Errorf("cpcb api key is not configured")
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("api-key", key)
		values.Set("format", "json")
		values.Set("limit", strconv.Itoa(limit))

		u := fmt.Sprintf("%s/%s?%s", s.baseURL, s.resourceID, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Records []cpcbRecord `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode cpcb response: %w", err)
	}

	var out []airq.Measurement
	for _, rec := range payload.Records {
		m, ok := rec.toMeasurement()
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// cpcbRecord mirrors one entry of the CPCB resource; everything arrives as
// strings.
type cpcbRecord struct {
	Station     string `json:"station"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	LastUpdate  string `json:"last_update"`
	PollutantID string `json:"pollutant_id"`
	AvgValue    string `json:"avg_value"`
}

// toMeasurement filters and normalizes one record. Non-PM2.5 pollutants and
// rows with an unusable value or timestamp are dropped.
func (r cpcbRecord) toMeasurement() (airq.Measurement, bool) {
	pollutant := strings.ToUpper(strings.TrimSpace(r.PollutantID))
	if !strings.Contains(pollutant, "PM2.5") {
		return airq.Measurement{}, false
	}

	pm25, err := strconv.ParseFloat(strings.TrimSpace(r.AvgValue), 64)
	if err != nil || math.IsNaN(pm25) {
		return airq.Measurement{}, false
	}

	// CPCB timestamps are day-first local strings.
	ts, err := time.Parse("02-01-2006 15:04:05", strings.TrimSpace(r.LastUpdate))
	if err != nil {
		return airq.Measurement{}, false
	}

	country := r.Country
	if country == "" {
		country = "India"
	}

	return airq.Measurement{
		StationID:   StationID("CPCB", r.Station, r.City),
		StationName: r.Station,
		City:        r.City,
		Country:     country,
		Lat:         parseCoord(r.Latitude),
		Lon:         parseCoord(r.Longitude),
		Timestamp:   ts.UTC(),
		PM25:        pm25,
	}, true
}

// StationID derives a stable station identifier from the upstream station
// name and city. Upstreams have no stable id of their own, so the slug is
// the identity used across refreshes.
func StationID(prefix, stationName, city string) string {
	s := slug.Make(fmt.Sprintf("%s %s", strings.TrimSpace(stationName), strings.TrimSpace(city)))
	return fmt.Sprintf("%s_%s", prefix, s)
}

func parseCoord(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
