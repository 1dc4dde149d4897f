package airq

import (
	"time"
)

// MaxLag is the number of hourly lag features the model was trained with.
const MaxLag = 24

// Measurement is one station-level PM2.5 observation from the processed
// dataset. Timestamps are UTC and hourly-aligned after ingestion.
type Measurement struct {
	StationID   string    `json:"station_id"`
	StationName string    `json:"station_name"`
	City        string    `json:"city"`
	Country     string    `json:"country"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Timestamp   time.Time `json:"datetime_utc"`
	PM25        float64   `json:"pm25"` // NaN when the upstream value is missing
}

// Station is the distinct metadata view of a station as exposed by the API.
type Station struct {
	StationID   string  `json:"station_id"`
	StationName string  `json:"station_name"`
	City        string  `json:"city"`
	Country     string  `json:"country"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// FeatureRow is one model input snapshot for a (station, instant) pair.
//
// The flattened column order is the binding contract with the trained
// regressor; it must match the order used at training time exactly. No
// schema check happens at inference time, so a mismatch would silently
// produce nonsense predictions.
type FeatureRow struct {
	// Lags[0] is lag_1 (the most recent hour), Lags[23] is lag_24.
	Lags          [MaxLag]float64
	Rolling24Mean float64
	Hour          int // 0-23, UTC
	DayOfWeek     int // 0-6, Monday=0 (pandas convention, fixed at training time)
	Lat           float64
	Lon           float64
}

// Vector flattens the row in training column order:
// lag_1..lag_24, rolling_24_mean, hour, dayofweek, lat, lon.
func (f *FeatureRow) Vector() []float64 {
	v := make([]float64, 0, MaxLag+5)
	v = append(v, f.Lags[:]...)
	v = append(v,
		f.Rolling24Mean,
		float64(f.Hour),
		float64(f.DayOfWeek),
		f.Lat,
		f.Lon,
	)
	return v
}

// ForecastStep is one predicted hour.
type ForecastStep struct {
	Timestamp time.Time `json:"timestamp"`
	PM25      float64   `json:"pm25"`
}

// StationForecast is the full forecast response for one station.
type StationForecast struct {
	StationID   string         `json:"station_id"`
	LastUpdated time.Time      `json:"last_updated"`
	Predictions []ForecastStep `json:"predictions"`
}

// CityEntry is one station's outcome inside a city-wide forecast. Exactly
// one of Predictions or Error is populated: a station that fails never
// aborts the other stations in the same city.
type CityEntry struct {
	StationID   string         `json:"station_id"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
	Predictions []ForecastStep `json:"predictions,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// CityForecast is the fan-out response for every station observed in a city.
type CityForecast struct {
	City        string      `json:"city"`
	LastUpdated time.Time   `json:"last_updated"`
	Stations    []CityEntry `json:"stations"`
}
