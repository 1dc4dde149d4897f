package airq

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Dataset is the read-only view of the processed dataset the service needs.
// Implementations report unknown identifiers and a missing dataset file
// through sentinel errors the API boundary can translate.
type Dataset interface {
	// StationHistory returns every measurement for a station, or a
	// not-found error when the station has no records.
	StationHistory(stationID string) ([]Measurement, error)
	// Stations returns up to limit distinct station metadata rows.
	Stations(limit int) ([]Station, error)
	// CityStations resolves a city name (case-insensitive exact match) to
	// the distinct station ids observed for it.
	CityStations(city string) ([]string, error)
}

// PredictorLoader opens the trained model. It is called per request: the
// model file is read-only at prediction time and nothing is cached between
// requests.
type PredictorLoader interface {
	Load() (Predictor, error)
}

// Service wires the dataset, the feature builder, and the recursive
// forecaster into the station- and city-level operations the API exposes.
type Service struct {
	data   Dataset
	models PredictorLoader
}

func NewService(data Dataset, models PredictorLoader) *Service {
	return &Service{data: data, models: models}
}

// Stations lists distinct station metadata.
func (s *Service) Stations(limit int) ([]Station, error) {
	return s.data.Stations(limit)
}

// PredictStation produces a multi-step forecast for one station. Forecast
// timestamps are derived from the last observed timestamp plus one hour per
// step.
func (s *Service) PredictStation(stationID string, horizon int) (StationForecast, error) {
	history, err := s.data.StationHistory(stationID)
	if err != nil {
		return StationForecast{}, err
	}

	predictor, err := s.models.Load()
	if err != nil {
		return StationForecast{}, err
	}

	row, lastTS, err := BuildFeatures(history)
	if err != nil {
		return StationForecast{}, err
	}

	preds, err := Forecast(predictor, row, horizon)
	if err != nil {
		return StationForecast{}, err
	}

	steps := make([]ForecastStep, len(preds))
	for i, p := range preds {
		steps[i] = ForecastStep{
			Timestamp: lastTS.Add(time.Duration(i+1) * time.Hour),
			PM25:      p,
		}
	}

	return StationForecast{
		StationID:   stationID,
		LastUpdated: lastTS,
		Predictions: steps,
	}, nil
}

// PredictCity fans the single-station forecast out over every station
// observed for the city. Stations run concurrently; a failing station is
// reported inline as an error entry and never aborts the others.
func (s *Service) PredictCity(city string, horizon int) (CityForecast, error) {
	stationIDs, err := s.data.CityStations(city)
	if err != nil {
		return CityForecast{}, err
	}

	entries := make([]CityEntry, len(stationIDs))

	var wg sync.WaitGroup
	for i, sid := range stationIDs {
		wg.Add(1)
		go func(i int, sid string) {
			defer wg.Done()

			res, err := s.PredictStation(sid, horizon)
			if err != nil {
				log.Warn().Str("city", city).Str("station_id", sid).Err(err).
					Msg("station forecast failed inside city fan-out")
				entries[i] = CityEntry{StationID: sid, Error: err.Error()}
				return
			}

			last := res.LastUpdated
			entries[i] = CityEntry{
				StationID:   sid,
				LastUpdated: &last,
				Predictions: res.Predictions,
			}
		}(i, sid)
	}
	wg.Wait()

	var lastUpdated time.Time
	for _, e := range entries {
		if e.LastUpdated != nil && e.LastUpdated.After(lastUpdated) {
			lastUpdated = *e.LastUpdated
		}
	}
	if lastUpdated.IsZero() {
		lastUpdated = time.Now().UTC()
	}

	return CityForecast{
		City:        city,
		LastUpdated: lastUpdated,
		Stations:    entries,
	}, nil
}
