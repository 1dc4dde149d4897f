package airq_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airq-forecast/internal/airq"
)

// fakeDataset serves canned per-station histories.
type fakeDataset struct {
	histories map[string][]airq.Measurement
	cities    map[string][]string
	err       error
}

func (f *fakeDataset) StationHistory(stationID string) ([]airq.Measurement, error) {
	if f.err != nil {
		return nil, f.err
	}
	h, ok := f.histories[stationID]
	if !ok {
		return nil, errors.New("station_id not found in processed data")
	}
	return h, nil
}

func (f *fakeDataset) Stations(limit int) ([]airq.Station, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []airq.Station
	for id := range f.histories {
		out = append(out, airq.Station{StationID: id})
	}
	return out, nil
}

func (f *fakeDataset) CityStations(city string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids, ok := f.cities[city]
	if !ok {
		return nil, errors.New("city not found in processed data")
	}
	return ids, nil
}

// fixedLoader hands out the same predictor for every request.
type fixedLoader struct {
	p   airq.Predictor
	err error
}

func (l fixedLoader) Load() (airq.Predictor, error) {
	return l.p, l.err
}

func steadyHistory(stationID string, lat float64, last time.Time, value float64) []airq.Measurement {
	start := last.Add(-29 * time.Hour)
	ms := make([]airq.Measurement, 30)
	for i := range ms {
		ms[i] = airq.Measurement{
			StationID: stationID,
			City:      "Delhi",
			Lat:       lat,
			Lon:       77.2,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			PM25:      value,
		}
	}
	return ms
}

func TestPredictStationTimestampsAndValues(t *testing.T) {
	last := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	data := &fakeDataset{histories: map[string][]airq.Measurement{
		"S1": steadyHistory("S1", 28.6, last, 50),
	}}
	svc := airq.NewService(data, fixedLoader{p: constantPredictor(55)})

	res, err := svc.PredictStation("S1", 3)
	require.NoError(t, err)

	assert.Equal(t, "S1", res.StationID)
	assert.Equal(t, last, res.LastUpdated)
	require.Len(t, res.Predictions, 3)

	for i, step := range res.Predictions {
		assert.Equal(t, 55.0, step.PM25)
		assert.Equal(t, last.Add(time.Duration(i+1)*time.Hour), step.Timestamp)
	}
	// Hours 11, 12, 13 follow an observation at hour 10.
	assert.Equal(t, 11, res.Predictions[0].Timestamp.Hour())
	assert.Equal(t, 13, res.Predictions[2].Timestamp.Hour())
}

func TestPredictStationPropagatesModelError(t *testing.T) {
	last := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	data := &fakeDataset{histories: map[string][]airq.Measurement{
		"S1": steadyHistory("S1", 28.6, last, 50),
	}}
	wantErr := errors.New("model not found at models/model_global.model")
	svc := airq.NewService(data, fixedLoader{err: wantErr})

	_, err := svc.PredictStation("S1", 3)
	assert.ErrorIs(t, err, wantErr)
}

func TestPredictStationPropagatesDatasetError(t *testing.T) {
	wantErr := errors.New("processed dataset not found")
	svc := airq.NewService(&fakeDataset{err: wantErr}, fixedLoader{p: constantPredictor(1)})

	_, err := svc.PredictStation("S1", 3)
	assert.ErrorIs(t, err, wantErr)
}

func TestPredictCityFanOutIsolation(t *testing.T) {
	last := time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)
	data := &fakeDataset{
		histories: map[string][]airq.Measurement{
			"A": steadyHistory("A", 10, last, 40),
			"B": steadyHistory("B", 99, last.Add(time.Hour), 40), // poisoned station
			"C": steadyHistory("C", 30, last, 40),
		},
		cities: map[string][]string{"Delhi": {"A", "B", "C"}},
	}

	// The predictor blows up only for station B, identified by its latitude.
	p := airq.PredictorFunc(func(row airq.FeatureRow) (float64, error) {
		if row.Lat == 99 {
			return 0, errors.New("bad station")
		}
		return 12, nil
	})
	svc := airq.NewService(data, fixedLoader{p: p})

	res, err := svc.PredictCity("Delhi", 4)
	require.NoError(t, err, "one failing station must not abort the city request")

	require.Len(t, res.Stations, 3)
	assert.Equal(t, "A", res.Stations[0].StationID)
	assert.Equal(t, "B", res.Stations[1].StationID)
	assert.Equal(t, "C", res.Stations[2].StationID)

	assert.Empty(t, res.Stations[0].Error)
	assert.Len(t, res.Stations[0].Predictions, 4)
	assert.Empty(t, res.Stations[2].Error)
	assert.Len(t, res.Stations[2].Predictions, 4)

	assert.NotEmpty(t, res.Stations[1].Error)
	assert.Empty(t, res.Stations[1].Predictions)

	// City last_updated is the max over the successful stations.
	assert.Equal(t, last, res.LastUpdated)
}

func TestPredictCityUnknownCity(t *testing.T) {
	svc := airq.NewService(&fakeDataset{cities: map[string][]string{}}, fixedLoader{p: constantPredictor(1)})

	_, err := svc.PredictCity("Atlantis", 24)
	assert.Error(t, err)
}
