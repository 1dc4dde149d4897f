package airq_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airq-forecast/internal/airq"
)

func hourlyHistory(start time.Time, values ...float64) []airq.Measurement {
	ms := make([]airq.Measurement, len(values))
	for i, v := range values {
		ms[i] = airq.Measurement{
			StationID: "S1",
			City:      "Delhi",
			Lat:       28.6,
			Lon:       77.2,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			PM25:      v,
		}
	}
	return ms
}

func TestBuildFeaturesLagsAndRollingMean(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 30)
	for i := range values {
		values[i] = float64(i + 1) // 1..30
	}

	row, last, err := airq.BuildFeatures(hourlyHistory(start, values...))
	require.NoError(t, err)

	assert.Equal(t, start.Add(29*time.Hour), last)

	// lag_k is the value k hours before the last observation.
	assert.Equal(t, 29.0, row.Lags[0])
	assert.Equal(t, 28.0, row.Lags[1])
	assert.Equal(t, 6.0, row.Lags[23])

	// Trailing 24h mean includes the last value: mean(7..30).
	assert.InDelta(t, 18.5, row.Rolling24Mean, 1e-12)

	assert.Equal(t, 5, row.Hour) // 00:00 + 29h
	assert.Equal(t, 28.6, row.Lat)
	assert.Equal(t, 77.2, row.Lon)
}

func TestBuildFeaturesShortHistoryDefaultsToZero(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	row, _, err := airq.BuildFeatures(hourlyHistory(start, 10, 20, 30))
	require.NoError(t, err)

	assert.Equal(t, 20.0, row.Lags[0])
	assert.Equal(t, 10.0, row.Lags[1])
	for k := 2; k < airq.MaxLag; k++ {
		assert.Equal(t, 0.0, row.Lags[k], "lag_%d beyond the series start defaults to 0", k+1)
	}

	// Minimum window of 1 means a short series still has a defined mean.
	assert.InDelta(t, 20.0, row.Rolling24Mean, 1e-12)
}

func TestBuildFeaturesForwardFillsGaps(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ms := []airq.Measurement{
		{StationID: "S1", Timestamp: start, PM25: 10},
		{StationID: "S1", Timestamp: start.Add(1 * time.Hour), PM25: 20},
		// hours 2..4 missing
		{StationID: "S1", Timestamp: start.Add(5 * time.Hour), PM25: 50},
	}

	row, last, err := airq.BuildFeatures(ms)
	require.NoError(t, err)

	assert.Equal(t, start.Add(5*time.Hour), last)

	// Resampled series: 10, 20, 20, 20, 20, 50.
	assert.Equal(t, 20.0, row.Lags[0], "lag_1 is the forward-filled hour before the last")
	assert.Equal(t, 20.0, row.Lags[2])
	assert.Equal(t, 10.0, row.Lags[4])
	assert.InDelta(t, (10+20+20+20+20+50)/6.0, row.Rolling24Mean, 1e-12)
}

func TestBuildFeaturesCollapsesDuplicateHours(t *testing.T) {
	ts := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	ms := []airq.Measurement{
		{StationID: "S1", Timestamp: ts.Add(10 * time.Minute), PM25: 10},
		{StationID: "S1", Timestamp: ts.Add(40 * time.Minute), PM25: 30},
	}

	row, last, err := airq.BuildFeatures(ms)
	require.NoError(t, err)

	assert.Equal(t, ts, last, "timestamps floor to the hour")
	assert.InDelta(t, 20.0, row.Rolling24Mean, 1e-12, "duplicate hours average")
}

func TestBuildFeaturesUnsortedInput(t *testing.T) {
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	ms := []airq.Measurement{
		{StationID: "S1", Timestamp: start.Add(2 * time.Hour), PM25: 30},
		{StationID: "S1", Timestamp: start, PM25: 10},
		{StationID: "S1", Timestamp: start.Add(1 * time.Hour), PM25: 20},
	}

	row, last, err := airq.BuildFeatures(ms)
	require.NoError(t, err)

	assert.Equal(t, start.Add(2*time.Hour), last)
	assert.Equal(t, 20.0, row.Lags[0])
}

func TestBuildFeaturesPandasWeekday(t *testing.T) {
	// 2024-01-01 was a Monday; the training features use Monday=0.
	monday := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	row, _, err := airq.BuildFeatures(hourlyHistory(monday, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, row.DayOfWeek)

	sunday := time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC)
	row, _, err = airq.BuildFeatures(hourlyHistory(sunday, 5))
	require.NoError(t, err)
	assert.Equal(t, 6, row.DayOfWeek)
}

func TestBuildFeaturesMissingCoordinatesDefaultToZero(t *testing.T) {
	ms := hourlyHistory(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 10, 20)
	for i := range ms {
		ms[i].Lat = math.NaN()
		ms[i].Lon = math.NaN()
	}

	row, _, err := airq.BuildFeatures(ms)
	require.NoError(t, err)
	assert.Equal(t, 0.0, row.Lat)
	assert.Equal(t, 0.0, row.Lon)
}

func TestBuildFeaturesEmptyHistory(t *testing.T) {
	_, _, err := airq.BuildFeatures(nil)
	assert.ErrorIs(t, err, airq.ErrNoHistory)
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 0.0, airq.Coalesce(math.NaN()))
	assert.Equal(t, 3.5, airq.Coalesce(3.5))
	assert.Equal(t, -1.0, airq.Coalesce(-1.0))
}

func TestFeatureRowVectorOrder(t *testing.T) {
	row := airq.FeatureRow{
		Rolling24Mean: 99,
		Hour:          7,
		DayOfWeek:     3,
		Lat:           1.5,
		Lon:           2.5,
	}
	for i := range row.Lags {
		row.Lags[i] = float64(i + 1)
	}

	v := row.Vector()
	require.Len(t, v, airq.MaxLag+5)
	assert.Equal(t, 1.0, v[0], "lag_1 leads")
	assert.Equal(t, 24.0, v[23], "lag_24 closes the lag block")
	assert.Equal(t, []float64{99, 7, 3, 1.5, 2.5}, v[24:])
}
