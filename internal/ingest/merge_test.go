package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airq-forecast/internal/airq"
)

func m(station string, ts time.Time, pm25 float64) airq.Measurement {
	return airq.Measurement{StationID: station, Timestamp: ts, PM25: pm25}
}

func TestMergeDedupesByStationAndHourKeepingNewest(t *testing.T) {
	h8 := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	h9 := h8.Add(time.Hour)

	history := []airq.Measurement{
		m("A", h8, 100),
		m("A", h9, 110),
	}
	fetched := []airq.Measurement{
		m("A", h9, 115), // re-reported hour: fetched row wins
		m("A", h9.Add(time.Hour), 120),
	}

	merged := Merge(history, fetched)
	require.Len(t, merged, 3)

	assert.Equal(t, 100.0, merged[0].PM25)
	assert.Equal(t, 115.0, merged[1].PM25)
	assert.Equal(t, 120.0, merged[2].PM25)
}

func TestMergeFloorsTimestampsToHour(t *testing.T) {
	ts := time.Date(2025, 3, 10, 8, 45, 12, 0, time.UTC)

	merged := Merge(nil, []airq.Measurement{m("A", ts, 42)})
	require.Len(t, merged, 1)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), merged[0].Timestamp)
}

func TestMergeSortsByStationThenTime(t *testing.T) {
	h := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	merged := Merge(nil, []airq.Measurement{
		m("B", h, 1),
		m("A", h.Add(time.Hour), 2),
		m("A", h, 3),
	})

	require.Len(t, merged, 3)
	assert.Equal(t, "A", merged[0].StationID)
	assert.Equal(t, h, merged[0].Timestamp)
	assert.Equal(t, "A", merged[1].StationID)
	assert.Equal(t, "B", merged[2].StationID)
}
