package ingest

import (
	"math"

	"github.com/kelvins/geocoder"
	"github.com/rs/zerolog/log"

	"airq-forecast/internal/airq"
)

// Augmenter backfills missing station coordinates by geocoding the station
// address. Upstreams occasionally ship stations without latitude/longitude;
// those features would otherwise coalesce to 0 at prediction time.
type Augmenter struct{}

// NewAugmenter configures the geocoding backend with the given API key.
func NewAugmenter(apiKey string) *Augmenter {
	geocoder.ApiKey = apiKey
	return &Augmenter{}
}

// Fill geocodes every station that is missing coordinates and writes the
// result into the measurements in place. Lookups are cached per station and
// failures skip the station without failing the refresh. Returns the number
// of stations filled.
func (a *Augmenter) Fill(ms []airq.Measurement) int {
	located := make(map[string][2]float64)
	failed := make(map[string]bool)
	filled := 0

	for i := range ms {
		m := &ms[i]
		if !math.IsNaN(m.Lat) && !math.IsNaN(m.Lon) {
			continue
		}
		if failed[m.StationID] {
			continue
		}

		if c, ok := located[m.StationID]; ok {
			m.Lat, m.Lon = c[0], c[1]
			continue
		}

		addr := geocoder.Address{
			District: m.StationName,
			City:     m.City,
			Country:  m.Country,
		}
		loc, err := geocoder.Geocoding(addr)
		if err != nil {
			log.Warn().Str("station_id", m.StationID).Err(err).Msg("geocoding failed")
			failed[m.StationID] = true
			continue
		}

		located[m.StationID] = [2]float64{loc.Latitude, loc.Longitude}
		m.Lat, m.Lon = loc.Latitude, loc.Longitude
		filled++
	}

	return filled
}
