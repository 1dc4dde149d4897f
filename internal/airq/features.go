package airq

import (
	"errors"
	"math"
	"sort"
	"time"
)

// ErrNoHistory is returned when a station has no usable measurements.
var ErrNoHistory = errors.New("no measurements for station")

// Coalesce is the explicit missing-value policy: any feature that is still
// undefined after resampling defaults to 0.0 instead of reaching the model
// as NaN.
func Coalesce(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// BuildFeatures turns one station's history into a single feature row
// representing "now" plus the last observed timestamp.
//
// The history is sorted ascending, duplicate hours are collapsed by mean,
// and the series is resampled to exact hourly cadence with gaps
// forward-filled, so lag windows are never silently built across missing
// hours. Lags that reach past the start of the series coalesce to 0.
func BuildFeatures(history []Measurement) (FeatureRow, time.Time, error) {
	if len(history) == 0 {
		return FeatureRow{}, time.Time{}, ErrNoHistory
	}
	SortByTime(history)

	series, last, ok := resampleHourly(history)
	if !ok {
		return FeatureRow{}, time.Time{}, ErrNoHistory
	}

	var row FeatureRow
	n := len(series)

	for k := 1; k <= MaxLag; k++ {
		idx := n - 1 - k
		if idx >= 0 {
			row.Lags[k-1] = Coalesce(series[idx])
		}
	}

	// Trailing mean over the last 24 available hours, minimum window of 1.
	window := n
	if window > MaxLag {
		window = MaxLag
	}
	var sum float64
	for i := n - window; i < n; i++ {
		sum += Coalesce(series[i])
	}
	row.Rolling24Mean = sum / float64(window)

	row.Hour = last.Hour()
	row.DayOfWeek = pandasWeekday(last)

	// Coordinates come from the chronologically last record.
	tail := history[len(history)-1]
	row.Lat = Coalesce(tail.Lat)
	row.Lon = Coalesce(tail.Lon)

	return row, last, nil
}

// resampleHourly collapses the history onto an exact hourly grid: duplicate
// hours average, missing hours forward-fill from the previous hour. Returns
// the value series, the last grid timestamp, and false when nothing usable
// remains.
func resampleHourly(history []Measurement) ([]float64, time.Time, bool) {
	type bucket struct {
		sum   float64
		count int
	}

	buckets := make(map[int64]*bucket)
	var first, last time.Time

	for _, m := range history {
		if m.Timestamp.IsZero() {
			continue
		}
		ts := m.Timestamp.UTC().Truncate(time.Hour)
		if first.IsZero() || ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
		key := ts.Unix()
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}
		if !math.IsNaN(m.PM25) {
			b.sum += m.PM25
			b.count++
		}
	}

	if len(buckets) == 0 {
		return nil, time.Time{}, false
	}

	hours := int(last.Sub(first)/time.Hour) + 1
	series := make([]float64, 0, hours)
	carry := math.NaN()

	for ts := first; !ts.After(last); ts = ts.Add(time.Hour) {
		if b, ok := buckets[ts.Unix()]; ok && b.count > 0 {
			carry = b.sum / float64(b.count)
		}
		series = append(series, carry)
	}

	return series, last, true
}

// pandasWeekday maps Go's Sunday=0 weekday onto the Monday=0 convention the
// training features were generated with.
func pandasWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// SortByTime orders measurements chronologically in place.
func SortByTime(ms []Measurement) {
	sort.Slice(ms, func(i, j int) bool {
		return ms[i].Timestamp.Before(ms[j].Timestamp)
	})
}
