package airq

import (
	"fmt"
)

// Domain-valid PM2.5 bounds. Every raw model output is clamped into this
// range before it is emitted or fed back as a lag; this bounds model
// extrapolation error and is not configurable.
const (
	MinPM25 = 0.0
	MaxPM25 = 1000.0
)

// Predictor produces one scalar PM2.5 forecast from one feature row.
// Implementations must be deterministic for identical rows and safe for
// concurrent use.
type Predictor interface {
	Predict(row FeatureRow) (float64, error)
}

// PredictorFunc adapts a plain function to the Predictor interface.
type PredictorFunc func(row FeatureRow) (float64, error)

func (f PredictorFunc) Predict(row FeatureRow) (float64, error) {
	return f(row)
}

// PredictionError reports a predictor failure at a specific step of a
// trajectory. A failed step aborts the whole trajectory; no partial results
// are returned.
type PredictionError struct {
	Step int
	Err  error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed at step %d: %v", e.Step, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// Forecast walks the predictor forward over the requested horizon,
// synthesizing each next input from the previous prediction:
//
//   - the clamped prediction becomes lag_1, every other lag shifts one hour
//     into the past (lag_24's old value is discarded)
//   - the rolling mean follows the recurrence (mean*23 + prediction)/24,
//     an approximation of the sliding window rather than a recompute
//   - the hour advances mod 24
//
// DayOfWeek is not advanced between steps, so it goes stale for horizons
// that cross midnight; it matches the behaviour the model was trained
// against and changing it would change forecast semantics.
//
// Exactly horizon values are produced, every one inside [MinPM25, MaxPM25].
func Forecast(p Predictor, row FeatureRow, horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("horizon must be at least 1, got %d", horizon)
	}

	cur := row
	out := make([]float64, 0, horizon)

	for step := 1; step <= horizon; step++ {
		raw, err := p.Predict(cur)
		if err != nil {
			return nil, &PredictionError{Step: step, Err: err}
		}

		pred := clamp(raw)
		out = append(out, pred)

		for k := MaxLag - 1; k >= 1; k-- {
			cur.Lags[k] = cur.Lags[k-1]
		}
		cur.Lags[0] = pred

		cur.Rolling24Mean = (cur.Rolling24Mean*23 + pred) / 24
		cur.Hour = (cur.Hour + 1) % 24
	}

	return out, nil
}

func clamp(v float64) float64 {
	if v < MinPM25 {
		return MinPM25
	}
	if v > MaxPM25 {
		return MaxPM25
	}
	return v
}
