// Package model loads the trained PM2.5 regressor. The serving contract is
// an XGBoost booster dump (Booster.save_model output) under the model
// directory; it is opened read-only at prediction time and never retrained
// inside the serving path.
package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitryikh/leaves"

	"airq-forecast/internal/airq"
)

// ModelFileName is the booster dump the training step exports.
const ModelFileName = "model_global.model"

// ErrModelMissing is returned when no trained model exists at the expected
// path. Train a model first (see train/).
var ErrModelMissing = errors.New("model not found")

// XGBPredictor wraps a loaded XGBoost ensemble behind the airq.Predictor
// contract. The ensemble is immutable after load and safe for concurrent
// prediction.
type XGBPredictor struct {
	ensemble *leaves.Ensemble
}

// Predict evaluates the ensemble on one flattened feature row.
func (p *XGBPredictor) Predict(row airq.FeatureRow) (float64, error) {
	return p.ensemble.PredictSingle(row.Vector(), 0), nil
}

// Loader opens the model from a directory. It satisfies
// airq.PredictorLoader and is called once per forecast request.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	return &Loader{dir: dir}
}

// Load reads the booster dump. A missing file is a precondition failure
// reported with the expected path so the operator knows which upstream step
// to run.
func (l *Loader) Load() (airq.Predictor, error) {
	path := filepath.Join(l.dir, ModelFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s; train a model first", ErrModelMissing, path)
		}
		return nil, fmt.Errorf("stat model file: %w", err)
	}

	ensemble, err := leaves.XGEnsembleFromFile(path, true)
	if err != nil {
		return nil, fmt.Errorf("load model from %s: %w", path, err)
	}
	return &XGBPredictor{ensemble: ensemble}, nil
}
