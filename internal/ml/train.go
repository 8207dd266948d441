package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"erosion-platform/internal/models"
)

// Training constants. The fixed seed keeps every run reproducible.
const (
	MinTrainingExamples = 10
	TrainSplitRatio     = 0.8
	TrainingSeed        = 42
)

var (
	// ErrInsufficientData means too few labeled examples exist to train.
	ErrInsufficientData = errors.New("insufficient training data")

	// ErrNoActiveModel means no model artifact is currently activated.
	ErrNoActiveModel = errors.New("no active model")

	// ErrModelLoadFailure means a persisted artifact could not be decoded.
	ErrModelLoadFailure = errors.New("model load failure")
)

// Regressor is a trained erosion-rate model.
type Regressor interface {
	Predict(x []float64) (value float64, interval [2]float64, confidence float64, err error)
}

// TrainingSet is a labeled feature matrix. Y holds erosion rates in
// meters per year.
type TrainingSet struct {
	X            [][]float64
	Y            []float64
	FeatureNames []string
}

// Len returns the number of examples.
func (s *TrainingSet) Len() int {
	return len(s.Y)
}

// Split shuffles the set with the training seed and cuts it into
// train and test partitions.
func (s *TrainingSet) Split() (train, test *TrainingSet) {
	n := s.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(TrainingSeed))
	rng.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	cut := int(float64(n) * TrainSplitRatio)
	train = &TrainingSet{FeatureNames: s.FeatureNames}
	test = &TrainingSet{FeatureNames: s.FeatureNames}
	for i, j := range idx {
		if i < cut {
			train.X = append(train.X, s.X[j])
			train.Y = append(train.Y, s.Y[j])
		} else {
			test.X = append(test.X, s.X[j])
			test.Y = append(test.Y, s.Y[j])
		}
	}
	return train, test
}

// Evaluation holds held-out metrics for one trained model.
type Evaluation struct {
	R2  float64 `json:"r2"`
	MSE float64 `json:"mse"`
}

// Evaluate computes R-squared and mean squared error on a test set.
func Evaluate(m Regressor, test *TrainingSet) (Evaluation, error) {
	if test.Len() == 0 {
		return Evaluation{}, errors.New("empty test set")
	}

	var ssRes float64
	for i, x := range test.X {
		pred, _, _, err := m.Predict(x)
		if err != nil {
			return Evaluation{}, err
		}
		d := test.Y[i] - pred
		ssRes += d * d
	}

	yMean := mean(test.Y)
	var ssTot float64
	for _, y := range test.Y {
		d := y - yMean
		ssTot += d * d
	}

	ev := Evaluation{MSE: ssRes / float64(test.Len())}
	if ssTot == 0 {
		ev.R2 = 0
	} else {
		ev.R2 = 1 - ssRes/ssTot
	}
	return ev, nil
}

// MarshalParameters serializes a trained model for artifact storage.
func MarshalParameters(m Regressor) (json.RawMessage, error) {
	return json.Marshal(m)
}

// UnmarshalArtifact restores the regressor persisted in a model
// artifact. The artifact's stored feature list must match the current
// vector layout; a model trained on a different layout must not be fed.
func UnmarshalArtifact(artifact *models.ModelArtifact) (Regressor, error) {
	if err := validateFeatureNames(artifact.FeatureNames); err != nil {
		return nil, err
	}

	switch artifact.Algorithm {
	case models.AlgorithmRandomForest:
		var f RandomForest
		if err := json.Unmarshal(artifact.Parameters, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelLoadFailure, err)
		}
		if len(f.Trees) == 0 {
			return nil, fmt.Errorf("%w: artifact has no trees", ErrModelLoadFailure)
		}
		return &f, nil
	case models.AlgorithmLinearRegression:
		var l LinearRegression
		if err := json.Unmarshal(artifact.Parameters, &l); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelLoadFailure, err)
		}
		if len(l.Weights) == 0 {
			return nil, fmt.Errorf("%w: artifact has no weights", ErrModelLoadFailure)
		}
		return &l, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrModelLoadFailure, artifact.Algorithm)
	}
}

func validateFeatureNames(stored []string) error {
	current := FeatureNames()
	if len(stored) != len(current) {
		return fmt.Errorf("%w: artifact has %d features, current layout has %d",
			ErrModelLoadFailure, len(stored), len(current))
	}
	for i, name := range stored {
		if name != current[i] {
			return fmt.Errorf("%w: feature %d is %q, current layout has %q",
				ErrModelLoadFailure, i, name, current[i])
		}
	}
	return nil
}
