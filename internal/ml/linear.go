package ml

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// linearConfidence is the flat confidence reported by the linear model.
const linearConfidence = 75.0

// linearMargin widens the linear prediction into an interval.
const linearMargin = 0.20

// LinearRegression is an ordinary least squares model fitted on
// standardized features.
type LinearRegression struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
	Means     []float64 `json:"means"`
	Scales    []float64 `json:"scales"`
}

// NewLinearRegression returns an untrained model.
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit standardizes the features and solves the least squares system.
func (m *LinearRegression) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("training set is empty or misaligned")
	}

	n := len(x)
	p := len(x[0])

	m.Means = make([]float64, p)
	m.Scales = make([]float64, p)
	active := make([]int, 0, p)
	for j := 0; j < p; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = x[i][j]
		}
		m.Means[j] = mean(col)
		m.Scales[j] = math.Sqrt(variance(col))
		if m.Scales[j] == 0 {
			// constant column: standardizes to all zeros and would make
			// the solve rank-deficient, so it stays out of the system
			m.Scales[j] = 1.0
			continue
		}
		active = append(active, j)
	}

	m.Weights = make([]float64, p)
	if len(active) == 0 {
		m.Intercept = mean(y)
		return nil
	}

	// design matrix with a leading intercept column, active columns only
	a := mat.NewDense(n, len(active)+1, nil)
	for i := 0; i < n; i++ {
		a.Set(i, 0, 1.0)
		for k, j := range active {
			a.Set(i, k+1, (x[i][j]-m.Means[j])/m.Scales[j])
		}
	}
	b := mat.NewVecDense(n, y)

	var coef mat.VecDense
	if err := coef.SolveVec(a, b); err != nil {
		return err
	}

	m.Intercept = coef.AtVec(0)
	for k, j := range active {
		m.Weights[j] = coef.AtVec(k + 1)
	}
	return nil
}

// Predict returns the point estimate with a fixed relative margin and
// a flat confidence.
func (m *LinearRegression) Predict(x []float64) (float64, [2]float64, float64, error) {
	if len(m.Weights) == 0 {
		return 0, [2]float64{}, 0, errors.New("model is not trained")
	}
	if len(x) != len(m.Weights) {
		return 0, [2]float64{}, 0, errors.New("feature vector has wrong width")
	}

	value := m.Intercept
	for j, w := range m.Weights {
		value += w * (x[j] - m.Means[j]) / m.Scales[j]
	}

	margin := math.Abs(value) * linearMargin
	return value, [2]float64{value - margin, value + margin}, linearConfidence, nil
}
