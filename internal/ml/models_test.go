package ml

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erosion-platform/internal/models"
)

// syntheticSet builds n examples where the rate depends linearly on
// area and sea level plus deterministic noise.
func syntheticSet(n int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(7))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, FeatureCount)
		row[0] = rng.Float64() * 10      // area_km2
		row[1] = float64(rng.Intn(4)+1)  // risk tier
		row[10] = rng.Float64() * 2      // sea level mean
		x[i] = row
		y[i] = 0.2*row[0] + 0.3*row[10] + 0.1*row[1]
	}
	return x, y
}

func TestRandomForestFitPredict(t *testing.T) {
	x, y := syntheticSet(80)

	forest := NewRandomForest(TrainingSeed)
	require.NoError(t, forest.Fit(x, y))
	require.Len(t, forest.Trees, DefaultTreeCount)

	value, interval, confidence, err := forest.Predict(x[0])
	require.NoError(t, err)
	assert.InDelta(t, y[0], value, 0.5)
	assert.LessOrEqual(t, interval[0], value)
	assert.GreaterOrEqual(t, interval[1], value)
	assert.GreaterOrEqual(t, confidence, 0.0)
	assert.LessOrEqual(t, confidence, 100.0)
}

func TestRandomForestDeterminism(t *testing.T) {
	x, y := syntheticSet(40)

	a := NewRandomForest(TrainingSeed)
	b := NewRandomForest(TrainingSeed)
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))

	for i := 0; i < 10; i++ {
		va, _, _, err := a.Predict(x[i])
		require.NoError(t, err)
		vb, _, _, err := b.Predict(x[i])
		require.NoError(t, err)
		assert.Equal(t, va, vb, "example %d", i)
	}
}

func TestRandomForestErrors(t *testing.T) {
	forest := NewRandomForest(TrainingSeed)

	assert.Error(t, forest.Fit(nil, nil))
	assert.Error(t, forest.Fit([][]float64{{1}}, []float64{1, 2}))

	_, _, _, err := forest.Predict(make([]float64, FeatureCount))
	assert.Error(t, err) // untrained

	x, y := syntheticSet(20)
	require.NoError(t, forest.Fit(x, y))
	_, _, _, err = forest.Predict([]float64{1, 2, 3})
	assert.Error(t, err) // wrong width
}

func TestLinearRegressionRecoversLinearTarget(t *testing.T) {
	// noiseless linear target, OLS should recover it near exactly
	rng := rand.New(rand.NewSource(11))
	n := 60
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, FeatureCount)
		for j := range row {
			row[j] = rng.Float64() * 5
		}
		x[i] = row
		y[i] = 1.5 + 2.0*row[0] - 0.5*row[3] + 0.25*row[10]
	}

	lin := NewLinearRegression()
	require.NoError(t, lin.Fit(x, y))

	value, interval, confidence, err := lin.Predict(x[5])
	require.NoError(t, err)
	assert.InDelta(t, y[5], value, 1e-6)
	assert.InDelta(t, 75.0, confidence, 1e-9)
	assert.InDelta(t, value*0.8, interval[0], 1e-6)
	assert.InDelta(t, value*1.2, interval[1], 1e-6)
}

func TestLinearRegressionConstantFeature(t *testing.T) {
	t.Run("constant column stays out of the solve", func(t *testing.T) {
		// a zero-variance column would make the standardized design
		// matrix singular if it entered the system
		x := [][]float64{
			{1, 5}, {2, 5}, {3, 5}, {4, 5}, {5, 5},
		}
		y := []float64{1, 2, 3, 4, 5}

		lin := NewLinearRegression()
		require.NoError(t, lin.Fit(x, y))
		assert.Zero(t, lin.Weights[1])

		value, _, _, err := lin.Predict([]float64{3, 5})
		require.NoError(t, err)
		assert.InDelta(t, 3.0, value, 1e-6)
	})

	t.Run("mixed constant and varying columns", func(t *testing.T) {
		x := [][]float64{
			{1, 5, 0}, {2, 5, 1}, {3, 5, 4}, {4, 5, 9}, {5, 5, 16},
		}
		y := []float64{1, 2, 3, 4, 5}

		lin := NewLinearRegression()
		require.NoError(t, lin.Fit(x, y))
		assert.Zero(t, lin.Weights[1])

		value, _, _, err := lin.Predict([]float64{3, 5, 4})
		require.NoError(t, err)
		assert.InDelta(t, 3.0, value, 1e-6)
	})

	t.Run("all columns constant falls back to the target mean", func(t *testing.T) {
		x := [][]float64{
			{5, 5}, {5, 5}, {5, 5}, {5, 5},
		}
		y := []float64{1, 2, 3, 4}

		lin := NewLinearRegression()
		require.NoError(t, lin.Fit(x, y))

		value, _, _, err := lin.Predict([]float64{5, 5})
		require.NoError(t, err)
		assert.InDelta(t, 2.5, value, 1e-9)
	})
}

func TestArtifactRoundTrip(t *testing.T) {
	x, y := syntheticSet(30)

	t.Run("random forest", func(t *testing.T) {
		forest := NewRandomForest(TrainingSeed)
		require.NoError(t, forest.Fit(x, y))

		params, err := MarshalParameters(forest)
		require.NoError(t, err)

		restored, err := UnmarshalArtifact(&models.ModelArtifact{
			Algorithm:    models.AlgorithmRandomForest,
			FeatureNames: FeatureNames(),
			Parameters:   params,
		})
		require.NoError(t, err)

		want, _, _, err := forest.Predict(x[3])
		require.NoError(t, err)
		got, _, _, err := restored.Predict(x[3])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("linear regression", func(t *testing.T) {
		lin := NewLinearRegression()
		require.NoError(t, lin.Fit(x, y))

		params, err := MarshalParameters(lin)
		require.NoError(t, err)

		restored, err := UnmarshalArtifact(&models.ModelArtifact{
			Algorithm:    models.AlgorithmLinearRegression,
			FeatureNames: FeatureNames(),
			Parameters:   params,
		})
		require.NoError(t, err)

		want, _, _, err := lin.Predict(x[3])
		require.NoError(t, err)
		got, _, _, err := restored.Predict(x[3])
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := UnmarshalArtifact(&models.ModelArtifact{
			Algorithm:    models.ModelAlgorithm("svm"),
			FeatureNames: FeatureNames(),
			Parameters:   json.RawMessage(`{}`),
		})
		assert.ErrorIs(t, err, ErrModelLoadFailure)
	})

	t.Run("corrupt parameters", func(t *testing.T) {
		_, err := UnmarshalArtifact(&models.ModelArtifact{
			Algorithm:    models.AlgorithmRandomForest,
			FeatureNames: FeatureNames(),
			Parameters:   json.RawMessage(`{not json`),
		})
		assert.ErrorIs(t, err, ErrModelLoadFailure)
	})

	t.Run("empty forest", func(t *testing.T) {
		_, err := UnmarshalArtifact(&models.ModelArtifact{
			Algorithm:    models.AlgorithmRandomForest,
			FeatureNames: FeatureNames(),
			Parameters:   json.RawMessage(`{"trees":[]}`),
		})
		assert.ErrorIs(t, err, ErrModelLoadFailure)
	})

	t.Run("stale feature layout", func(t *testing.T) {
		stale := FeatureNames()
		stale[0] = "coastline_length_km"

		_, err := UnmarshalArtifact(&models.ModelArtifact{
			Algorithm:    models.AlgorithmLinearRegression,
			FeatureNames: stale,
			Parameters:   json.RawMessage(`{"weights":[1]}`),
		})
		assert.ErrorIs(t, err, ErrModelLoadFailure)

		_, err = UnmarshalArtifact(&models.ModelArtifact{
			Algorithm:    models.AlgorithmLinearRegression,
			FeatureNames: stale[:5],
			Parameters:   json.RawMessage(`{"weights":[1]}`),
		})
		assert.ErrorIs(t, err, ErrModelLoadFailure)
	})
}

func TestTrainingSetSplit(t *testing.T) {
	x, y := syntheticSet(50)
	set := &TrainingSet{X: x, Y: y, FeatureNames: FeatureNames()}

	train, test := set.Split()
	assert.Equal(t, 40, train.Len())
	assert.Equal(t, 10, test.Len())

	// same seed, same partition
	train2, test2 := set.Split()
	assert.Equal(t, train.Y, train2.Y)
	assert.Equal(t, test.Y, test2.Y)
}

func TestEvaluate(t *testing.T) {
	x, y := syntheticSet(50)
	set := &TrainingSet{X: x, Y: y, FeatureNames: FeatureNames()}
	train, test := set.Split()

	lin := NewLinearRegression()
	require.NoError(t, lin.Fit(train.X, train.Y))

	ev, err := Evaluate(lin, test)
	require.NoError(t, err)
	// target is exactly linear, held-out fit should be near perfect
	assert.Greater(t, ev.R2, 0.99)
	assert.Less(t, ev.MSE, 0.01)

	_, err = Evaluate(lin, &TrainingSet{})
	assert.Error(t, err)
}
