package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// Default forest hyperparameters.
const (
	DefaultTreeCount = 100
	DefaultMaxDepth  = 10
	minSamplesSplit  = 2
)

// treeNode is one node of a regression tree. Leaves carry the mean
// target of the samples that reached them.
type treeNode struct {
	Leaf      bool      `json:"leaf"`
	Value     float64   `json:"value,omitempty"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      *treeNode `json:"left,omitempty"`
	Right     *treeNode `json:"right,omitempty"`
}

// RandomForest is a bagged ensemble of variance-reducing regression
// trees. The seed makes training fully deterministic.
type RandomForest struct {
	TreeCount int         `json:"tree_count"`
	MaxDepth  int         `json:"max_depth"`
	Seed      int64       `json:"seed"`
	Trees     []*treeNode `json:"trees"`
}

// NewRandomForest returns an untrained forest with default hyperparameters.
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{
		TreeCount: DefaultTreeCount,
		MaxDepth:  DefaultMaxDepth,
		Seed:      seed,
	}
}

// Fit trains the forest on the given examples. Each tree sees a
// bootstrap resample of the training set.
func (f *RandomForest) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("training set is empty or misaligned")
	}

	rng := rand.New(rand.NewSource(f.Seed))
	f.Trees = make([]*treeNode, f.TreeCount)

	n := len(x)
	for t := 0; t < f.TreeCount; t++ {
		sampleX := make([][]float64, n)
		sampleY := make([]float64, n)
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			sampleX[i] = x[j]
			sampleY[i] = y[j]
		}
		f.Trees[t] = buildTree(sampleX, sampleY, 0, f.MaxDepth)
	}
	return nil
}

func buildTree(x [][]float64, y []float64, depth, maxDepth int) *treeNode {
	if depth >= maxDepth || len(y) < minSamplesSplit || uniform(y) {
		return &treeNode{Leaf: true, Value: mean(y)}
	}

	feature, threshold, ok := bestSplit(x, y)
	if !ok {
		return &treeNode{Leaf: true, Value: mean(y)}
	}

	var leftX, rightX [][]float64
	var leftY, rightY []float64
	for i, row := range x {
		if row[feature] <= threshold {
			leftX = append(leftX, row)
			leftY = append(leftY, y[i])
		} else {
			rightX = append(rightX, row)
			rightY = append(rightY, y[i])
		}
	}
	if len(leftY) == 0 || len(rightY) == 0 {
		return &treeNode{Leaf: true, Value: mean(y)}
	}

	return &treeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(leftX, leftY, depth+1, maxDepth),
		Right:     buildTree(rightX, rightY, depth+1, maxDepth),
	}
}

// bestSplit scans every feature midpoint for the split with the lowest
// weighted child variance.
func bestSplit(x [][]float64, y []float64) (feature int, threshold float64, ok bool) {
	bestScore := math.Inf(1)
	features := len(x[0])

	for f := 0; f < features; f++ {
		seen := make(map[float64]bool)
		for _, row := range x {
			seen[row[f]] = true
		}
		if len(seen) < 2 {
			continue
		}

		// sorted candidates keep training deterministic for a fixed seed
		candidates := make([]float64, 0, len(seen))
		for t := range seen {
			candidates = append(candidates, t)
		}
		sort.Float64s(candidates)

		for _, t := range candidates {
			var leftY, rightY []float64
			for i, row := range x {
				if row[f] <= t {
					leftY = append(leftY, y[i])
				} else {
					rightY = append(rightY, y[i])
				}
			}
			if len(leftY) == 0 || len(rightY) == 0 {
				continue
			}

			score := (variance(leftY)*float64(len(leftY)) +
				variance(rightY)*float64(len(rightY))) / float64(len(y))
			if score < bestScore {
				bestScore = score
				feature = f
				threshold = t
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// Predict returns the ensemble mean, a two-sigma interval across trees
// and a confidence derived from the ensemble spread.
func (f *RandomForest) Predict(x []float64) (float64, [2]float64, float64, error) {
	if len(f.Trees) == 0 {
		return 0, [2]float64{}, 0, errors.New("forest is not trained")
	}
	if len(x) != FeatureCount {
		return 0, [2]float64{}, 0, errors.New("feature vector has wrong width")
	}

	preds := make([]float64, len(f.Trees))
	for i, tree := range f.Trees {
		preds[i] = tree.predict(x)
	}

	m := mean(preds)
	sigma := math.Sqrt(variance(preds))
	interval := [2]float64{m - 2*sigma, m + 2*sigma}
	confidence := math.Max(0, math.Min(100, 100-10*sigma))

	return m, interval, confidence, nil
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return sum / float64(len(values))
}

func uniform(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
