package query

import "math"

// defaultConfidenceWeights rank-weight the top results: the best hit
// dominates, later hits contribute progressively less.
var defaultConfidenceWeights = []float64{1.0, 0.8, 0.6, 0.4, 0.2}

// ConfidencePolicy turns a ranked list of similarity scores into one
// confidence number. The zero value uses the default rank weights.
type ConfidencePolicy struct {
	Weights []float64
}

// Score computes the weighted mean of the top-N similarity scores,
// where N is the number of weights. Result is clamped to [0, 1] and
// rounded to 3 decimals; an empty list scores 0.0.
func (p ConfidencePolicy) Score(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}
	weights := p.Weights
	if len(weights) == 0 {
		weights = defaultConfidenceWeights
	}

	var weightedSum, weightTotal float64
	for i, s := range scores {
		if i >= len(weights) {
			break
		}
		weightedSum += s * weights[i]
		weightTotal += weights[i]
	}
	if weightTotal == 0 {
		return 0.0
	}

	confidence := weightedSum / weightTotal
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return math.Round(confidence*1000) / 1000
}
