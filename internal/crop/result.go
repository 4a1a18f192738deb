package crop

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// PredictionResult is the standardized output of every handler. Values are percentages.
type PredictionResult struct {
	PredictedClass  string             `json:"predicted_class"`
	ConfidenceScore float64            `json:"confidence_score"`
	Probabilities   map[string]float64 `json:"probabilities"`
}

// ClassProbability is one entry of a ranked probability list.
type ClassProbability struct {
	Class       string  `json:"class"`
	DisplayName string  `json:"display_name"`
	Probability float64 `json:"probability"`
}

// NewPredictionResult builds a result from a probability distribution aligned with classes.
// The predicted class is the arg-max; the first index wins ties.
func NewPredictionResult(classes []string, probs []float64) (*PredictionResult, error) {
	if len(classes) == 0 {
		return nil, errors.New("no classes")
	}
	if len(probs) != len(classes) {
		return nil, fmt.Errorf("got %d probabilities for %d classes", len(probs), len(classes))
	}

	best := 0
	all := make(map[string]float64, len(classes))
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, fmt.Errorf("probability for %q is not finite", classes[i])
		}
		all[classes[i]] = p * 100
		if p > probs[best] {
			best = i
		}
	}

	return &PredictionResult{
		PredictedClass:  classes[best],
		ConfidenceScore: probs[best] * 100,
		Probabilities:   all,
	}, nil
}

// Ranked lists the probabilities from most to least likely.
func (r PredictionResult) Ranked() []ClassProbability {
	ranked := make([]ClassProbability, 0, len(r.Probabilities))
	for class, p := range r.Probabilities {
		ranked = append(ranked, ClassProbability{Class: class, DisplayName: DisplayName(class), Probability: p})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Probability != ranked[j].Probability {
			return ranked[i].Probability > ranked[j].Probability
		}
		return ranked[i].Class < ranked[j].Class
	})
	return ranked
}

// Softmax converts logits into a probability distribution.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxLogit := float64(logits[0])
	for _, v := range logits[1:] {
		maxLogit = math.Max(maxLogit, float64(v))
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
