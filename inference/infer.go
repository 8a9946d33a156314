// Package inference implements the prediction stage of the classifier:
// argmax over class scores, accuracy, and misprediction inspection.
package inference

import (
	"fmt"

	"github.com/lorafine/classifier/datasets"
)

// Scorer produces unnormalized class scores for a batch of tokenized
// examples, one row per example.
type Scorer interface {
	Scores(batch []datasets.Encoded) ([][]float32, error)
}

// Argmax returns the index of the maximum score. Ties resolve to the
// lowest index.
func Argmax(scores []float32) int {
	best := 0
	for i, v := range scores[1:] {
		if v > scores[best] {
			best = i + 1
		}
	}
	return best
}

// Accuracy is the fraction of positions where pred equals labels. It
// always lies in [0, 1]: exactly 1 when every element matches and 0
// when none do.
func Accuracy(pred, labels []int) (float64, error) {
	if len(pred) != len(labels) {
		return 0, fmt.Errorf("inference: %d predictions for %d labels", len(pred), len(labels))
	}
	if len(pred) == 0 {
		return 0, fmt.Errorf("inference: accuracy of empty prediction set")
	}
	hits := 0
	for i := range pred {
		if pred[i] == labels[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(pred)), nil
}

// Predict runs the scorer over the whole set in batches of batchSize
// and returns one predicted label per example, in input order.
func Predict(s Scorer, set []datasets.Encoded, batchSize int) ([]int, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("inference: batch size must be positive, got %d", batchSize)
	}
	pred := make([]int, 0, len(set))
	for start := 0; start < len(set); start += batchSize {
		end := start + batchSize
		if end > len(set) {
			end = len(set)
		}
		scores, err := s.Scores(set[start:end])
		if err != nil {
			return nil, fmt.Errorf("inference: batch at %d: %w", start, err)
		}
		if len(scores) != end-start {
			return nil, fmt.Errorf("inference: scorer returned %d rows for %d examples", len(scores), end-start)
		}
		for _, row := range scores {
			pred = append(pred, Argmax(row))
		}
	}
	return pred, nil
}

// Record pairs an example with its prediction for qualitative review.
type Record struct {
	Text      string
	Label     int
	Predicted int
}

// Records tabulates text, true label and predicted label per example.
func Records(set []datasets.Encoded, pred []int) ([]Record, error) {
	if len(set) != len(pred) {
		return nil, fmt.Errorf("inference: %d predictions for %d examples", len(pred), len(set))
	}
	out := make([]Record, len(set))
	for i, ex := range set {
		out[i] = Record{Text: ex.Text, Label: ex.Label, Predicted: pred[i]}
	}
	return out, nil
}

// Mismatches filters records where the prediction disagrees with the
// true label.
func Mismatches(recs []Record) []Record {
	var out []Record
	for _, r := range recs {
		if r.Label != r.Predicted {
			out = append(out, r)
		}
	}
	return out
}
