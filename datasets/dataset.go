// Package datasets implements the labeled text dataset types shared by
// the training and inference tools.
package datasets

import "math/rand"

// Example is a single labeled text record.
type Example struct {
	Text  string
	Label int
}

// Split is an ordered collection of examples. Splits are treated as
// read-only once loaded.
type Split []Example

// Subsample returns a deterministic random subsample holding fraction
// of the split. The input is never mutated; the same split, fraction
// and seed always produce the same result.
func Subsample(s Split, fraction float64, seed int64) Split {
	if fraction >= 1 {
		fraction = 1
	}
	if fraction <= 0 {
		return Split{}
	}
	out := make(Split, len(s))
	copy(out, s)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	n := int(fraction * float64(len(out)))
	return out[:n]
}

// Encoder turns raw text into a fixed-length token id sequence and an
// attention mask.
type Encoder interface {
	Encode(text string, maxLen int) (ids, mask []int)
}

// Encoded is an example together with its tokenized form.
type Encoded struct {
	Example
	IDs  []int
	Mask []int
}

// Tokenize maps a split through enc, producing maxLen tokens per
// example.
func Tokenize(s Split, enc Encoder, maxLen int) []Encoded {
	out := make([]Encoded, len(s))
	for i, ex := range s {
		ids, mask := enc.Encode(ex.Text, maxLen)
		out[i] = Encoded{Example: ex, IDs: ids, Mask: mask}
	}
	return out
}
