package lora

import "fmt"

// Dims describes the backbone geometry needed to count parameters
// without instantiating the model.
type Dims struct {
	Layers int
	Hidden int
	Vocab  int
	CtxLen int
}

// projection geometry shared with the model assembly: qualified name,
// input and output width as multiples of the hidden size.
var projections = []struct {
	name    string
	inMul   int
	outMul  int
}{
	{"attn.c_attn", 1, 3},
	{"attn.c_proj", 1, 1},
	{"mlp.c_fc", 1, 4},
	{"mlp.c_proj", 4, 1},
}

// Summary is the trainable-vs-total parameter report produced after
// adapter injection.
type Summary struct {
	Trainable int64
	Total     int64
}

// Fraction is the trainable share of all parameters.
func (s Summary) Fraction() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Trainable) / float64(s.Total)
}

func (s Summary) String() string {
	return fmt.Sprintf("trainable params: %d || all params: %d || trainable%%: %.4f",
		s.Trainable, s.Total, 100*s.Fraction())
}

// Report counts the trainable set (adapter matrices plus the
// classification head) and the total parameter count of backbone,
// adapters and head.
func Report(d Dims, cfg Config, numLabels int) Summary {
	c := int64(d.Hidden)
	var backbone int64
	backbone += int64(d.Vocab)*c + int64(d.CtxLen)*c // wte, wpe

	var layer int64
	layer += 2 * 2 * c // ln_1, ln_2: gamma and beta each
	for _, p := range projections {
		in, out := c*int64(p.inMul), c*int64(p.outMul)
		layer += in*out + out
	}
	backbone += int64(d.Layers) * layer
	backbone += 2 * c // ln_f

	var adapters int64
	for _, p := range projections {
		if !cfg.Targets(p.name) {
			continue
		}
		in, out := c*int64(p.inMul), c*int64(p.outMul)
		adapters += int64(cfg.R) * (in + out)
	}
	adapters *= int64(d.Layers)

	head := c*int64(numLabels) + int64(numLabels)

	return Summary{
		Trainable: adapters + head,
		Total:     backbone + adapters + head,
	}
}
