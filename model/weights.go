package model

import (
	"fmt"
	"path/filepath"

	"gorgonia.org/tensor"

	"github.com/lorafine/classifier/internal/safetensors"
)

// WeightsFile is the checkpoint file name inside a model directory.
const WeightsFile = "model.safetensors"

// Norm holds layer norm gain and bias.
type Norm struct {
	G *tensor.Dense
	B *tensor.Dense
}

// Block holds the frozen weights of one transformer block. Projection
// weights use the Conv1D layout of GPT-2 checkpoints: shape (in, out),
// applied as y = x·W + b.
type Block struct {
	LN1, LN2       Norm
	AttnW, AttnB   *tensor.Dense // c_attn: (hidden, 3*hidden)
	ProjW, ProjB   *tensor.Dense // attn c_proj
	FcW, FcB       *tensor.Dense // mlp c_fc: (hidden, 4*hidden)
	MProjW, MProjB *tensor.Dense // mlp c_proj
}

// Weights is the full frozen parameter set of the backbone.
type Weights struct {
	Wte    *tensor.Dense // (vocab, hidden)
	Wpe    *tensor.Dense // (ctx, hidden)
	Blocks []Block
	LNF    Norm
}

// LoadWeights reads a GPT-2 checkpoint in safetensors format from dir,
// using the Hugging Face tensor naming scheme (with or without the
// "transformer." prefix).
func LoadWeights(dir string, cfg Config) (*Weights, error) {
	tensors, err := safetensors.Load(filepath.Join(dir, WeightsFile))
	if err != nil {
		return nil, fmt.Errorf("model: loading %s: %w", WeightsFile, err)
	}
	get := func(name string) (*tensor.Dense, error) {
		if t, ok := tensors[name]; ok {
			return t, nil
		}
		if t, ok := tensors["transformer."+name]; ok {
			return t, nil
		}
		return nil, fmt.Errorf("model: checkpoint is missing tensor %q", name)
	}
	norm := func(prefix string) (Norm, error) {
		g, err := get(prefix + ".weight")
		if err != nil {
			return Norm{}, err
		}
		b, err := get(prefix + ".bias")
		if err != nil {
			return Norm{}, err
		}
		return Norm{G: g, B: b}, nil
	}
	linear := func(prefix string, in, out int) (*tensor.Dense, *tensor.Dense, error) {
		w, err := get(prefix + ".weight")
		if err != nil {
			return nil, nil, err
		}
		if !w.Shape().Eq(tensor.Shape{in, out}) {
			return nil, nil, fmt.Errorf("model: %s.weight has shape %v, want (%d, %d)", prefix, w.Shape(), in, out)
		}
		b, err := get(prefix + ".bias")
		if err != nil {
			return nil, nil, err
		}
		return w, b, nil
	}

	w := &Weights{Blocks: make([]Block, cfg.Layers)}
	if w.Wte, err = get("wte.weight"); err != nil {
		return nil, err
	}
	if w.Wpe, err = get("wpe.weight"); err != nil {
		return nil, err
	}
	c := cfg.Hidden
	for i := range w.Blocks {
		p := fmt.Sprintf("h.%d", i)
		blk := &w.Blocks[i]
		if blk.LN1, err = norm(p + ".ln_1"); err != nil {
			return nil, err
		}
		if blk.AttnW, blk.AttnB, err = linear(p+".attn.c_attn", c, 3*c); err != nil {
			return nil, err
		}
		if blk.ProjW, blk.ProjB, err = linear(p+".attn.c_proj", c, c); err != nil {
			return nil, err
		}
		if blk.LN2, err = norm(p + ".ln_2"); err != nil {
			return nil, err
		}
		if blk.FcW, blk.FcB, err = linear(p+".mlp.c_fc", c, 4*c); err != nil {
			return nil, err
		}
		if blk.MProjW, blk.MProjB, err = linear(p+".mlp.c_proj", 4*c, c); err != nil {
			return nil, err
		}
	}
	if w.LNF, err = norm("ln_f"); err != nil {
		return nil, err
	}
	return w, nil
}
