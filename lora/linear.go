package lora

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Linear is a frozen linear projection with an optional trainable
// low-rank delta: y = x·W + b + (alpha/r)·(dropout(x)·A·B).
type Linear struct {
	Name string

	w    *gorgonia.Node // frozen (in, out)
	b    *gorgonia.Node // frozen (out,)
	a    *gorgonia.Node // trainable (in, r), nil when not targeted
	bLow *gorgonia.Node // trainable (r, out), nil when not targeted

	scale    float64
	dropout  float64
	training bool
}

// Wrap builds a Linear around the frozen weight and bias tensors. When
// cfg targets name, trainable adapter matrices are attached: A starts
// gaussian, B starts at zero so the initial delta vanishes and the
// wrapped projection is exactly the frozen one.
func Wrap(g *gorgonia.ExprGraph, name string, w, b *tensor.Dense, cfg Config, training bool) (*Linear, error) {
	shape := w.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("lora: %s: weight must be 2-D, got %v", name, shape)
	}
	in, out := shape[0], shape[1]
	l := &Linear{
		Name:     name,
		w:        gorgonia.NodeFromAny(g, w, gorgonia.WithName(name+".weight")),
		scale:    cfg.Scale(),
		dropout:  cfg.Dropout,
		training: training && !cfg.InferenceMode,
	}
	if b != nil {
		l.b = gorgonia.NodeFromAny(g, b, gorgonia.WithName(name+".bias"))
	}
	if cfg.Targets(name) {
		l.a = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(in, cfg.R),
			gorgonia.WithName(name+".lora_A"),
			gorgonia.WithInit(gorgonia.Gaussian(0, 0.02)))
		l.bLow = gorgonia.NewMatrix(g, tensor.Float32,
			gorgonia.WithShape(cfg.R, out),
			gorgonia.WithName(name+".lora_B"),
			gorgonia.WithInit(gorgonia.Zeroes()))
	}
	return l, nil
}

// Forward applies the projection to x of shape (rows, in).
func (l *Linear) Forward(x *gorgonia.Node) (*gorgonia.Node, error) {
	y, err := gorgonia.Mul(x, l.w)
	if err != nil {
		return nil, fmt.Errorf("lora: %s: %w", l.Name, err)
	}
	if l.b != nil {
		y, err = gorgonia.BroadcastAdd(y, l.b, nil, []byte{0})
		if err != nil {
			return nil, fmt.Errorf("lora: %s bias: %w", l.Name, err)
		}
	}
	if l.a == nil {
		return y, nil
	}
	xd := x
	if l.training && l.dropout > 0 {
		xd, err = gorgonia.Dropout(x, l.dropout)
		if err != nil {
			return nil, fmt.Errorf("lora: %s dropout: %w", l.Name, err)
		}
	}
	delta, err := gorgonia.Mul(xd, l.a)
	if err != nil {
		return nil, err
	}
	delta, err = gorgonia.Mul(delta, l.bLow)
	if err != nil {
		return nil, err
	}
	delta, err = gorgonia.Mul(delta, gorgonia.NewConstant(float32(l.scale)))
	if err != nil {
		return nil, err
	}
	return gorgonia.Add(y, delta)
}

// Learnables returns the trainable adapter nodes, if any.
func (l *Linear) Learnables() gorgonia.Nodes {
	if l.a == nil {
		return nil
	}
	return gorgonia.Nodes{l.a, l.bLow}
}
