package model

import (
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// layerNorm normalizes each row of x to zero mean and unit variance,
// then applies the frozen gain and bias.
func layerNorm(x *gorgonia.Node, n Norm, eps float64) (*gorgonia.Node, error) {
	rows := x.Shape()[0]
	mu, err := gorgonia.Mean(x, 1)
	if err != nil {
		return nil, err
	}
	mu, err = gorgonia.Reshape(mu, tensor.Shape{rows, 1})
	if err != nil {
		return nil, err
	}
	xc, err := gorgonia.BroadcastSub(x, mu, nil, []byte{1})
	if err != nil {
		return nil, err
	}
	sq, err := gorgonia.Square(xc)
	if err != nil {
		return nil, err
	}
	v, err := gorgonia.Mean(sq, 1)
	if err != nil {
		return nil, err
	}
	v, err = gorgonia.Reshape(v, tensor.Shape{rows, 1})
	if err != nil {
		return nil, err
	}
	v, err = gorgonia.Add(v, gorgonia.NewConstant(float32(eps)))
	if err != nil {
		return nil, err
	}
	sd, err := gorgonia.Sqrt(v)
	if err != nil {
		return nil, err
	}
	norm, err := gorgonia.BroadcastHadamardDiv(xc, sd, nil, []byte{1})
	if err != nil {
		return nil, err
	}
	g := gorgonia.NodeFromAny(x.Graph(), n.G)
	b := gorgonia.NodeFromAny(x.Graph(), n.B)
	out, err := gorgonia.BroadcastHadamardProd(norm, g, nil, []byte{0})
	if err != nil {
		return nil, err
	}
	return gorgonia.BroadcastAdd(out, b, nil, []byte{0})
}

// gelu is the tanh approximation GPT-2 uses:
// 0.5x(1 + tanh(sqrt(2/pi)(x + 0.044715x^3))).
func gelu(x *gorgonia.Node) (*gorgonia.Node, error) {
	x2, err := gorgonia.Square(x)
	if err != nil {
		return nil, err
	}
	x3, err := gorgonia.HadamardProd(x2, x)
	if err != nil {
		return nil, err
	}
	x3, err = gorgonia.Mul(x3, gorgonia.NewConstant(float32(0.044715)))
	if err != nil {
		return nil, err
	}
	inner, err := gorgonia.Add(x, x3)
	if err != nil {
		return nil, err
	}
	inner, err = gorgonia.Mul(inner, gorgonia.NewConstant(float32(math.Sqrt(2/math.Pi))))
	if err != nil {
		return nil, err
	}
	th, err := gorgonia.Tanh(inner)
	if err != nil {
		return nil, err
	}
	th, err = gorgonia.Add(th, gorgonia.NewConstant(float32(1)))
	if err != nil {
		return nil, err
	}
	out, err := gorgonia.HadamardProd(x, th)
	if err != nil {
		return nil, err
	}
	return gorgonia.Mul(out, gorgonia.NewConstant(float32(0.5)))
}

// causalMask builds a (1, t, t) additive attention mask with large
// negative values above the diagonal.
func causalMask(t int) *tensor.Dense {
	data := make([]float32, t*t)
	for i := 0; i < t; i++ {
		for j := i + 1; j < t; j++ {
			data[i*t+j] = -1e9
		}
	}
	return tensor.New(tensor.WithShape(1, t, t), tensor.WithBacking(data))
}
