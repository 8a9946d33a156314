package model

import (
	"fmt"
	"math"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/lorafine/classifier/lora"
)

// Classifier maps fixed-length token sequences to class scores. The
// graph is built once for a fixed batch size and sequence length;
// batches are fed through Let on the input nodes.
type Classifier struct {
	cfg       Config
	weights   *Weights
	numLabels int
	batch     int
	seqLen    int
	training  bool

	g      *gorgonia.ExprGraph
	x      *gorgonia.Node // (batch*seqLen, hidden) embedded input
	pool   *gorgonia.Node // (batch, 1, seqLen) last-token selector
	labels *gorgonia.Node // (batch, numLabels) one-hot
	logits *gorgonia.Node // (batch, numLabels)
	loss   *gorgonia.Node // scalar mean cross-entropy

	adapters   []*lora.Linear
	headW      *gorgonia.Node
	headB      *gorgonia.Node
	learnables gorgonia.Nodes

	vm gorgonia.VM
}

// NewClassifier assembles the backbone, injects adapters per lcfg and
// attaches a fresh linear scoring head. With training true the graph
// carries gradients for the trainable set and adapter dropout is
// active.
func NewClassifier(cfg Config, w *Weights, lcfg lora.Config, numLabels, batchSize, seqLen int, training bool) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := lcfg.Validate(); err != nil {
		return nil, err
	}
	if seqLen < 1 || seqLen > cfg.CtxLen {
		return nil, fmt.Errorf("model: sequence length %d outside (0, %d]", seqLen, cfg.CtxLen)
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("model: batch size must be positive, got %d", batchSize)
	}
	if numLabels < 2 {
		return nil, fmt.Errorf("model: need at least 2 labels, got %d", numLabels)
	}

	c := &Classifier{
		cfg:       cfg,
		weights:   w,
		numLabels: numLabels,
		batch:     batchSize,
		seqLen:    seqLen,
		training:  training,
		g:         gorgonia.NewGraph(),
	}
	if err := c.build(lcfg); err != nil {
		return nil, err
	}
	if training {
		if _, err := gorgonia.Grad(c.loss, c.learnables...); err != nil {
			return nil, fmt.Errorf("model: building gradients: %w", err)
		}
		c.vm = gorgonia.NewTapeMachine(c.g, gorgonia.BindDualValues(c.learnables...))
	} else {
		c.vm = gorgonia.NewTapeMachine(c.g)
	}
	return c, nil
}

func (c *Classifier) build(lcfg lora.Config) error {
	B, T, C := c.batch, c.seqLen, c.cfg.Hidden
	H := c.cfg.Heads
	hd := C / H

	c.x = gorgonia.NewMatrix(c.g, tensor.Float32,
		gorgonia.WithShape(B*T, C), gorgonia.WithName("x"))
	c.pool = gorgonia.NewTensor(c.g, tensor.Float32, 3,
		gorgonia.WithShape(B, 1, T), gorgonia.WithName("pool"))
	c.labels = gorgonia.NewMatrix(c.g, tensor.Float32,
		gorgonia.WithShape(B, c.numLabels), gorgonia.WithName("labels"))

	mask := gorgonia.NodeFromAny(c.g, causalMask(T), gorgonia.WithName("causal_mask"))
	scale := gorgonia.NewConstant(float32(1 / math.Sqrt(float64(hd))))

	wrap := func(name string, w, b *tensor.Dense) (*lora.Linear, error) {
		l, err := lora.Wrap(c.g, name, w, b, lcfg, c.training)
		if err != nil {
			return nil, err
		}
		if ln := l.Learnables(); len(ln) > 0 {
			c.adapters = append(c.adapters, l)
			c.learnables = append(c.learnables, ln...)
		}
		return l, nil
	}

	hidden := c.x
	for i, blk := range c.weights.Blocks {
		prefix := fmt.Sprintf("h.%d", i)

		cAttn, err := wrap(prefix+".attn.c_attn", blk.AttnW, blk.AttnB)
		if err != nil {
			return err
		}
		cProj, err := wrap(prefix+".attn.c_proj", blk.ProjW, blk.ProjB)
		if err != nil {
			return err
		}
		cFc, err := wrap(prefix+".mlp.c_fc", blk.FcW, blk.FcB)
		if err != nil {
			return err
		}
		mProj, err := wrap(prefix+".mlp.c_proj", blk.MProjW, blk.MProjB)
		if err != nil {
			return err
		}

		h1, err := layerNorm(hidden, blk.LN1, c.cfg.LayerNormEps)
		if err != nil {
			return fmt.Errorf("%s.ln_1: %w", prefix, err)
		}
		qkv, err := cAttn.Forward(h1)
		if err != nil {
			return err
		}
		attnOut, err := attention(qkv, mask, scale, B, T, H, hd)
		if err != nil {
			return fmt.Errorf("%s.attn: %w", prefix, err)
		}
		attnOut, err = cProj.Forward(attnOut)
		if err != nil {
			return err
		}
		hidden, err = gorgonia.Add(hidden, attnOut)
		if err != nil {
			return err
		}

		h2, err := layerNorm(hidden, blk.LN2, c.cfg.LayerNormEps)
		if err != nil {
			return fmt.Errorf("%s.ln_2: %w", prefix, err)
		}
		m, err := cFc.Forward(h2)
		if err != nil {
			return err
		}
		m, err = gelu(m)
		if err != nil {
			return err
		}
		m, err = mProj.Forward(m)
		if err != nil {
			return err
		}
		hidden, err = gorgonia.Add(hidden, m)
		if err != nil {
			return err
		}
	}

	hf, err := layerNorm(hidden, c.weights.LNF, c.cfg.LayerNormEps)
	if err != nil {
		return fmt.Errorf("ln_f: %w", err)
	}

	// pick each example's last real token representation
	h3, err := gorgonia.Reshape(hf, tensor.Shape{B, T, C})
	if err != nil {
		return err
	}
	pooled, err := gorgonia.BatchedMatMul(c.pool, h3)
	if err != nil {
		return fmt.Errorf("pooling: %w", err)
	}
	pooled, err = gorgonia.Reshape(pooled, tensor.Shape{B, C})
	if err != nil {
		return err
	}

	// the scoring head is new and trains from scratch
	c.headW = gorgonia.NewMatrix(c.g, tensor.Float32,
		gorgonia.WithShape(C, c.numLabels),
		gorgonia.WithName("score.weight"),
		gorgonia.WithInit(gorgonia.Gaussian(0, 0.02)))
	c.headB = gorgonia.NewVector(c.g, tensor.Float32,
		gorgonia.WithShape(c.numLabels),
		gorgonia.WithName("score.bias"),
		gorgonia.WithInit(gorgonia.Zeroes()))
	c.learnables = append(c.learnables, c.headW, c.headB)

	logits, err := gorgonia.Mul(pooled, c.headW)
	if err != nil {
		return err
	}
	c.logits, err = gorgonia.BroadcastAdd(logits, c.headB, nil, []byte{0})
	if err != nil {
		return err
	}

	probs, err := gorgonia.SoftMax(c.logits, 1)
	if err != nil {
		return err
	}
	probs, err = gorgonia.Add(probs, gorgonia.NewConstant(float32(1e-8)))
	if err != nil {
		return err
	}
	logp, err := gorgonia.Log(probs)
	if err != nil {
		return err
	}
	picked, err := gorgonia.HadamardProd(c.labels, logp)
	if err != nil {
		return err
	}
	ce, err := gorgonia.Sum(picked, 1)
	if err != nil {
		return err
	}
	ce, err = gorgonia.Neg(ce)
	if err != nil {
		return err
	}
	c.loss, err = gorgonia.Mean(ce)
	return err
}

// attention runs multi-head causal self-attention over the packed
// qkv projection of shape (B*T, 3C).
func attention(qkv, mask, scale *gorgonia.Node, B, T, H, hd int) (*gorgonia.Node, error) {
	C := H * hd
	split := func(off int) (*gorgonia.Node, error) {
		s, err := gorgonia.Slice(qkv, nil, gorgonia.S(off*C, (off+1)*C))
		if err != nil {
			return nil, err
		}
		// (B*T, C) -> (B*H, T, hd)
		s, err = gorgonia.Reshape(s, tensor.Shape{B, T, H, hd})
		if err != nil {
			return nil, err
		}
		s, err = gorgonia.Transpose(s, 0, 2, 1, 3)
		if err != nil {
			return nil, err
		}
		return gorgonia.Reshape(s, tensor.Shape{B * H, T, hd})
	}
	q, err := split(0)
	if err != nil {
		return nil, err
	}
	k, err := split(1)
	if err != nil {
		return nil, err
	}
	v, err := split(2)
	if err != nil {
		return nil, err
	}

	kt, err := gorgonia.Transpose(k, 0, 2, 1)
	if err != nil {
		return nil, err
	}
	att, err := gorgonia.BatchedMatMul(q, kt)
	if err != nil {
		return nil, err
	}
	att, err = gorgonia.Mul(att, scale)
	if err != nil {
		return nil, err
	}
	att, err = gorgonia.BroadcastAdd(att, mask, nil, []byte{0})
	if err != nil {
		return nil, err
	}
	att, err = gorgonia.SoftMax(att, 2)
	if err != nil {
		return nil, err
	}
	out, err := gorgonia.BatchedMatMul(att, v)
	if err != nil {
		return nil, err
	}
	// (B*H, T, hd) -> (B*T, C)
	out, err = gorgonia.Reshape(out, tensor.Shape{B, H, T, hd})
	if err != nil {
		return nil, err
	}
	out, err = gorgonia.Transpose(out, 0, 2, 1, 3)
	if err != nil {
		return nil, err
	}
	return gorgonia.Reshape(out, tensor.Shape{B * T, C})
}
