package model

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/lorafine/classifier/datasets"
)

// BatchSize returns the fixed batch size the graph was built for.
func (c *Classifier) BatchSize() int { return c.batch }

// Learnables returns the trainable nodes: adapter matrices and head.
func (c *Classifier) Learnables() gorgonia.Nodes { return c.learnables }

// Close releases the underlying virtual machine.
func (c *Classifier) Close() error { return c.vm.Close() }

// bind embeds a batch outside the graph (embeddings are frozen, so no
// gradients flow through them) and feeds the input nodes. Short
// batches are padded with empty rows.
func (c *Classifier) bind(batch []datasets.Encoded) error {
	if len(batch) > c.batch {
		return fmt.Errorf("model: batch of %d exceeds graph batch size %d", len(batch), c.batch)
	}
	B, T, C := c.batch, c.seqLen, c.cfg.Hidden
	wte := c.weights.Wte.Data().([]float32)
	wpe := c.weights.Wpe.Data().([]float32)

	xs := make([]float32, B*T*C)
	pool := make([]float32, B*T)
	labels := make([]float32, B*c.numLabels)

	for bi, ex := range batch {
		if len(ex.IDs) != T {
			return fmt.Errorf("model: example %d has %d tokens, graph wants %d", bi, len(ex.IDs), T)
		}
		last := 0
		for ti, id := range ex.IDs {
			if id < 0 || id >= c.cfg.VocabSize {
				return fmt.Errorf("model: example %d: token id %d out of range", bi, id)
			}
			row := xs[(bi*T+ti)*C : (bi*T+ti+1)*C]
			copy(row, wte[id*C:(id+1)*C])
			for j := 0; j < C; j++ {
				row[j] += wpe[ti*C+j]
			}
			if ti < len(ex.Mask) && ex.Mask[ti] == 1 {
				last = ti
			}
		}
		pool[bi*T+last] = 1
		if ex.Label >= 0 && ex.Label < c.numLabels {
			labels[bi*c.numLabels+ex.Label] = 1
		}
	}

	if err := gorgonia.Let(c.x, tensor.New(tensor.WithShape(B*T, C), tensor.WithBacking(xs))); err != nil {
		return err
	}
	if err := gorgonia.Let(c.pool, tensor.New(tensor.WithShape(B, 1, T), tensor.WithBacking(pool))); err != nil {
		return err
	}
	return gorgonia.Let(c.labels, tensor.New(tensor.WithShape(B, c.numLabels), tensor.WithBacking(labels)))
}

// run executes one pass of the graph over the bound inputs.
func (c *Classifier) run(batch []datasets.Encoded) error {
	if err := c.bind(batch); err != nil {
		return err
	}
	c.vm.Reset()
	if err := c.vm.RunAll(); err != nil {
		return fmt.Errorf("model: forward pass: %w", err)
	}
	return nil
}

// Scores computes unnormalized class scores for up to BatchSize
// examples, one row per input example.
func (c *Classifier) Scores(batch []datasets.Encoded) ([][]float32, error) {
	if err := c.run(batch); err != nil {
		return nil, err
	}
	raw := c.logits.Value().Data().([]float32)
	out := make([][]float32, len(batch))
	for i := range out {
		row := make([]float32, c.numLabels)
		copy(row, raw[i*c.numLabels:(i+1)*c.numLabels])
		out[i] = row
	}
	return out, nil
}

// Step runs a forward and, on a training graph, backward pass and
// returns the batch loss. The caller owns the solver that consumes the
// accumulated gradients.
func (c *Classifier) Step(batch []datasets.Encoded) (float64, error) {
	if len(batch) != c.batch {
		return 0, fmt.Errorf("model: training step needs a full batch of %d, got %d", c.batch, len(batch))
	}
	if err := c.run(batch); err != nil {
		return 0, err
	}
	return c.lossValue()
}

// Loss evaluates the mean cross-entropy of a batch without stepping.
func (c *Classifier) Loss(batch []datasets.Encoded) (float64, error) {
	if err := c.run(batch); err != nil {
		return 0, err
	}
	return c.lossValue()
}

func (c *Classifier) lossValue() (float64, error) {
	v := c.loss.Value()
	if v == nil {
		return 0, fmt.Errorf("model: loss was not computed")
	}
	return float64(v.Data().(float32)), nil
}

// AdapterState snapshots the trainable parameter set keyed by node
// name.
func (c *Classifier) AdapterState() map[string]*tensor.Dense {
	out := make(map[string]*tensor.Dense, len(c.learnables))
	for _, n := range c.learnables {
		out[n.Name()] = n.Value().(*tensor.Dense).Clone().(*tensor.Dense)
	}
	return out
}

// SetAdapterState restores a snapshot produced by AdapterState, e.g.
// the best checkpoint or a published adapter artifact.
func (c *Classifier) SetAdapterState(state map[string]*tensor.Dense) error {
	for _, n := range c.learnables {
		t, ok := state[n.Name()]
		if !ok {
			return fmt.Errorf("model: adapter state is missing %q", n.Name())
		}
		if !t.Shape().Eq(n.Shape()) {
			return fmt.Errorf("model: adapter tensor %q has shape %v, want %v", n.Name(), t.Shape(), n.Shape())
		}
		if err := gorgonia.Let(n, t.Clone().(*tensor.Dense)); err != nil {
			return err
		}
	}
	return nil
}
