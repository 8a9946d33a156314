package trainer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/klauspost/cpuid/v2"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/lorafine/classifier/datasets"
	"github.com/lorafine/classifier/inference"
	"github.com/lorafine/classifier/lora"
	"github.com/lorafine/classifier/model"
)

// Trainer drives the fine-tuning loop over a pair of graphs: one built
// for training (gradients, adapter dropout) and one for evaluation.
// The adapter state is the only thing that moves between them.
type Trainer struct {
	args   Arguments
	lcfg   lora.Config
	train  *model.Classifier
	eval   *model.Classifier
	solver gorgonia.Solver
	log    *log.Logger
}

// Metrics is one epoch's scoreboard.
type Metrics struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	EvalLoss  float64 `json:"eval_loss"`
	Accuracy  float64 `json:"eval_accuracy"`
}

// Result reports the finished run. State holds the adapter parameters
// the run ended with, which is the best epoch's state when
// LoadBestAtEnd is set.
type Result struct {
	BestEpoch int
	BestLoss  float64
	History   []Metrics
	State     map[string]*tensor.Dense
}

// New wires a trainer around an already-assembled training graph and
// evaluation graph. Both must carry the same adapter configuration.
func New(args Arguments, lcfg lora.Config, train, eval *model.Classifier, logger *log.Logger) (*Trainer, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if err := lcfg.Validate(); err != nil {
		return nil, err
	}
	if train.BatchSize() != args.TrainBatchSize {
		return nil, fmt.Errorf("trainer: training graph batch %d, arguments say %d", train.BatchSize(), args.TrainBatchSize)
	}
	if logger == nil {
		logger = log.Default()
	}
	solver := gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(args.LearningRate),
		gorgonia.WithL2Reg(args.WeightDecay),
		gorgonia.WithBatchSize(float64(args.TrainBatchSize)),
	)
	return &Trainer{args: args, lcfg: lcfg, train: train, eval: eval, solver: solver, log: logger}, nil
}

// batches cuts [0, n) into consecutive spans of exactly size, dropping
// the remainder.
func batches(n, size int) [][2]int {
	var out [][2]int
	for start := 0; start+size <= n; start += size {
		out = append(out, [2]int{start, start + size})
	}
	return out
}

// Train runs the full loop and leaves per-epoch checkpoints plus the
// final artifact under args.OutputDir.
func (t *Trainer) Train(ctx context.Context, trainSet, evalSet []datasets.Encoded) (*Result, error) {
	if len(trainSet) < t.args.TrainBatchSize {
		return nil, fmt.Errorf("trainer: %d training examples cannot fill a batch of %d", len(trainSet), t.args.TrainBatchSize)
	}
	if len(evalSet) == 0 {
		return nil, fmt.Errorf("trainer: empty evaluation set")
	}

	t.log.Info("starting run",
		"run", t.args.RunName,
		"examples", len(trainSet),
		"epochs", t.args.Epochs,
		"batch", t.args.TrainBatchSize,
		"lr", t.args.LearningRate,
		"cpu", cpuid.CPU.BrandName,
		"avx2", cpuid.CPU.Supports(cpuid.AVX2))

	rng := rand.New(rand.NewSource(t.args.Seed))
	shuffled := make([]datasets.Encoded, len(trainSet))
	copy(shuffled, trainSet)

	res := &Result{BestEpoch: -1, BestLoss: math.Inf(1)}

	for epoch := 1; epoch <= t.args.Epochs; epoch++ {
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		var sum float64
		spans := batches(len(shuffled), t.args.TrainBatchSize)
		for i, sp := range spans {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			loss, err := t.train.Step(shuffled[sp[0]:sp[1]])
			if err != nil {
				return nil, fmt.Errorf("trainer: epoch %d batch %d: %w", epoch, i, err)
			}
			if err := t.solver.Step(gorgonia.NodesToValueGrads(t.train.Learnables())); err != nil {
				return nil, fmt.Errorf("trainer: epoch %d batch %d: solver: %w", epoch, i, err)
			}
			sum += loss
			if (i+1)%50 == 0 {
				t.log.Info("progress", "epoch", epoch, "batch", i+1, "of", len(spans), "loss", loss)
			}
		}

		m := Metrics{Epoch: epoch, TrainLoss: sum / float64(len(spans))}
		evalLoss, acc, err := t.Evaluate(ctx, evalSet)
		if err != nil {
			return nil, fmt.Errorf("trainer: epoch %d: %w", epoch, err)
		}
		m.EvalLoss, m.Accuracy = evalLoss, acc
		res.History = append(res.History, m)
		t.log.Info("epoch done",
			"epoch", epoch,
			"train_loss", m.TrainLoss,
			"eval_loss", m.EvalLoss,
			"eval_accuracy", m.Accuracy)

		state := t.train.AdapterState()
		dir := filepath.Join(t.args.OutputDir, fmt.Sprintf("checkpoint-%d", epoch))
		if err := SaveAdapter(dir, state, t.lcfg, t.args); err != nil {
			return nil, err
		}
		if m.EvalLoss < res.BestLoss {
			res.BestLoss = m.EvalLoss
			res.BestEpoch = epoch
			res.State = state
		}
	}

	if t.args.LoadBestAtEnd && res.BestEpoch > 0 {
		t.log.Info("restoring best checkpoint", "epoch", res.BestEpoch, "eval_loss", res.BestLoss)
		if err := t.train.SetAdapterState(res.State); err != nil {
			return nil, err
		}
	} else {
		res.State = t.train.AdapterState()
	}
	if err := SaveAdapter(t.args.OutputDir, res.State, t.lcfg, t.args); err != nil {
		return nil, err
	}
	return res, nil
}

// Evaluate syncs the evaluation graph with the current adapter state
// and computes mean validation loss and accuracy. Loss is averaged
// over full batches only; accuracy covers every example.
func (t *Trainer) Evaluate(ctx context.Context, evalSet []datasets.Encoded) (loss, accuracy float64, err error) {
	if err := t.eval.SetAdapterState(t.train.AdapterState()); err != nil {
		return 0, 0, err
	}
	spans := batches(len(evalSet), t.eval.BatchSize())
	if len(spans) == 0 {
		return 0, 0, fmt.Errorf("trainer: %d evaluation examples cannot fill a batch of %d", len(evalSet), t.eval.BatchSize())
	}
	var sum float64
	for _, sp := range spans {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		l, err := t.eval.Loss(evalSet[sp[0]:sp[1]])
		if err != nil {
			return 0, 0, err
		}
		sum += l
	}
	pred, err := inference.Predict(t.eval, evalSet, t.eval.BatchSize())
	if err != nil {
		return 0, 0, err
	}
	labels := make([]int, len(evalSet))
	for i, ex := range evalSet {
		labels[i] = ex.Label
	}
	acc, err := inference.Accuracy(pred, labels)
	if err != nil {
		return 0, 0, err
	}
	return sum / float64(len(spans)), acc, nil
}
