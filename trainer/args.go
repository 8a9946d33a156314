package trainer

import (
	"fmt"

	"github.com/google/uuid"
)

// Arguments are the training hyperparameters. They are persisted next
// to every checkpoint as training_args.json.
type Arguments struct {
	OutputDir      string  `json:"output_dir" yaml:"output_dir"`
	LearningRate   float64 `json:"learning_rate" yaml:"learning_rate"`
	TrainBatchSize int     `json:"per_device_train_batch_size" yaml:"train_batch_size"`
	EvalBatchSize  int     `json:"per_device_eval_batch_size" yaml:"eval_batch_size"`
	Epochs         int     `json:"num_train_epochs" yaml:"epochs"`
	WeightDecay    float64 `json:"weight_decay" yaml:"weight_decay"`
	SeqLen         int     `json:"max_seq_length" yaml:"seq_len"`
	Seed           int64   `json:"seed" yaml:"seed"`
	LoadBestAtEnd  bool    `json:"load_best_model_at_end" yaml:"load_best_at_end"`
	RunName        string  `json:"run_name" yaml:"run_name"`
}

// DefaultArguments returns the hyperparameters used when the
// experiment file leaves the trainer section empty.
func DefaultArguments() Arguments {
	return Arguments{
		OutputDir:      "out",
		LearningRate:   1e-4,
		TrainBatchSize: 8,
		EvalBatchSize:  8,
		Epochs:         3,
		WeightDecay:    0.01,
		SeqLen:         128,
		Seed:           42,
		LoadBestAtEnd:  true,
	}
}

// Validate fills zero values with defaults, assigns a fresh run name
// when none is set, and rejects unusable hyperparameters.
func (a *Arguments) Validate() error {
	d := DefaultArguments()
	if a.OutputDir == "" {
		a.OutputDir = d.OutputDir
	}
	if a.LearningRate == 0 {
		a.LearningRate = d.LearningRate
	}
	if a.TrainBatchSize == 0 {
		a.TrainBatchSize = d.TrainBatchSize
	}
	if a.EvalBatchSize == 0 {
		a.EvalBatchSize = d.EvalBatchSize
	}
	if a.Epochs == 0 {
		a.Epochs = d.Epochs
	}
	if a.SeqLen == 0 {
		a.SeqLen = d.SeqLen
	}
	if a.Seed == 0 {
		a.Seed = d.Seed
	}
	if a.RunName == "" {
		a.RunName = uuid.NewString()
	}
	if a.LearningRate <= 0 {
		return fmt.Errorf("trainer: learning rate must be positive, got %g", a.LearningRate)
	}
	if a.TrainBatchSize < 1 || a.EvalBatchSize < 1 {
		return fmt.Errorf("trainer: batch sizes must be positive, got %d/%d", a.TrainBatchSize, a.EvalBatchSize)
	}
	if a.Epochs < 1 {
		return fmt.Errorf("trainer: epochs must be positive, got %d", a.Epochs)
	}
	if a.WeightDecay < 0 {
		return fmt.Errorf("trainer: weight decay must not be negative, got %g", a.WeightDecay)
	}
	if a.SeqLen < 1 {
		return fmt.Errorf("trainer: sequence length must be positive, got %d", a.SeqLen)
	}
	return nil
}
