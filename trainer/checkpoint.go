package trainer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gorgonia.org/tensor"

	"github.com/lorafine/classifier/internal/safetensors"
	"github.com/lorafine/classifier/lora"
)

// Artifact file names, matching what adapter tooling expects to find
// in a checkpoint directory.
const (
	AdapterWeightsFile = "adapter_model.safetensors"
	AdapterConfigFile  = "adapter_config.json"
	ArgsFile           = "training_args.json"
)

// SaveAdapter writes a complete adapter artifact into dir: the
// trainable tensors, the adapter configuration (flagged for inference)
// and the training arguments.
func SaveAdapter(dir string, state map[string]*tensor.Dense, lcfg lora.Config, args Arguments) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := safetensors.Save(filepath.Join(dir, AdapterWeightsFile), state); err != nil {
		return fmt.Errorf("trainer: writing adapter weights: %w", err)
	}
	lcfg.InferenceMode = true
	if err := writeJSON(filepath.Join(dir, AdapterConfigFile), lcfg); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, ArgsFile), args)
}

// LoadAdapter reads an artifact written by SaveAdapter.
func LoadAdapter(dir string) (map[string]*tensor.Dense, lora.Config, error) {
	var lcfg lora.Config
	raw, err := os.ReadFile(filepath.Join(dir, AdapterConfigFile))
	if err != nil {
		return nil, lcfg, fmt.Errorf("trainer: reading adapter config: %w", err)
	}
	if err := json.Unmarshal(raw, &lcfg); err != nil {
		return nil, lcfg, fmt.Errorf("trainer: parsing adapter config: %w", err)
	}
	state, err := safetensors.Load(filepath.Join(dir, AdapterWeightsFile))
	if err != nil {
		return nil, lcfg, fmt.Errorf("trainer: reading adapter weights: %w", err)
	}
	return state, lcfg, nil
}

func writeJSON(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}
