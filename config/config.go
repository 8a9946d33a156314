// Package config loads the experiment file: which base model to pull,
// how much of the dataset to train on, the adapter shape, the training
// hyperparameters and where to publish the result.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lorafine/classifier/lora"
	"github.com/lorafine/classifier/trainer"
)

// Model names the pretrained backbone on the Hub.
type Model struct {
	Repo     string `yaml:"repo"`
	Revision string `yaml:"revision"`
	CacheDir string `yaml:"cache_dir"`
}

// Dataset controls acquisition and subsampling of the corpus.
type Dataset struct {
	Dir      string  `yaml:"dir"`
	BaseURL  string  `yaml:"base_url"`
	Fraction float64 `yaml:"fraction"`
	Seed     int64   `yaml:"seed"`
}

// Hub names the destination repository for the trained adapter.
type Hub struct {
	Repo    string `yaml:"repo"`
	Push    bool   `yaml:"push"`
	Private bool   `yaml:"private"`
}

// Experiment is the full configuration of one fine-tuning run.
type Experiment struct {
	Model   Model             `yaml:"model"`
	Dataset Dataset           `yaml:"dataset"`
	Lora    lora.Config       `yaml:"lora"`
	Trainer trainer.Arguments `yaml:"trainer"`
	Hub     Hub               `yaml:"hub"`
}

// Default is the experiment run when no file is given: GPT-2 small on
// a tenth of the corpus with the stock adapter shape.
func Default() Experiment {
	return Experiment{
		Model:   Model{Repo: "gpt2", Revision: "main", CacheDir: "models"},
		Dataset: Dataset{Dir: "data", Fraction: 0.1, Seed: 42},
		Lora:    lora.Default(),
		Trainer: trainer.DefaultArguments(),
	}
}

// Load reads a YAML experiment file over the defaults. An empty path
// yields the default experiment.
func Load(path string) (Experiment, error) {
	e := Default()
	if path == "" {
		return e, e.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return e, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &e); err != nil {
		return e, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return e, e.Validate()
}

// Validate fills zero values with defaults and rejects unusable
// settings.
func (e *Experiment) Validate() error {
	d := Default()
	if e.Model.Repo == "" {
		e.Model.Repo = d.Model.Repo
	}
	if e.Model.Revision == "" {
		e.Model.Revision = d.Model.Revision
	}
	if e.Model.CacheDir == "" {
		e.Model.CacheDir = d.Model.CacheDir
	}
	if e.Dataset.Dir == "" {
		e.Dataset.Dir = d.Dataset.Dir
	}
	if e.Dataset.Fraction == 0 {
		e.Dataset.Fraction = d.Dataset.Fraction
	}
	if e.Dataset.Seed == 0 {
		e.Dataset.Seed = d.Dataset.Seed
	}
	if e.Dataset.Fraction < 0 || e.Dataset.Fraction > 1 {
		return fmt.Errorf("config: dataset fraction %g outside [0, 1]", e.Dataset.Fraction)
	}
	if err := e.Lora.Validate(); err != nil {
		return err
	}
	if err := e.Trainer.Validate(); err != nil {
		return err
	}
	if e.Hub.Push && e.Hub.Repo == "" {
		return fmt.Errorf("config: hub.push is set but hub.repo is empty")
	}
	return nil
}
