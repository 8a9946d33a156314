package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathIsDefault(t *testing.T) {
	e, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if e.Model.Repo != "gpt2" {
		t.Errorf("model repo = %q, want gpt2", e.Model.Repo)
	}
	if e.Dataset.Fraction != 0.1 {
		t.Errorf("fraction = %v, want 0.1", e.Dataset.Fraction)
	}
	if e.Lora.R != 8 || e.Trainer.TrainBatchSize != 8 {
		t.Errorf("nested defaults not applied: %+v", e)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exp.yaml")
	doc := `
model:
  repo: gpt2-medium
dataset:
  fraction: 0.25
  seed: 7
lora:
  r: 16
  alpha: 32
trainer:
  epochs: 5
  train_batch_size: 4
hub:
  repo: me/agnews-lora
  push: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	e, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if e.Model.Repo != "gpt2-medium" || e.Dataset.Fraction != 0.25 || e.Dataset.Seed != 7 {
		t.Errorf("overrides lost: %+v", e)
	}
	if e.Lora.R != 16 || e.Lora.Alpha != 32 {
		t.Errorf("lora overrides lost: %+v", e.Lora)
	}
	if e.Trainer.Epochs != 5 || e.Trainer.TrainBatchSize != 4 {
		t.Errorf("trainer overrides lost: %+v", e.Trainer)
	}
	// untouched fields still default
	if e.Model.CacheDir != "models" || e.Trainer.LearningRate != 1e-4 {
		t.Errorf("defaults lost under overrides: %+v", e)
	}
	if !e.Hub.Push || e.Hub.Repo != "me/agnews-lora" {
		t.Errorf("hub section lost: %+v", e.Hub)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	e := Default()
	e.Dataset.Fraction = 1.5
	if err := e.Validate(); err == nil {
		t.Error("expected error for fraction > 1")
	}
	e = Default()
	e.Hub.Push = true
	if err := e.Validate(); err == nil {
		t.Error("expected error for push without repo")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("model: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
