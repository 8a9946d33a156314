package trainer

import (
	"testing"

	"gorgonia.org/tensor"

	"github.com/lorafine/classifier/lora"
)

func TestArgumentsDefaults(t *testing.T) {
	var a Arguments
	if err := a.Validate(); err != nil {
		t.Fatal(err)
	}
	d := DefaultArguments()
	if a.TrainBatchSize != d.TrainBatchSize || a.LearningRate != d.LearningRate ||
		a.Epochs != d.Epochs || a.SeqLen != d.SeqLen || a.Seed != d.Seed {
		t.Errorf("defaults not applied: %+v", a)
	}
	if a.RunName == "" {
		t.Error("expected a generated run name")
	}
}

func TestArgumentsValidate(t *testing.T) {
	cases := []Arguments{
		{LearningRate: -1},
		{TrainBatchSize: -4},
		{Epochs: -1},
		{WeightDecay: -0.1},
		{SeqLen: -8},
	}
	for i, a := range cases {
		if err := a.Validate(); err == nil {
			t.Errorf("case %d: expected validation error for %+v", i, a)
		}
	}
}

func TestBatches(t *testing.T) {
	spans := batches(10, 3)
	if len(spans) != 3 {
		t.Fatalf("got %d spans, want 3 (remainder dropped)", len(spans))
	}
	for i, sp := range spans {
		if sp[0] != i*3 || sp[1] != i*3+3 {
			t.Errorf("span %d = %v", i, sp)
		}
	}
	if got := batches(2, 3); got != nil {
		t.Errorf("expected no spans when n < size, got %v", got)
	}
	if got := batches(6, 3); len(got) != 2 {
		t.Errorf("exact fit: got %d spans, want 2", len(got))
	}
}

func TestAdapterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	state := map[string]*tensor.Dense{
		"h.0.attn.c_attn.lora_A": tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float32{1, 2, 3, 4, 5, 6})),
		"score.weight":           tensor.New(tensor.WithShape(2, 4), tensor.WithBacking(make([]float32, 8))),
	}
	lcfg := lora.Default()
	args := DefaultArguments()
	if err := SaveAdapter(dir, state, lcfg, args); err != nil {
		t.Fatal(err)
	}
	got, gotCfg, err := LoadAdapter(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !gotCfg.InferenceMode {
		t.Error("saved adapter config should be flagged for inference")
	}
	if gotCfg.R != lcfg.R || gotCfg.Alpha != lcfg.Alpha {
		t.Errorf("adapter config changed: %+v", gotCfg)
	}
	if len(got) != len(state) {
		t.Fatalf("got %d tensors, want %d", len(got), len(state))
	}
	a := got["h.0.attn.c_attn.lora_A"]
	if a == nil || !a.Shape().Eq(tensor.Shape{2, 3}) {
		t.Fatalf("lora_A missing or misshapen: %v", a)
	}
	if a.Data().([]float32)[4] != 5 {
		t.Errorf("lora_A data corrupted: %v", a.Data())
	}
}
