package model

import (
	"fmt"

	"github.com/lorafine/classifier/lora"
)

// Config describes the backbone geometry.
type Config struct {
	VocabSize    int     `json:"vocab_size" yaml:"vocab_size"`
	CtxLen       int     `json:"n_ctx" yaml:"ctx_len"`
	Layers       int     `json:"n_layer" yaml:"layers"`
	Heads        int     `json:"n_head" yaml:"heads"`
	Hidden       int     `json:"n_embd" yaml:"hidden"`
	LayerNormEps float64 `json:"layer_norm_epsilon" yaml:"layer_norm_eps"`
}

// GPT2Small is the 124M-parameter GPT-2 configuration.
func GPT2Small() Config {
	return Config{
		VocabSize:    50257,
		CtxLen:       1024,
		Layers:       12,
		Heads:        12,
		Hidden:       768,
		LayerNormEps: 1e-5,
	}
}

func (c Config) Validate() error {
	if c.VocabSize <= 0 || c.CtxLen <= 0 || c.Layers <= 0 || c.Heads <= 0 || c.Hidden <= 0 {
		return fmt.Errorf("model: all dimensions must be positive: %+v", c)
	}
	if c.Hidden%c.Heads != 0 {
		return fmt.Errorf("model: hidden size %d not divisible by %d heads", c.Hidden, c.Heads)
	}
	return nil
}

// Dims exposes the geometry for parameter counting.
func (c Config) Dims() lora.Dims {
	return lora.Dims{Layers: c.Layers, Hidden: c.Hidden, Vocab: c.VocabSize, CtxLen: c.CtxLen}
}
