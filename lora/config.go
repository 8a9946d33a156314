package lora

import (
	"fmt"
	"strings"
)

// TaskSeqCls is the only task type this module trains.
const TaskSeqCls = "SEQ_CLS"

// Config is the adapter configuration, mirroring the fields persisted
// into adapter_config.json.
type Config struct {
	TaskType      string   `json:"task_type" yaml:"task_type"`
	InferenceMode bool     `json:"inference_mode" yaml:"inference_mode"`
	R             int      `json:"r" yaml:"r"`
	Alpha         int      `json:"lora_alpha" yaml:"alpha"`
	Dropout       float64  `json:"lora_dropout" yaml:"dropout"`
	TargetModules []string `json:"target_modules" yaml:"target_modules"`
	BaseModel     string   `json:"base_model_name_or_path,omitempty" yaml:"base_model,omitempty"`
}

// Default returns the adapter configuration used when the experiment
// file leaves the lora section empty.
func Default() Config {
	return Config{
		TaskType:      TaskSeqCls,
		R:             8,
		Alpha:         16,
		Dropout:       0.1,
		TargetModules: []string{"c_attn"},
	}
}

// Validate fills zero values with defaults and rejects unusable
// configurations.
func (c *Config) Validate() error {
	d := Default()
	if c.TaskType == "" {
		c.TaskType = d.TaskType
	}
	if c.R == 0 {
		c.R = d.R
	}
	if c.Alpha == 0 {
		c.Alpha = d.Alpha
	}
	if len(c.TargetModules) == 0 {
		c.TargetModules = d.TargetModules
	}
	if c.TaskType != TaskSeqCls {
		return fmt.Errorf("lora: unsupported task type %q", c.TaskType)
	}
	if c.R < 1 {
		return fmt.Errorf("lora: rank must be positive, got %d", c.R)
	}
	if c.Alpha < 1 {
		return fmt.Errorf("lora: alpha must be positive, got %d", c.Alpha)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("lora: dropout must be in [0,1), got %g", c.Dropout)
	}
	return nil
}

// Scale is the adapter output multiplier alpha/r.
func (c Config) Scale() float64 {
	return float64(c.Alpha) / float64(c.R)
}

// Targets reports whether the named projection is wrapped with an
// adapter. Names are qualified like "attn.c_attn"; a target module
// matches on any dot-separated suffix component, following the
// convention of adapter configs that list just "c_attn".
func (c Config) Targets(name string) bool {
	for _, t := range c.TargetModules {
		if name == t || strings.HasSuffix(name, "."+t) {
			return true
		}
	}
	return false
}
