package main

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Noofbiz/avaActions/datasets"
	"github.com/Noofbiz/avaActions/simple"
)

// defaultConfigJSON is used when no --config file is given, and as the base
// that a config file overrides field by field.
//
//go:embed default_config.json
var defaultConfigJSON []byte

type windowConfig struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Step  int `json:"step"`
}

type trainingConfig struct {
	Optimizer    string  `json:"optimizer"`
	LearningRate float64 `json:"learning_rate"`
	Epochs       int     `json:"epochs"`
	BatchSize    int     `json:"batch_size"`
	AdamBeta1    float64 `json:"adam_beta1"`
	AdamBeta2    float64 `json:"adam_beta2"`
	AdamEps      float64 `json:"adam_eps"`
	ClipNorm     float32 `json:"clip_norm"`
	Seed         int64   `json:"seed"`
}

type sweepConfig struct {
	NHU1 []int `json:"nhu1"`
	NHU2 []int `json:"nhu2"`
}

type config struct {
	Classes          string         `json:"classes"`
	TrainAnnotations string         `json:"train_annotations"`
	ValAnnotations   string         `json:"val_annotations"`
	TrainContext     string         `json:"train_context"`
	ValContext       string         `json:"val_context"`
	OutputDir        string         `json:"output_dir"`
	ContextDim       int            `json:"context_dim"`
	Window           windowConfig   `json:"window"`
	Strict           bool           `json:"strict"`
	Training         trainingConfig `json:"training"`
	Sweep            sweepConfig    `json:"sweep"`
}

// loadConfig decodes the embedded defaults and then, if path is set, the
// file at path on top of them.
func loadConfig(path string) (*config, error) {
	var cfg config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("decode default config: %w", err)
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	return &cfg, nil
}

func (c *config) validate() error {
	if c.ContextDim <= 0 {
		return fmt.Errorf("context_dim must be positive, got %d", c.ContextDim)
	}
	if len(c.Sweep.NHU1) == 0 {
		return errors.New("sweep.nhu1 is empty")
	}
	if len(c.Sweep.NHU1) != len(c.Sweep.NHU2) {
		return fmt.Errorf("sweep.nhu1 has %d entries but sweep.nhu2 has %d", len(c.Sweep.NHU1), len(c.Sweep.NHU2))
	}
	if c.Window.Step <= 0 || c.Window.Start < 1 || c.Window.End < c.Window.Start {
		return fmt.Errorf("invalid window %+v", c.Window)
	}
	if c.Classes == "" || c.TrainAnnotations == "" || c.TrainContext == "" {
		return errors.New("classes, train_annotations and train_context are required")
	}
	return nil
}

func (c *config) window() datasets.Window {
	return datasets.Window{Start: c.Window.Start, End: c.Window.End, Step: c.Window.Step}
}

// modelConfig returns the model configuration for one sweep entry.
func (c *config) modelConfig(nhu1, nhu2 int, tax datasets.Taxonomy) simple.Config {
	t := c.Training
	return simple.Config{
		InputDim:     c.ContextDim,
		HiddenSizes:  []int{nhu1, nhu2},
		Heads:        simple.Heads{Pose: tax.Pose, Object: tax.Object, Human: tax.Human},
		LearningRate: t.LearningRate,
		Epochs:       t.Epochs,
		BatchSize:    t.BatchSize,
		Seed:         t.Seed,
		Optimizer:    t.Optimizer,
		Beta1:        t.AdamBeta1,
		Beta2:        t.AdamBeta2,
		Epsilon:      t.AdamEps,
		ClipNorm:     t.ClipNorm,
	}
}
