package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lorafine/classifier/config"
	"github.com/lorafine/classifier/datasets"
	"github.com/lorafine/classifier/datasets/agnews"
	"github.com/lorafine/classifier/hub"
	"github.com/lorafine/classifier/model"
	"github.com/lorafine/classifier/tokenizer"
)

// backboneFiles are what a GPT-2 checkpoint repo must provide.
var backboneFiles = []string{"vocab.json", "merges.txt", model.WeightsFile}

// fetchBackbone resolves the pretrained checkpoint into the local
// cache and returns its directory.
func fetchBackbone(ctx context.Context, exp config.Experiment) (string, error) {
	// token is optional here, public checkpoints resolve anonymously
	c := hub.NewClient("")
	dir := filepath.Join(exp.Model.CacheDir, strings.ReplaceAll(exp.Model.Repo, "/", "--"))
	for _, name := range backboneFiles {
		path, err := c.DownloadFile(ctx, exp.Model.Repo, exp.Model.Revision, name, dir)
		if err != nil {
			return "", err
		}
		log.Debug("resolved", "file", path)
	}
	return dir, nil
}

// loadBackbone reads the tokenizer and weights out of a fetched
// checkpoint directory.
func loadBackbone(dir string) (*tokenizer.Tokenizer, *model.Weights, model.Config, error) {
	cfg := model.GPT2Small()
	tok, err := tokenizer.Load(filepath.Join(dir, "vocab.json"), filepath.Join(dir, "merges.txt"))
	if err != nil {
		return nil, nil, cfg, err
	}
	if tok.VocabSize() > cfg.VocabSize {
		return nil, nil, cfg, fmt.Errorf("tokenizer has %d entries, model embeds %d", tok.VocabSize(), cfg.VocabSize)
	}
	w, err := model.LoadWeights(dir, cfg)
	if err != nil {
		return nil, nil, cfg, err
	}
	return tok, w, cfg, nil
}

// loadSplits downloads the corpus if needed, subsamples each split
// with the configured fraction and seed, and tokenizes to fixed
// length.
func loadSplits(ctx context.Context, exp config.Experiment, tok *tokenizer.Tokenizer) (train, test []datasets.Encoded, err error) {
	if err := agnews.Download(ctx, exp.Dataset.Dir, exp.Dataset.BaseURL, "train", "test"); err != nil {
		return nil, nil, err
	}
	splits, err := agnews.Load(exp.Dataset.Dir, "train", "test")
	if err != nil {
		return nil, nil, err
	}
	for name, split := range splits {
		sub := datasets.Subsample(split, exp.Dataset.Fraction, exp.Dataset.Seed)
		log.Info("subsampled", "split", name, "kept", len(sub), "of", len(split), "fraction", exp.Dataset.Fraction)
		enc := datasets.Tokenize(sub, tok, exp.Trainer.SeqLen)
		switch name {
		case "train":
			train = enc
		case "test":
			test = enc
		}
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("corpus is missing a split (train %d, test %d examples)", len(train), len(test))
	}
	return train, test, nil
}
