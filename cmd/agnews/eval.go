package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lorafine/classifier/config"
	"github.com/lorafine/classifier/datasets"
	"github.com/lorafine/classifier/datasets/agnews"
	"github.com/lorafine/classifier/inference"
	"github.com/lorafine/classifier/model"
	"github.com/lorafine/classifier/trainer"
)

func newEvalCommand() *cobra.Command {
	var adapterDir string
	var showMismatches int
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score a trained adapter on the held-out split",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exp, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if adapterDir == "" {
				adapterDir = exp.Trainer.OutputDir
			}
			state, lcfg, err := trainer.LoadAdapter(adapterDir)
			if err != nil {
				return err
			}

			dir, err := fetchBackbone(ctx, exp)
			if err != nil {
				return err
			}
			tok, w, mcfg, err := loadBackbone(dir)
			if err != nil {
				return err
			}
			_, testSet, err := loadSplits(ctx, exp, tok)
			if err != nil {
				return err
			}

			clf, err := model.NewClassifier(mcfg, w, lcfg, agnews.NumLabels,
				exp.Trainer.EvalBatchSize, exp.Trainer.SeqLen, false)
			if err != nil {
				return err
			}
			defer clf.Close()
			if err := clf.SetAdapterState(state); err != nil {
				return err
			}
			return inspect(clf, testSet, clf.BatchSize(), showMismatches)
		},
	}
	cmd.Flags().StringVar(&adapterDir, "adapter", "", "adapter artifact dir (defaults to the trainer output dir)")
	cmd.Flags().IntVar(&showMismatches, "mismatches", 5, "mispredicted examples to print")
	return cmd
}

// inspect reports accuracy over the set and prints a handful of
// mispredicted examples for qualitative review.
func inspect(s inference.Scorer, set []datasets.Encoded, batchSize, show int) error {
	pred, err := inference.Predict(s, set, batchSize)
	if err != nil {
		return err
	}
	labels := make([]int, len(set))
	for i, ex := range set {
		labels[i] = ex.Label
	}
	acc, err := inference.Accuracy(pred, labels)
	if err != nil {
		return err
	}
	recs, err := inference.Records(set, pred)
	if err != nil {
		return err
	}
	mm := inference.Mismatches(recs)
	log.Info("evaluation", "examples", len(set), "accuracy", acc, "mispredicted", len(mm))
	for i, r := range mm {
		if i >= show {
			break
		}
		log.Info("mispredicted",
			"true", agnews.Labels[r.Label],
			"predicted", agnews.Labels[r.Predicted],
			"text", truncate(r.Text, 120))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
