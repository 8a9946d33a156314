package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lorafine/classifier/config"
	"github.com/lorafine/classifier/datasets/agnews"
	"github.com/lorafine/classifier/hub"
	"github.com/lorafine/classifier/lora"
	"github.com/lorafine/classifier/model"
	"github.com/lorafine/classifier/trainer"
)

func newTrainCommand() *cobra.Command {
	var showMismatches int
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fine-tune the adapter on AG News and keep the best checkpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exp, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			exp.Lora.BaseModel = exp.Model.Repo
			ctx := cmd.Context()

			// publishing fails on a missing token; check before the
			// expensive part so a long run never ends in that error
			var pub *hub.Client
			if exp.Hub.Push {
				if pub, err = hub.NewFromEnv(); err != nil {
					return err
				}
			}

			dir, err := fetchBackbone(ctx, exp)
			if err != nil {
				return err
			}
			tok, w, mcfg, err := loadBackbone(dir)
			if err != nil {
				return err
			}
			trainSet, testSet, err := loadSplits(ctx, exp, tok)
			if err != nil {
				return err
			}

			summary := lora.Report(mcfg.Dims(), exp.Lora, agnews.NumLabels)
			log.Info(summary.String())

			trainClf, err := model.NewClassifier(mcfg, w, exp.Lora, agnews.NumLabels,
				exp.Trainer.TrainBatchSize, exp.Trainer.SeqLen, true)
			if err != nil {
				return err
			}
			defer trainClf.Close()
			evalClf, err := model.NewClassifier(mcfg, w, exp.Lora, agnews.NumLabels,
				exp.Trainer.EvalBatchSize, exp.Trainer.SeqLen, false)
			if err != nil {
				return err
			}
			defer evalClf.Close()

			tr, err := trainer.New(exp.Trainer, exp.Lora, trainClf, evalClf, log.Default())
			if err != nil {
				return err
			}
			res, err := tr.Train(ctx, trainSet, testSet)
			if err != nil {
				return err
			}
			log.Info("training finished",
				"best_epoch", res.BestEpoch,
				"best_eval_loss", res.BestLoss,
				"artifact", exp.Trainer.OutputDir)

			if err := evalClf.SetAdapterState(res.State); err != nil {
				return err
			}
			if err := inspect(evalClf, testSet, evalClf.BatchSize(), showMismatches); err != nil {
				return err
			}

			if exp.Hub.Push {
				if err := publish(ctx, pub, exp.Hub, exp.Trainer.OutputDir); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&showMismatches, "mismatches", 5, "mispredicted examples to print after training")
	return cmd
}
