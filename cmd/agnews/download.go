package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lorafine/classifier/config"
	"github.com/lorafine/classifier/datasets/agnews"
)

func newDownloadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Fetch the pretrained checkpoint and the AG News corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exp, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			dir, err := fetchBackbone(ctx, exp)
			if err != nil {
				return err
			}
			log.Info("checkpoint ready", "repo", exp.Model.Repo, "dir", dir)
			if err := agnews.Download(ctx, exp.Dataset.Dir, exp.Dataset.BaseURL, "train", "test"); err != nil {
				return err
			}
			log.Info("corpus ready", "dir", exp.Dataset.Dir)
			return nil
		},
	}
}
