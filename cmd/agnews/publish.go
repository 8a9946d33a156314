package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lorafine/classifier/config"
	"github.com/lorafine/classifier/hub"
)

func newPublishCommand() *cobra.Command {
	var adapterDir, message string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload a trained adapter artifact to the Hub",
		RunE: func(cmd *cobra.Command, _ []string) error {
			exp, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			if exp.Hub.Repo == "" {
				return fmt.Errorf("hub.repo is not set in the experiment config")
			}
			c, err := hub.NewFromEnv()
			if err != nil {
				return err
			}
			if adapterDir == "" {
				adapterDir = exp.Trainer.OutputDir
			}
			if message == "" {
				message = "Upload AG News adapter"
			}
			h := exp.Hub
			if err := c.CreateRepo(cmd.Context(), h.Repo, h.Private); err != nil {
				return err
			}
			if err := c.UploadFolder(cmd.Context(), h.Repo, adapterDir, message); err != nil {
				return err
			}
			log.Info("published", "repo", h.Repo, "dir", adapterDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&adapterDir, "adapter", "", "adapter artifact dir (defaults to the trainer output dir)")
	cmd.Flags().StringVar(&message, "message", "", "commit message")
	return cmd
}

// publish is the post-training push used by the train command.
func publish(ctx context.Context, c *hub.Client, h config.Hub, dir string) error {
	if err := c.CreateRepo(ctx, h.Repo, h.Private); err != nil {
		return err
	}
	if err := c.UploadFolder(ctx, h.Repo, dir, "Upload AG News adapter"); err != nil {
		return err
	}
	log.Info("published", "repo", h.Repo, "dir", dir)
	return nil
}
