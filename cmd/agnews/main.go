// Command agnews fine-tunes a pretrained GPT-2 backbone into a
// four-class news topic classifier with low-rank adapters, evaluates
// the result and publishes the adapter artifact.
package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "agnews",
	Short: "Fine-tune GPT-2 on AG News with low-rank adapters",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// .env is optional; HF_TOKEN may come from the real environment
		_ = godotenv.Load()
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "experiment YAML file (defaults built in)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(newDownloadCommand())
	rootCmd.AddCommand(newTrainCommand())
	rootCmd.AddCommand(newEvalCommand())
	rootCmd.AddCommand(newPublishCommand())
}
