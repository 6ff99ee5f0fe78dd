// Command finagent is a personal finance assistant: it ingests financial
// PDFs into a local profile and answers questions about them.
package main

import (
	"fmt"
	"os"

	"github.com/castlemilk/finagent/internal/config"
	"github.com/castlemilk/finagent/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "finagent",
	Short:         "Personal finance assistant for statements and tax documents",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Long: `finagent extracts text and transactions from financial PDFs, keeps a
finance profile of the results, indexes the documents for retrieval and
answers questions with an LLM of your choice.

Configuration is read from ~/.finagent/finagent.yaml (or FINAGENT_HOME)
and environment variables such as OPENAI_API_KEY and FINAGENT_API_TOKEN.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.finagent/finagent.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(
		serveCmd,
		ingestCmd,
		askCmd,
		profileCmd,
		searchCmd,
		mcpCmd,
		tokenCmd,
		searchSetupCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
