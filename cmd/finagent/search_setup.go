package main

import (
	"fmt"

	"github.com/castlemilk/finagent/internal/search"
	"github.com/castlemilk/finagent/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var searchSetupReindex bool

var searchSetupCmd = &cobra.Command{
	Use:   "search-setup",
	Short: "Configure the Algolia index and optionally reindex the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !cfg.Search.Enabled() {
			return fmt.Errorf("algolia is not configured: set ALGOLIA_APP_ID and ALGOLIA_API_KEY")
		}
		client, err := search.NewAlgoliaClient(search.Config{
			AppID:     cfg.Search.AlgoliaAppID,
			APIKey:    cfg.Search.AlgoliaAPIKey,
			IndexName: cfg.Search.IndexName,
		}, logger)
		if err != nil {
			return err
		}
		if err := client.ConfigureIndex(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configured index %q\n", cfg.Search.IndexName)

		if !searchSetupReindex {
			return nil
		}
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.store.ListEntries(ctx, store.EntryFilter{})
		if err != nil {
			return err
		}
		if err := client.IndexEntries(ctx, entries); err != nil {
			return err
		}
		logger.Info("reindexed ledger", zap.Int("entries", len(entries)))
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d entries\n", len(entries))
		return nil
	},
}

func init() {
	searchSetupCmd.Flags().BoolVar(&searchSetupReindex, "reindex", false, "push every ledger entry to the index")
}
