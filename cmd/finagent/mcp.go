package main

import (
	"github.com/castlemilk/finagent/internal/extraction"
	"github.com/castlemilk/finagent/internal/mcpserver"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve finagent tools over MCP on stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing
extract_text, classify_document, ingest_document, search_documents,
get_profile and get_spending_trends. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		mcpserver.Version = Version
		s := mcpserver.New(a.svc, extraction.NewTextExtractor(logger, nil), logger)
		return mcpserver.Serve(s, logger)
	},
}
