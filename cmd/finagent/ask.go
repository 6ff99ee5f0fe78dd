package main

import (
	"fmt"
	"strings"

	"github.com/castlemilk/finagent/internal/service"
	"github.com/spf13/cobra"
)

var (
	askNoRAG       bool
	askShowContext bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about your finances",
	Long: `Answer a question from the finance profile and, unless --no-rag is set,
from excerpts of ingested documents. Needs an LLM API key in settings or
configuration.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	addRemoteFlags(askCmd)
	askCmd.Flags().BoolVar(&askNoRAG, "no-rag", false, "answer from the profile only")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "print the document excerpts used")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	agent, closeFn, err := openAgent(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	useRAG := !askNoRAG
	resp, err := agent.Chat(ctx, &service.ChatRequest{
		Message: strings.Join(args, " "),
		UseRAG:  &useRAG,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, resp)
	}
	if askShowContext && resp.ContextUsed != "" {
		fmt.Fprintf(out, "Context:\n%s\n\n", resp.ContextUsed)
	}
	fmt.Fprintln(out, resp.Response)
	return nil
}
