package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/castlemilk/finagent/internal/service"
	"github.com/spf13/cobra"
)

var (
	searchDocs     bool
	searchCategory string
	searchFrom     string
	searchTo       string
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search transactions, or document text with --docs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	addRemoteFlags(searchCmd)
	searchCmd.Flags().BoolVar(&searchDocs, "docs", false, "search ingested document text instead of transactions")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "only transactions in this category")
	searchCmd.Flags().StringVar(&searchFrom, "from", "", "start date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchTo, "to", "", "end date, inclusive (YYYY-MM-DD)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	agent, closeFn, err := openAgent(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	query := strings.Join(args, " ")
	out := cmd.OutOrStdout()

	if searchDocs {
		resp, err := agent.SearchDocuments(ctx, &service.SearchDocumentsRequest{Query: query, N: searchLimit})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out, resp.Results)
		}
		for _, r := range resp.Results {
			fmt.Fprintf(out, "[%.2f] %s (%s)\n%s\n\n", r.RelevanceScore, r.Metadata["filename"], r.ID, r.Document)
		}
		return nil
	}

	resp, err := agent.SearchTransactions(ctx, &service.SearchTransactionsRequest{
		Query:     query,
		Category:  searchCategory,
		StartDate: searchFrom,
		EndDate:   searchTo,
		PageSize:  searchLimit,
	})
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(out, resp.Results)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, hit := range resp.Results.Hits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", hit.Date.Format("2006-01-02"), hit.Description, hit.Category, hit.Amount.StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "%d of %d matches\n", len(resp.Results.Hits), resp.Results.TotalCount)
	return nil
}
