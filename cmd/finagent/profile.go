package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/castlemilk/finagent/internal/profile"
	"github.com/castlemilk/finagent/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var profileTrendDays int

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the finance profile summary",
	Long: `Print net worth, monthly income and expenses, investments, credit
accounts and recent transactions. With --trends, print spending by category
over the last N days instead.`,
	Args: cobra.NoArgs,
	RunE: runProfile,
}

func init() {
	addRemoteFlags(profileCmd)
	profileCmd.Flags().IntVar(&profileTrendDays, "trends", 0, "show spending trends over this many days")
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	agent, closeFn, err := openAgent(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	out := cmd.OutOrStdout()
	if profileTrendDays > 0 {
		resp, err := agent.GetSpendingTrends(ctx, &service.GetSpendingTrendsRequest{Days: profileTrendDays})
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out, resp.Trends)
		}
		printTrends(out, resp.Trends)
		return nil
	}

	resp, err := agent.GetProfile(ctx, &service.GetProfileRequest{})
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(out, resp.Summary)
	}
	printSummary(out, resp.Summary)
	return nil
}

func printSummary(w io.Writer, s *profile.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Net worth\t%s\n", s.NetWorth.StringFixed(2))
	fmt.Fprintf(tw, "Total assets\t%s\n", s.TotalAssets.StringFixed(2))
	fmt.Fprintf(tw, "Total liabilities\t%s\n", s.TotalLiabilities.StringFixed(2))
	fmt.Fprintf(tw, "Monthly income\t%s\n", s.MonthlyIncome.StringFixed(2))
	fmt.Fprintf(tw, "Monthly expenses\t%s\n", s.MonthlyExpenses.StringFixed(2))
	_ = tw.Flush()

	if len(s.InvestmentPortfolio) > 0 {
		fmt.Fprintln(w, "\nInvestments:")
		printAmounts(w, s.InvestmentPortfolio)
	}
	if len(s.CreditAccounts) > 0 {
		fmt.Fprintln(w, "\nCredit accounts:")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, acct := range s.CreditAccounts {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", acct.Institution, acct.AccountNumber, acct.Balance.StringFixed(2))
		}
		_ = tw.Flush()
	}
	if len(s.RecentTransactions) > 0 {
		fmt.Fprintln(w, "\nRecent transactions:")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, txn := range s.RecentTransactions {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", txn.Date, txn.Description, txn.Category, txn.Amount.StringFixed(2))
		}
		_ = tw.Flush()
	}
}

func printTrends(w io.Writer, t *profile.SpendingTrends) {
	fmt.Fprintf(w, "Spending over the last %d days: %s (%s per active day)\n\n",
		t.PeriodDays, t.TotalSpending.StringFixed(2), t.AverageDailySpending.StringFixed(2))
	printAmounts(w, t.CategoryTotals)
}

// printAmounts prints a category table, largest first.
func printAmounts(w io.Writer, amounts map[string]decimal.Decimal) {
	keys := make([]string, 0, len(amounts))
	for k := range amounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := amounts[keys[i]].Cmp(amounts[keys[j]]); c != 0 {
			return c > 0
		}
		return keys[i] < keys[j]
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(tw, "  %s\t%s\n", k, amounts[k].StringFixed(2))
	}
	_ = tw.Flush()
}
