package cmd

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var costsMonthFlag string

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show recorded spend from the cost ledger",
	Args:  cobra.NoArgs,
	RunE:  runCosts,
}

func init() {
	costsCmd.Flags().StringVar(&costsMonthFlag, "month", "", "month to report in YYYY-MM form (default: current)")
	rootCmd.AddCommand(costsCmd)
}

func runCosts(cmd *cobra.Command, args []string) error {
	st, err := buildStack(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if st.store == nil {
		return errors.New("no cost ledger configured; set ledger.path in the config file")
	}

	ctx := cmd.Context()
	totals, err := st.store.Totals(ctx)
	if err != nil {
		return err
	}
	month := costsMonthFlag
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	spend, err := st.store.MonthSpend(ctx, month)
	if err != nil {
		return err
	}
	byProvider, err := st.store.TotalByProvider(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(ioOut, "records: %d\n", totals.Records)
	fmt.Fprintf(ioOut, "total:   $%.4f (%d tokens)\n", totals.Cost, totals.Tokens)
	fmt.Fprintf(ioOut, "%s: $%.4f\n", month, spend)
	if st.cfg.Budget.MonthlyUSD > 0 {
		fmt.Fprintf(ioOut, "budget:  $%.2f/month\n", st.cfg.Budget.MonthlyUSD)
	}

	names := make([]string, 0, len(byProvider))
	for name := range byProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := byProvider[name]
		fmt.Fprintf(ioOut, "  %-16s $%.4f (%d tokens)\n", name, t.Cost, t.Tokens)
	}
	return nil
}
