package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"

	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

type historyCmd struct {
	raw bool
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "print an account's ledger with running balances" }
func (*historyCmd) Usage() string {
	return `operation history [-raw] <accountId>

  Prints every ledger entry of the account, newest first, with the balance
  right after each entry and the account totals.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.raw, "raw", false, "Print markdown instead of rendering it for the terminal.")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "history takes exactly one account id")
		return subcommands.ExitUsageError
	}

	application, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer application.Close()

	accountID := f.Arg(0)
	acct, err := application.Accounts.GetAccount(ctx, accountID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	history, err := application.Ledger.History(ctx, accountID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	md := historyMarkdown(acct.Name, history)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}

	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render history: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Print(out)
	return subcommands.ExitSuccess
}

func historyMarkdown(name string, h *ledger.History) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", name, h.AccountID)
	fmt.Fprintf(&b, "Balance **%s** from %d entries. Charges %s, payments %s.\n\n",
		money(h.Balance.InexactFloat64()), h.EntryCount,
		money(h.TotalCharges.InexactFloat64()), money(h.TotalPayments.InexactFloat64()))

	if len(h.Entries) == 0 {
		b.WriteString("No ledger entries.\n")
		return b.String()
	}

	b.WriteString("| Occurred | Type | Amount | Balance | Description | Recorded by |\n")
	b.WriteString("|---|---|---:|---:|---|---|\n")
	for _, e := range h.Entries {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			e.OccurredAt.Format("2006-01-02 15:04"), e.Type,
			money(e.Amount.InexactFloat64()), money(e.RunningBalance.InexactFloat64()),
			strings.ReplaceAll(e.Description, "|", `\|`), e.RecordedBy)
	}
	return b.String()
}

func money(v float64) string {
	return humanize.Commaf(v)
}
