package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"

	"github.com/hirosato/dues-ledger/internal/domain/ledger"
)

type verifyCmd struct {
	driftOnly bool
}

func (*verifyCmd) Name() string { return "verify" }
func (*verifyCmd) Synopsis() string {
	return "compare stored balances with the balances derived from the ledger"
}
func (*verifyCmd) Usage() string {
	return `operation verify [-drift-only] [accountId...]

  Recomputes each account's balance from its ledger entries and reports any
  difference from the stored balance. All accounts are checked when no ids
  are given. Drift is reported, never repaired. Exits 1 when any account
  drifted or could not be checked.
`
}

func (c *verifyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.driftOnly, "drift-only", false, "Only print accounts that drifted or failed.")
}

func (c *verifyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	application, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer application.Close()

	accountIDs := f.Args()
	if len(accountIDs) == 0 {
		if accountIDs, err = application.Accounts.ListAccountIDs(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list accounts: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	fmt.Printf("Verifying %d account(s) on %s\n", len(accountIDs), application.Config.StoreBackend)
	var s verifySummary
	for _, id := range accountIDs {
		report, err := application.Ledger.Verify(ctx, id)
		s.print(os.Stdout, id, report, err, c.driftOnly)
	}
	fmt.Printf("%d consistent, %d drifted, %d failed\n", s.consistent, s.drifted, s.failed)

	if s.drifted > 0 || s.failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type verifySummary struct {
	consistent, drifted, failed int
}

func (s *verifySummary) print(w io.Writer, id string, report *ledger.ConsistencyReport, err error, driftOnly bool) {
	switch {
	case err != nil:
		s.failed++
		fmt.Fprintf(w, "ERROR  %s: %v\n", id, err)
	case report.Consistent:
		s.consistent++
		if !driftOnly {
			fmt.Fprintf(w, "OK     %s balance=%s entries=%d\n", id, humanize.Commaf(report.StoredBalance.InexactFloat64()), report.EntryCount)
		}
	default:
		s.drifted++
		fmt.Fprintf(w, "DRIFT  %s stored=%s derived=%s drift=%s\n", id,
			report.StoredBalance.String(), report.DerivedBalance.String(), report.Drift.String())
	}
}
