package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ncastellani/centavo"
)

type depositCmd struct {
	account  string
	amount   string
	currency string
	memo     string
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "credit cash into an account" }
func (*depositCmd) Usage() string {
	return `centavo deposit -a <account> -q <amount> [-c <currency>] [-m <memo>]

  Credits the amount into the account and records a deposit transaction.
`
}

func (c *depositCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "account id")
	f.StringVar(&c.amount, "q", "", "amount to deposit, e.g. 1500.00")
	f.StringVar(&c.currency, "c", "ARS", "amount currency")
	f.StringVar(&c.memo, "m", "", "free-form description")
}

func (c *depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := centavo.ParseMoney(c.amount, c.currency)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	_, _, svc, err := Services(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	a, tx, err := svc.Deposit(ctx, c.account, amount, c.memo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error depositing: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("tx %d: deposited %s, balance %s\n", tx.ID, tx.Amount, a.Balance)
	return subcommands.ExitSuccess
}
