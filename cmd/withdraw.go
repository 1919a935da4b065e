package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ncastellani/centavo"
)

type withdrawCmd struct {
	account  string
	amount   string
	currency string
	memo     string
}

func (*withdrawCmd) Name() string     { return "withdraw" }
func (*withdrawCmd) Synopsis() string { return "debit cash from an account" }
func (*withdrawCmd) Usage() string {
	return `centavo withdraw -a <account> -q <amount> [-c <currency>] [-m <memo>]

  Debits the amount from the account and records a withdraw transaction.
  Fails if the balance would go negative.
`
}

func (c *withdrawCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "account id")
	f.StringVar(&c.amount, "q", "", "amount to withdraw, e.g. 200.00")
	f.StringVar(&c.currency, "c", "ARS", "amount currency")
	f.StringVar(&c.memo, "m", "", "free-form description")
}

func (c *withdrawCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	a, tx, err := svc.Withdraw(ctx, c.account, amount, c.memo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error withdrawing: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("tx %d: withdrew %s, balance %s\n", tx.ID, tx.Amount, a.Balance)
	return subcommands.ExitSuccess
}
