package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type openAccountCmd struct {
	account  string
	currency string
}

func (*openAccountCmd) Name() string     { return "open-account" }
func (*openAccountCmd) Synopsis() string { return "create a new zero-balance account" }
func (*openAccountCmd) Usage() string {
	return `centavo open-account -a <account> [-c <currency>]

  Creates a new account with a zero balance in the given currency.
`
}

func (c *openAccountCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "account id")
	f.StringVar(&c.currency, "c", "ARS", "account currency")
}

func (c *openAccountCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.account == "" {
		fmt.Fprintln(os.Stderr, "missing -a account id")
		return subcommands.ExitUsageError
	}
	_, _, svc, err := Services(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	a, err := svc.OpenAccount(ctx, c.account, c.currency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening account: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Opened account %s (%s)\n", a.ID, c.currency)
	return subcommands.ExitSuccess
}
