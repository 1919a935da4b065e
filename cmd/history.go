package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ncastellani/centavo"
)

type historyCmd struct {
	account string
	page    int
	size    int
	asc     bool
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list an account's cash transactions" }
func (*historyCmd) Usage() string {
	return `centavo history -a <account> [-p <page>] [-n <size>] [-asc]

  Lists the account's cash transactions, newest first by default.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "account id")
	f.IntVar(&c.page, "p", 1, "page number")
	f.IntVar(&c.size, "n", 20, "page size")
	f.BoolVar(&c.asc, "asc", false, "oldest first")
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, _, svc, err := Services(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	txs, err := svc.ListTransactions(ctx, c.account, centavo.Page{Number: c.page, Size: c.size, Desc: !c.asc})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing transactions: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("ID\tDate\t\t\tKind\t\tAmount\tCounterparty\tDescription\n")
	for _, tx := range txs {
		fmt.Printf("%d\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.CreatedAt.Format("2006-01-02 15:04:05"), tx.Kind, tx.Amount, tx.Counterparty, tx.Description)
	}
	return subcommands.ExitSuccess
}
