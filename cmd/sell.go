package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ncastellani/centavo"
)

type sellCmd struct {
	account    string
	instrument string
	quantity   string
	price      string
	currency   string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell units of an instrument" }
func (*sellCmd) Usage() string {
	return `centavo sell -a <account> -i <instrument> -q <quantity> -price <price> [-c <currency>]

  Credits quantity x price into the account and records the sell. The
  position's average cost is left unchanged.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "account id")
	f.StringVar(&c.instrument, "i", "", "instrument id")
	f.StringVar(&c.quantity, "q", "", "units to sell")
	f.StringVar(&c.price, "price", "", "current per-unit price")
	f.StringVar(&c.currency, "c", "ARS", "price currency")
}

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	quantity, err := centavo.ParseQuantity(c.quantity)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	price, err := centavo.ParseMoney(c.price, c.currency)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	store, rec, _, err := Services(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	engine := centavo.NewPortfolioEngine(store, rec, fixedPriceFeed{price: price}, centavo.NewLogger())
	pos, record, err := engine.Sell(ctx, c.account, c.instrument, quantity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selling: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("tx %d: sold %s %s at %s, position %s @ avg %s\n",
		record.ID, record.Quantity, c.instrument, record.Price, pos.Quantity, pos.AvgCost)
	return subcommands.ExitSuccess
}
