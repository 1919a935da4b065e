package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ncastellani/centavo"
)

type buyCmd struct {
	account    string
	instrument string
	quantity   string
	price      string
	currency   string
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "buy units of an instrument" }
func (*buyCmd) Usage() string {
	return `centavo buy -a <account> -i <instrument> -q <quantity> -price <price> [-c <currency>]

  Debits quantity x price from the account, blends the price into the
  position's weighted-average cost and records the buy.
`
}

func (c *buyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "account id")
	f.StringVar(&c.instrument, "i", "", "instrument id")
	f.StringVar(&c.quantity, "q", "", "units to buy")
	f.StringVar(&c.price, "price", "", "current per-unit price")
	f.StringVar(&c.currency, "c", "ARS", "price currency")
}

func (c *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	pos, record, err := engine.Buy(ctx, c.account, c.instrument, quantity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error buying: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("tx %d: bought %s %s at %s, position %s @ avg %s\n",
		record.ID, record.Quantity, c.instrument, record.Price, pos.Quantity, pos.AvgCost)
	return subcommands.ExitSuccess
}
