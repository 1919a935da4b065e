package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ncastellani/centavo"
)

type holdingsCmd struct {
	account  string
	price    string
	currency string
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display open positions valued at a price" }
func (*holdingsCmd) Usage() string {
	return `centavo holdings -a <account> -price <price> [-c <currency>]

  Displays the account's open positions valued at the given per-unit
  price, with their variation against average cost.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "account id")
	f.StringVar(&c.price, "price", "", "current per-unit price")
	f.StringVar(&c.currency, "c", "ARS", "price currency")
}

func (c *holdingsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	holdings, err := engine.Holdings(ctx, c.account)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing holdings: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Instrument\tQuantity\tAvgCost\tPrice\tValue\tVar%%\n")
	for _, h := range holdings {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\t%s\n",
			h.Instrument, h.Quantity, h.AvgCost, h.Price, h.MarketValue, h.VariationPct.StringFixed(2))
	}
	return subcommands.ExitSuccess
}
