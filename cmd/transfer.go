package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ncastellani/centavo"
)

type transferCmd struct {
	sender   string
	to       string
	amount   string
	currency string
	memo     string
	key      string
}

func (*transferCmd) Name() string     { return "transfer" }
func (*transferCmd) Synopsis() string { return "move cash between two accounts" }
func (*transferCmd) Usage() string {
	return `centavo transfer -a <sender> -to <recipient> -q <amount> [-c <currency>] [-m <memo>] [-k <idempotency-key>]

  Debits the sender and credits the recipient atomically, recording a
  transfer-out and a transfer-in sharing one correlation id. Repeating a
  transfer with the same -k returns the original record.
`
}

func (c *transferCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sender, "a", "", "sender account id")
	f.StringVar(&c.to, "to", "", "recipient account id")
	f.StringVar(&c.amount, "q", "", "amount to transfer, e.g. 200.00")
	f.StringVar(&c.currency, "c", "ARS", "amount currency")
	f.StringVar(&c.memo, "m", "", "free-form description")
	f.StringVar(&c.key, "k", "", "idempotency key for safe retries")
}

func (c *transferCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	amount, err := centavo.ParseMoney(c.amount, c.currency)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	store, rec, _, err := Services(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	engine := centavo.NewTransferEngine(store, rec, accountIDResolver{store: store}, centavo.NewLogger())
	out, err := engine.Transfer(ctx, centavo.TransferRequest{
		Sender:         c.sender,
		Recipient:      c.to,
		Amount:         amount,
		Description:    c.memo,
		IdempotencyKey: c.key,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error transferring: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("tx %d: transferred %s to %s (correlation %s)\n", out.ID, out.Amount, out.Counterparty, out.CorrelationID)
	return subcommands.ExitSuccess
}
