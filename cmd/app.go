// Package cmd implements the CLI application to operate a centavo ledger.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/ncastellani/centavo"
)

// Register the subcommands.
// A main package calls Register() and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&openAccountCmd{}, "accounts")
	c.Register(&historyCmd{}, "accounts")

	c.Register(&depositCmd{}, "cash")
	c.Register(&withdrawCmd{}, "cash")
	c.Register(&transferCmd{}, "cash")

	c.Register(&buyCmd{}, "investments")
	c.Register(&sellCmd{}, "investments")
	c.Register(&holdingsCmd{}, "investments")
}

// as a CLI application it is short lived, so globals are fine here.

var dbPath = flag.String("db", "", "Path to the ledger database (defaults to $CENTAVO_DB, then centavo.db)")

// OpenStore opens the ledger database configured by flag or environment.
// A .env file next to the binary is honored, in the wallet tool tradition.
func OpenStore() (*centavo.GormStore, error) {
	_ = godotenv.Load()
	path := *dbPath
	if path == "" {
		path = os.Getenv("CENTAVO_DB")
	}
	if path == "" {
		path = "centavo.db"
	}
	store, err := centavo.OpenGormStore(path)
	if err != nil {
		return nil, fmt.Errorf("could not open ledger %q: %w", path, err)
	}
	return store, nil
}

// Services wires the account service shared by most commands.
func Services(ctx context.Context) (*centavo.GormStore, *centavo.Recorder, *centavo.AccountService, error) {
	store, err := OpenStore()
	if err != nil {
		return nil, nil, nil, err
	}
	rec, err := centavo.NewRecorder(ctx, store)
	if err != nil {
		return nil, nil, nil, err
	}
	svc := centavo.NewAccountService(store, rec, centavo.NewLogger())
	return store, rec, svc, nil
}

// accountIDResolver treats a transfer identifier as a literal account id
// and verifies it exists. Production deployments plug a directory service
// into the engine instead; the CLI operates on raw ids.
type accountIDResolver struct {
	store *centavo.GormStore
}

func (r accountIDResolver) ResolveIdentifier(ctx context.Context, identifier string) (string, error) {
	if _, err := r.store.GetAccount(ctx, identifier); err != nil {
		return "", err
	}
	return identifier, nil
}

// fixedPriceFeed serves the single price given on the command line.
type fixedPriceFeed struct {
	price centavo.Money
}

func (f fixedPriceFeed) CurrentPrice(context.Context, string) (centavo.Money, error) {
	if !f.price.IsPositive() {
		return centavo.Money{}, fmt.Errorf("price must be positive, use -price")
	}
	return f.price, nil
}
