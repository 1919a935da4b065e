// Package centavo is the ledger and portfolio accounting core of a
// personal-finance product.
//
// It owns the money-movement invariants: account balances never go
// negative, transfers conserve value across both accounts, every
// balance-affecting operation records its transactions atomically with
// the mutation, and investment positions carry a weighted-average cost
// basis that only buys may change.
//
// The package is transport agnostic. Request handlers drive it through
// AccountService, TransferEngine and PortfolioEngine; identity
// resolution and instrument pricing are ports (Resolver, PriceFeed)
// supplied by the caller.
package centavo
