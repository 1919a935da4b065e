package centavo

import (
	"fmt"

	"github.com/Rhymond/go-money"
)

// ValidateCurrency checks that the code names a known ISO currency.
func ValidateCurrency(code string) error {
	if money.GetCurrency(code) == nil {
		return fmt.Errorf("unknown currency %q: %w", code, ErrInvalidArgument)
	}
	return nil
}
