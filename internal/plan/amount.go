package plan

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var maxU64 = decimal.NewFromUint64(math.MaxUint64)

// Amount is a UI amount such as "12.5", converted to base units with the
// decimals of its mint.
type Amount struct {
	decimal.Decimal
}

// MustAmount parses s and panics on error. For tests and constants.
func MustAmount(s string) Amount {
	return Amount{decimal.RequireFromString(s)}
}

func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", node.Line)
	}
	d, err := decimal.NewFromString(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q: %w", node.Line, node.Value, err)
	}
	a.Decimal = d
	return nil
}

// BaseUnits converts the amount to an integer number of base units.
func (a Amount) BaseUnits(decimals uint8) (uint64, error) {
	if a.IsNegative() {
		return 0, errors.New("amount is negative")
	}
	units := a.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimals", a.String(), decimals)
	}
	if units.GreaterThan(maxU64) {
		return 0, fmt.Errorf("amount %s overflows u64", a.String())
	}
	return units.BigInt().Uint64(), nil
}

// FormatUnits renders base units with the mint decimals.
func FormatUnits(units uint64, decimals uint8) string {
	return decimal.NewFromUint64(units).Shift(-int32(decimals)).StringFixed(int32(decimals))
}
