// internal/aggregator/fee.go
package aggregator

import (
	"github.com/holiman/uint256"
)

var bpsDenominator = uint256.NewInt(MaxFeeBps)

// ComputeFee returns floor(amount * feeBps / 10000). The product is taken in
// 256 bits so it cannot overflow; the quotient must fit in 64 bits.
func ComputeFee(amount uint64, feeBps uint16) (uint64, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(feeBps)))
	fee := product.Div(product, bpsDenominator)
	if !fee.IsUint64() {
		return 0, ErrNumericalOverflow
	}
	return fee.Uint64(), nil
}

// Settle splits a realized amount into the protocol fee and what the user keeps.
func Settle(realized uint64, feeBps uint16) (fee, userReceive uint64, err error) {
	fee, err = ComputeFee(realized, feeBps)
	if err != nil {
		return 0, 0, err
	}
	if fee > realized {
		return 0, 0, ErrNumericalOverflow
	}
	return fee, realized - fee, nil
}
