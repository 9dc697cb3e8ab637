// internal/blockchain/token/errors.go
package token

import "fmt"

// Error is a token program error with its on-chain code.
type Error struct {
	Code uint32
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("token error %d: %s", e.Code, e.Msg)
}

// CustomCode returns the numeric program error code.
func (e *Error) CustomCode() uint32 {
	return e.Code
}

var (
	ErrInsufficientFunds    = &Error{Code: 1, Msg: "insufficient funds"}
	ErrMintMismatch         = &Error{Code: 3, Msg: "account not associated with this mint"}
	ErrOwnerMismatch        = &Error{Code: 4, Msg: "owner does not match"}
	ErrUninitializedState   = &Error{Code: 9, Msg: "state is uninitialized"}
	ErrInvalidInstruction   = &Error{Code: 12, Msg: "invalid instruction"}
	ErrOverflow             = &Error{Code: 14, Msg: "operation overflowed"}
	ErrAccountFrozen        = &Error{Code: 17, Msg: "account is frozen"}
	ErrMintDecimalsMismatch = &Error{Code: 18, Msg: "the provided decimals value different from the mint decimals"}
)
