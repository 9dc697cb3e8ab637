// internal/aggregator/errors.go
package aggregator

import "fmt"

// ErrorCodeOffset is the first custom error number.
const ErrorCodeOffset = 6000

// Error is a program error with Anchor numbering. Messages never contain a
// period so that log parsers can split on it.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// CustomCode returns the program error number.
func (e *Error) CustomCode() uint32 {
	return e.Code
}

// Framework errors.
var (
	ErrInstructionMissing           = &Error{Code: 100, Name: "InstructionMissing", Msg: "8 byte instruction identifier not provided"}
	ErrInstructionFallbackNotFound  = &Error{Code: 101, Name: "InstructionFallbackNotFound", Msg: "Fallback functions are not supported"}
	ErrInstructionDidNotDeserialize = &Error{Code: 102, Name: "InstructionDidNotDeserialize", Msg: "The program could not deserialize the given instruction"}
	ErrConstraintMut                = &Error{Code: 2000, Name: "ConstraintMut", Msg: "A mut constraint was violated"}
	ErrConstraintSeeds              = &Error{Code: 2006, Name: "ConstraintSeeds", Msg: "A seeds constraint was violated"}
	ErrAccountDiscriminatorMismatch = &Error{Code: 3002, Name: "AccountDiscriminatorMismatch", Msg: "Account discriminator did not match what was expected"}
	ErrAccountDidNotDeserialize     = &Error{Code: 3003, Name: "AccountDidNotDeserialize", Msg: "Failed to deserialize the account"}
	ErrAccountNotEnoughKeys         = &Error{Code: 3005, Name: "AccountNotEnoughKeys", Msg: "Not enough account keys given to the instruction"}
	ErrAccountOwnedByWrongProgram   = &Error{Code: 3007, Name: "AccountOwnedByWrongProgram", Msg: "The given account is owned by a different program than expected"}
	ErrInvalidProgramID             = &Error{Code: 3008, Name: "InvalidProgramId", Msg: "Program ID was not as expected"}
	ErrAccountNotSigner             = &Error{Code: 3010, Name: "AccountNotSigner", Msg: "The given account did not sign"}
	ErrAccountNotInitialized        = &Error{Code: 3012, Name: "AccountNotInitialized", Msg: "The program expected this account to be already initialized"}
)

// Router errors.
var (
	ErrTooManyTokensSpent        = &Error{Code: 6000, Name: "TooManyTokensSpent", Msg: "Too many tokens spent vs user_max_in"}
	ErrSlippageExceeded          = &Error{Code: 6001, Name: "SlippageExceeded", Msg: "Not enough output (slippage)"}
	ErrUnknownVenue              = &Error{Code: 6002, Name: "UnknownVenue", Msg: "Unknown venue id"}
	ErrRemainingAccountsMismatch = &Error{Code: 6003, Name: "RemainingAccountsMismatch", Msg: "Remaining accounts do not match the declared leg account counts"}
	ErrFeeVaultMintMismatch      = &Error{Code: 6004, Name: "FeeVaultMintMismatch", Msg: "Fee vault mint does not match output mint"}
	ErrAdapterWhitelistViolation = &Error{Code: 6005, Name: "AdapterWhitelistViolation", Msg: "Leg account does not match the whitelisted venue program id"}
	ErrPaused                    = &Error{Code: 6006, Name: "Paused", Msg: "Protocol is paused"}
	ErrUnauthorized              = &Error{Code: 6007, Name: "Unauthorized", Msg: "Unauthorized: admin signature required"}
	ErrMintContinuityBroken      = &Error{Code: 6008, Name: "MintContinuityBroken", Msg: "Mint continuity mismatch between swap legs or accounts"}
	ErrTooManyLegs               = &Error{Code: 6009, Name: "TooManyLegs", Msg: "Route exceeds the maximum number of legs"}
	ErrFeeVaultAddressMismatch   = &Error{Code: 6010, Name: "FeeVaultAddressMismatch", Msg: "Fee vault address does not match config"}
	ErrFeeBpsOutOfRange          = &Error{Code: 6011, Name: "FeeBpsOutOfRange", Msg: "Fee basis points must not exceed 10000"}
	ErrAlreadyInitialized        = &Error{Code: 6012, Name: "AlreadyInitialized", Msg: "Config is already initialized"}
	ErrNumericalOverflow         = &Error{Code: 6013, Name: "NumericalOverflow", Msg: "Overflow"}
	ErrVenueReturnDataInvalid    = &Error{Code: 6014, Name: "VenueReturnDataInvalid", Msg: "Venue did not report a realized amount"}
)

var errorsByCode = func() map[uint32]*Error {
	all := []*Error{
		ErrInstructionMissing, ErrInstructionFallbackNotFound, ErrInstructionDidNotDeserialize,
		ErrConstraintMut, ErrConstraintSeeds, ErrAccountDiscriminatorMismatch,
		ErrAccountDidNotDeserialize, ErrAccountNotEnoughKeys, ErrAccountOwnedByWrongProgram,
		ErrInvalidProgramID, ErrAccountNotSigner, ErrAccountNotInitialized,
		ErrTooManyTokensSpent, ErrSlippageExceeded, ErrUnknownVenue,
		ErrRemainingAccountsMismatch, ErrFeeVaultMintMismatch, ErrAdapterWhitelistViolation,
		ErrPaused, ErrUnauthorized, ErrMintContinuityBroken, ErrTooManyLegs,
		ErrFeeVaultAddressMismatch, ErrFeeBpsOutOfRange, ErrAlreadyInitialized,
		ErrNumericalOverflow, ErrVenueReturnDataInvalid,
	}
	m := make(map[uint32]*Error, len(all))
	for _, e := range all {
		m[e.Code] = e
	}
	return m
}()

// ErrorFromCode returns the program error with the given number.
func ErrorFromCode(code uint32) (*Error, bool) {
	e, ok := errorsByCode[code]
	return e, ok
}
