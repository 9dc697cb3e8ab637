// internal/blockchain/ledger/errors.go
package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccountInUse                = errors.New("account in use")
	ErrBlockhashNotFound           = errors.New("blockhash not found")
	ErrAlreadyProcessed            = errors.New("transaction already processed")
	ErrSignatureVerification       = errors.New("transaction signature verification failure")
	ErrMissingSignature            = errors.New("missing required signature")
	ErrComputeBudgetExceeded       = errors.New("computational budget exceeded")
	ErrInvalidComputeBudget        = errors.New("invalid compute budget")
	ErrProgramNotFound             = errors.New("attempt to load a program that does not exist")
	ErrProgramNotExecutable        = errors.New("program is not executable")
	ErrPrivilegeEscalation         = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrReadonlyDataModified        = errors.New("instruction modified data of a read-only account")
	ErrExternalAccountDataModified = errors.New("instruction modified data of an account it does not own")
	ErrCallDepth                   = errors.New("cross-program invocation call depth too deep")
	ErrMissingAccount              = errors.New("an account required by the instruction is missing")
	ErrAccountAlreadyInitialized   = errors.New("account already initialized")
	ErrInvalidSeeds                = errors.New("provided seeds do not result in a valid address")
	ErrAccountNotFound             = errors.New("account not found")
	ErrInvalidMessage              = errors.New("invalid transaction message")
	ErrReturnDataTooLarge          = errors.New("return data too large")
)

// CustomError is implemented by program errors that carry a numeric code.
type CustomError interface {
	error
	CustomCode() uint32
}

// TransactionError reports the instruction that aborted a transaction.
type TransactionError struct {
	InstructionIndex int
	Err              error
	Logs             []string
}

func (e *TransactionError) Error() string {
	var custom CustomError
	if errors.As(e.Err, &custom) {
		return fmt.Sprintf("instruction %d failed: custom program error: 0x%x (%v)",
			e.InstructionIndex, custom.CustomCode(), e.Err)
	}
	return fmt.Sprintf("instruction %d failed: %v", e.InstructionIndex, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
