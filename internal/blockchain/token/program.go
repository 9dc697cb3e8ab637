// internal/blockchain/token/program.go
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	spltoken "github.com/gagliardetto/solana-go/programs/token"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
)

// ProgramID is the SPL token program address.
var ProgramID = solana.TokenProgramID

// TransferUnits is charged per transfer.
const TransferUnits uint64 = 4_645

var (
	ErrIncorrectProgramID = errors.New("incorrect program id for instruction")
	ErrInvalidAccountData = errors.New("invalid account data for instruction")
)

// Program is a native rendition of the SPL token program that supports
// Transfer and TransferChecked.
type Program struct{}

// Install registers the token program in l.
func Install(l *ledger.Ledger) {
	l.RegisterProgram(ProgramID, Program{})
}

// Execute implements ledger.Program.
func (Program) Execute(ic *ledger.InvokeContext) error {
	accounts := ic.Accounts()
	if len(accounts) < 3 {
		return ledger.ErrMissingAccount
	}

	metas := make([]*solana.AccountMeta, 0, len(accounts))
	for _, ai := range accounts {
		metas = append(metas, ai.Meta())
	}
	inst, err := spltoken.DecodeInstruction(metas, ic.Data())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
	}

	switch impl := inst.Impl.(type) {
	case *spltoken.Transfer:
		ic.Log("Instruction: Transfer")
		if impl.Amount == nil {
			return ErrInvalidInstruction
		}
		return transfer(ic, accounts[0], accounts[1], accounts[2], *impl.Amount, nil, 0)
	case *spltoken.TransferChecked:
		ic.Log("Instruction: TransferChecked")
		if len(accounts) < 4 {
			return ledger.ErrMissingAccount
		}
		if impl.Amount == nil || impl.Decimals == nil {
			return ErrInvalidInstruction
		}
		return transfer(ic, accounts[0], accounts[2], accounts[3], *impl.Amount, accounts[1], *impl.Decimals)
	default:
		return fmt.Errorf("%w: unsupported instruction %d", ErrInvalidInstruction, inst.TypeID.Uint8())
	}
}

func transfer(ic *ledger.InvokeContext, src, dst, authority *ledger.AccountInfo, amount uint64, mint *ledger.AccountInfo, decimals uint8) error {
	if err := ic.ConsumeUnits(TransferUnits); err != nil {
		return err
	}

	source, err := load(src)
	if err != nil {
		return err
	}
	destination, err := load(dst)
	if err != nil {
		return err
	}

	if source.Amount < amount {
		return ErrInsufficientFunds
	}
	if !source.Mint.Equals(destination.Mint) {
		return ErrMintMismatch
	}

	if mint != nil {
		if !mint.Key.Equals(source.Mint) {
			return ErrMintMismatch
		}
		if !mint.Owner().Equals(ProgramID) {
			return ErrIncorrectProgramID
		}
		m, err := UnpackMint(mint.Data())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
		}
		if m.Decimals != decimals {
			return ErrMintDecimalsMismatch
		}
	}

	delegated := false
	switch {
	case authority.Key.Equals(source.Owner):
	case source.Delegate != nil && authority.Key.Equals(*source.Delegate):
		if source.DelegatedAmount < amount {
			return ErrInsufficientFunds
		}
		delegated = true
	default:
		return ErrOwnerMismatch
	}
	if !authority.IsSigner {
		return fmt.Errorf("%w: %s", ledger.ErrMissingSignature, authority.Key)
	}

	if src.Key.Equals(dst.Key) {
		return nil
	}

	if destination.Amount+amount < destination.Amount {
		return ErrOverflow
	}
	source.Amount -= amount
	destination.Amount += amount
	if delegated {
		source.DelegatedAmount -= amount
		if source.DelegatedAmount == 0 {
			source.Delegate = nil
		}
	}

	if err := ic.SetAccountData(src, source.Pack()); err != nil {
		return err
	}
	return ic.SetAccountData(dst, destination.Pack())
}

func load(ai *ledger.AccountInfo) (*Account, error) {
	if !ai.Owner().Equals(ProgramID) {
		return nil, fmt.Errorf("%w: %s", ErrIncorrectProgramID, ai.Key)
	}
	acct, err := UnpackAccount(ai.Data())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	switch acct.State {
	case StateUninitialized:
		return nil, ErrUninitializedState
	case StateFrozen:
		return nil, ErrAccountFrozen
	}
	return acct, nil
}

// AccountReader loads raw accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, key solana.PublicKey) (*ledger.Account, error)
}

// FetchAccount loads and decodes the token account at key.
func FetchAccount(ctx context.Context, r AccountReader, key solana.PublicKey) (*Account, error) {
	raw, err := r.GetAccount(ctx, key)
	if err != nil {
		return nil, err
	}
	if !raw.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: %s", ErrIncorrectProgramID, key)
	}
	return UnpackAccount(raw.Data)
}

// FetchMint loads and decodes the mint at key.
func FetchMint(ctx context.Context, r AccountReader, key solana.PublicKey) (*Mint, error) {
	raw, err := r.GetAccount(ctx, key)
	if err != nil {
		return nil, err
	}
	if !raw.Owner.Equals(ProgramID) {
		return nil, fmt.Errorf("%w: %s", ErrIncorrectProgramID, key)
	}
	return UnpackMint(raw.Data)
}
