// internal/blockchain/memo/memo.go
package memo

import (
	"errors"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
)

// ProgramID is the SPL memo program (v2) address.
var ProgramID = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")

const (
	// BaseUnits plus PerByteUnits per memo byte are charged per instruction.
	BaseUnits    uint64 = 500
	PerByteUnits uint64 = 10
)

var (
	ErrInvalidUTF8      = errors.New("memo is not valid utf-8")
	ErrMissingSignature = errors.New("memo account did not sign")
)

// Program records an arbitrary utf-8 memo in the transaction logs. Every
// account passed to it must be a signer.
type Program struct{}

// Install registers the memo program in l.
func Install(l *ledger.Ledger) {
	l.RegisterProgram(ProgramID, Program{})
}

// Execute implements ledger.Program.
func (Program) Execute(ic *ledger.InvokeContext) error {
	data := ic.Data()
	if err := ic.ConsumeUnits(BaseUnits + PerByteUnits*uint64(len(data))); err != nil {
		return err
	}
	for _, ai := range ic.Accounts() {
		if !ai.IsSigner {
			return ErrMissingSignature
		}
	}
	if !utf8.Valid(data) {
		return ErrInvalidUTF8
	}
	ic.Log("Memo (len %d): %q", len(data), string(data))
	return nil
}

// NewMemoInstruction builds a memo instruction signed by signers.
func NewMemoInstruction(memo string, signers ...solana.PublicKey) solana.Instruction {
	metas := make([]*solana.AccountMeta, 0, len(signers))
	for _, s := range signers {
		metas = append(metas, solana.NewAccountMeta(s, false, true))
	}
	return solana.NewInstruction(ProgramID, metas, []byte(memo))
}
