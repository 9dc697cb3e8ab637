// internal/blockchain/token/instructions.go
package token

import (
	"github.com/gagliardetto/solana-go"
	spltoken "github.com/gagliardetto/solana-go/programs/token"
)

// NewTransferInstruction moves amount from source to destination, signed by owner.
func NewTransferInstruction(amount uint64, source, destination, owner solana.PublicKey) solana.Instruction {
	return spltoken.NewTransferInstruction(amount, source, destination, owner, nil).Build()
}

// NewTransferCheckedInstruction is NewTransferInstruction with a mint and
// decimals assertion.
func NewTransferCheckedInstruction(amount uint64, decimals uint8, source, mint, destination, owner solana.PublicKey) solana.Instruction {
	return spltoken.NewTransferCheckedInstruction(amount, decimals, source, mint, destination, owner, nil).Build()
}
