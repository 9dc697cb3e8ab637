// internal/venue/venue.go
package venue

import (
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/aggregator"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/token"
)

// SwapUnits is what one stub swap charges before its token transfers.
const SwapUnits uint64 = 20_000

// PoolAuthoritySeed derives the pool authority of every stub venue.
var PoolAuthoritySeed = []byte("pool_authority")

var (
	ErrInvalidPayload       = errors.New("invalid swap payload")
	ErrInvalidPoolAuthority = errors.New("invalid pool authority")
)

// SwapPayload is the data a stub venue expects. Real venues would quote the
// output; the stub moves exactly the declared amounts.
type SwapPayload struct {
	AmountIn  uint64
	AmountOut uint64
}

// Encode returns the Borsh encoding of p.
func (p SwapPayload) Encode() ([]byte, error) {
	return bin.MarshalBorsh(&p)
}

// DecodeSwapPayload parses the leg data of a stub venue.
func DecodeSwapPayload(data []byte) (*SwapPayload, error) {
	if len(data) != 16 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPayload, len(data))
	}
	var p SwapPayload
	if err := bin.UnmarshalBorsh(&p, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &p, nil
}

// Program is a stub liquidity venue: it takes amount_in from the user,
// pays amount_out from its vault and reports amount_out as return data.
//
// Accounts: [authority (s), user_source (w), user_destination (w),
// pool_in_vault (w), pool_out_vault (w), pool_authority, token_program]
type Program struct {
	logger *zap.Logger
}

// Install registers a stub venue at the program id of every whitelisted venue.
func Install(l *ledger.Ledger, logger *zap.Logger) {
	p := &Program{logger: logger.Named("venue")}
	for _, id := range aggregator.Venues() {
		l.RegisterProgram(id.ProgramID(), p)
	}
}

// PoolAuthority returns the vault owner PDA of a venue program.
func PoolAuthority(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{PoolAuthoritySeed}, programID)
}

// Execute implements ledger.Program.
func (p *Program) Execute(ic *ledger.InvokeContext) error {
	accounts := ic.Accounts()
	if len(accounts) < 7 {
		return ledger.ErrMissingAccount
	}
	authority, userSource, userDest := accounts[0], accounts[1], accounts[2]
	poolIn, poolOut, poolAuthority, tokenProgram := accounts[3], accounts[4], accounts[5], accounts[6]

	payload, err := DecodeSwapPayload(ic.Data())
	if err != nil {
		return err
	}
	if err := ic.ConsumeUnits(SwapUnits); err != nil {
		return err
	}
	if !tokenProgram.Key.Equals(token.ProgramID) {
		return token.ErrIncorrectProgramID
	}
	expected, bump, err := PoolAuthority(ic.ProgramID())
	if err != nil || !poolAuthority.Key.Equals(expected) {
		return ErrInvalidPoolAuthority
	}

	ic.Log("Instruction: Swap")

	in := token.NewTransferInstruction(payload.AmountIn, userSource.Key, poolIn.Key, authority.Key)
	if err := ic.Invoke(in); err != nil {
		return err
	}
	out := token.NewTransferInstruction(payload.AmountOut, poolOut.Key, userDest.Key, poolAuthority.Key)
	if err := ic.InvokeSigned(out, [][][]byte{{PoolAuthoritySeed, {bump}}}); err != nil {
		return err
	}

	var ret [8]byte
	binary.LittleEndian.PutUint64(ret[:], payload.AmountOut)
	if err := ic.SetReturnData(ret[:]); err != nil {
		return err
	}

	ic.Log("Swap: in=%d out=%d", payload.AmountIn, payload.AmountOut)
	p.logger.Debug("Swap executed",
		zap.String("venue", ic.ProgramID().String()),
		zap.Uint64("amount_in", payload.AmountIn),
		zap.Uint64("amount_out", payload.AmountOut))
	return nil
}
