// internal/aggregator/instructions.go
package aggregator

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/token"
)

// Instruction discriminators, sha256("global:<name>")[:8]
var (
	routeDiscriminator      = [8]byte{229, 23, 203, 151, 122, 227, 173, 42}
	initConfigDiscriminator = [8]byte{23, 235, 115, 232, 168, 96, 1, 231}
	setConfigDiscriminator  = [8]byte{108, 158, 154, 175, 212, 98, 52, 66}
	pauseDiscriminator      = [8]byte{211, 22, 221, 251, 74, 121, 193, 47}
	unpauseDiscriminator    = [8]byte{169, 144, 4, 38, 10, 141, 188, 255}
)

// RouteArgs are the arguments of the route instruction.
type RouteArgs struct {
	Legs       []SwapLeg
	UserMaxIn  uint64
	UserMinOut uint64
}

func (a RouteArgs) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint32(uint32(len(a.Legs)), bin.LE); err != nil {
		return err
	}
	for i := range a.Legs {
		if err := a.Legs[i].MarshalWithEncoder(enc); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
	}
	if err := enc.WriteUint64(a.UserMaxIn, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint64(a.UserMinOut, bin.LE)
}

func (a *RouteArgs) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return err
	}
	// every leg takes at least 86 bytes
	if int(n) > dec.Remaining()/86 {
		return fmt.Errorf("leg count %d exceeds payload", n)
	}
	a.Legs = make([]SwapLeg, n)
	for i := range a.Legs {
		if err := a.Legs[i].UnmarshalWithDecoder(dec); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
	}
	if a.UserMaxIn, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	a.UserMinOut, err = dec.ReadUint64(bin.LE)
	return err
}

// SetConfigArgs are the arguments of set_config.
type SetConfigArgs struct {
	FeeBps   uint16
	NewAdmin *solana.PublicKey
}

// RouteAccounts lists the fixed accounts of a route instruction plus the
// flattened per-leg accounts.
type RouteAccounts struct {
	UserAuthority   solana.PublicKey
	UserSource      solana.PublicKey
	UserDestination solana.PublicKey
	FeeVault        solana.PublicKey
	Remaining       []*solana.AccountMeta
}

// routeFixedAccounts is the number of accounts before the remaining ones.
const routeFixedAccounts = 6

// NewRouteInstruction builds the route instruction.
func NewRouteInstruction(accounts RouteAccounts, args RouteArgs) (solana.Instruction, error) {
	config, _ := ConfigAddress()

	buf := new(bytes.Buffer)
	buf.Write(routeDiscriminator[:])
	if err := args.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, fmt.Errorf("failed to encode route args: %w", err)
	}

	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(accounts.UserAuthority, false, true),
		solana.NewAccountMeta(accounts.UserSource, true, false),
		solana.NewAccountMeta(accounts.UserDestination, true, false),
		solana.NewAccountMeta(accounts.FeeVault, true, false),
		solana.NewAccountMeta(config, false, false),
		solana.NewAccountMeta(token.ProgramID, false, false),
	}
	metas = append(metas, accounts.Remaining...)

	return solana.NewInstruction(ProgramID, metas, buf.Bytes()), nil
}

// LegAccounts prefixes the venue program account to the accounts a venue
// call needs, which is the shape the router expects for each leg.
func LegAccounts(venue VenueID, accounts ...*solana.AccountMeta) []*solana.AccountMeta {
	out := make([]*solana.AccountMeta, 0, len(accounts)+1)
	out = append(out, solana.NewAccountMeta(venue.ProgramID(), false, false))
	return append(out, accounts...)
}

// NewInitConfigInstruction creates the config record with admin as its admin.
func NewInitConfigInstruction(admin, feeVault solana.PublicKey, feeBps uint16) (solana.Instruction, error) {
	config, _ := ConfigAddress()

	buf := new(bytes.Buffer)
	buf.Write(initConfigDiscriminator[:])
	if err := bin.NewBorshEncoder(buf).WriteUint16(feeBps, bin.LE); err != nil {
		return nil, err
	}

	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(admin, true, true),
		solana.NewAccountMeta(config, true, false),
		solana.NewAccountMeta(feeVault, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}, buf.Bytes()), nil
}

// NewSetConfigInstruction updates the fee and optionally hands over admin rights.
func NewSetConfigInstruction(admin solana.PublicKey, args SetConfigArgs) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	buf.Write(setConfigDiscriminator[:])
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint16(args.FeeBps, bin.LE); err != nil {
		return nil, err
	}
	if err := writeOptionalPublicKey(enc, args.NewAdmin); err != nil {
		return nil, err
	}
	return newAdminInstruction(admin, buf.Bytes()), nil
}

// NewPauseInstruction disables routing.
func NewPauseInstruction(admin solana.PublicKey) solana.Instruction {
	return newAdminInstruction(admin, pauseDiscriminator[:])
}

// NewUnpauseInstruction enables routing.
func NewUnpauseInstruction(admin solana.PublicKey) solana.Instruction {
	return newAdminInstruction(admin, unpauseDiscriminator[:])
}

func newAdminInstruction(admin solana.PublicKey, data []byte) solana.Instruction {
	config, _ := ConfigAddress()
	return solana.NewInstruction(ProgramID, []*solana.AccountMeta{
		solana.NewAccountMeta(config, true, false),
		solana.NewAccountMeta(admin, false, true),
	}, data)
}
