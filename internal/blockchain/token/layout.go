// internal/blockchain/token/layout.go
package token

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	bin "github.com/rovshanmuradov/solana-router/internal/utils/binary"
)

// Packed sizes of SPL token state.
const (
	AccountSize = 165
	MintSize    = 82
)

// AccountState mirrors the SPL token account state byte.
type AccountState uint8

const (
	StateUninitialized AccountState = iota
	StateInitialized
	StateFrozen
)

// Account is an SPL token account.
type Account struct {
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Amount          uint64
	Delegate        *solana.PublicKey
	State           AccountState
	IsNative        *uint64
	DelegatedAmount uint64
	CloseAuthority  *solana.PublicKey
}

// UnpackAccount decodes a 165-byte token account.
func UnpackAccount(data []byte) (*Account, error) {
	if err := bin.CheckLength(data, AccountSize); err != nil {
		return nil, fmt.Errorf("token account: %w", err)
	}
	return &Account{
		Mint:            bin.ReadPubKey(data, 0),
		Owner:           bin.ReadPubKey(data, 32),
		Amount:          bin.ReadUint64LittleEndian(data, 64),
		Delegate:        bin.ReadCOptionPubKey(data, 72),
		State:           AccountState(bin.ReadUint8(data, 108)),
		IsNative:        bin.ReadCOptionUint64(data, 109),
		DelegatedAmount: bin.ReadUint64LittleEndian(data, 121),
		CloseAuthority:  bin.ReadCOptionPubKey(data, 129),
	}, nil
}

// Pack encodes the account into its 165-byte layout.
func (a *Account) Pack() []byte {
	data := make([]byte, AccountSize)
	bin.WritePubKey(a.Mint, data, 0)
	bin.WritePubKey(a.Owner, data, 32)
	bin.WriteUint64LittleEndian(a.Amount, data, 64)
	bin.WriteCOptionPubKey(a.Delegate, data, 72)
	bin.WriteUint8(uint8(a.State), data, 108)
	bin.WriteCOptionUint64(a.IsNative, data, 109)
	bin.WriteUint64LittleEndian(a.DelegatedAmount, data, 121)
	bin.WriteCOptionPubKey(a.CloseAuthority, data, 129)
	return data
}

// NewAccountData returns packed state of an initialized account.
func NewAccountData(mint, owner solana.PublicKey, amount uint64) []byte {
	return (&Account{Mint: mint, Owner: owner, Amount: amount, State: StateInitialized}).Pack()
}

// Mint is an SPL token mint.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}

// UnpackMint decodes an 82-byte mint.
func UnpackMint(data []byte) (*Mint, error) {
	if err := bin.CheckLength(data, MintSize); err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	return &Mint{
		MintAuthority:   bin.ReadCOptionPubKey(data, 0),
		Supply:          bin.ReadUint64LittleEndian(data, 36),
		Decimals:        bin.ReadUint8(data, 44),
		IsInitialized:   bin.ReadUint8(data, 45) != 0,
		FreezeAuthority: bin.ReadCOptionPubKey(data, 46),
	}, nil
}

// Pack encodes the mint into its 82-byte layout.
func (m *Mint) Pack() []byte {
	data := make([]byte, MintSize)
	bin.WriteCOptionPubKey(m.MintAuthority, data, 0)
	bin.WriteUint64LittleEndian(m.Supply, data, 36)
	bin.WriteUint8(m.Decimals, data, 44)
	if m.IsInitialized {
		bin.WriteUint8(1, data, 45)
	}
	bin.WriteCOptionPubKey(m.FreezeAuthority, data, 46)
	return data
}

// NewMintData returns packed state of an initialized mint.
func NewMintData(authority solana.PublicKey, decimals uint8, supply uint64) []byte {
	return (&Mint{MintAuthority: &authority, Supply: supply, Decimals: decimals, IsInitialized: true}).Pack()
}
