// internal/venue/pool.go
package venue

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-router/internal/aggregator"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/token"
)

// Pool is a two-sided stub pool of one venue.
type Pool struct {
	Venue     aggregator.VenueID
	MintA     solana.PublicKey
	MintB     solana.PublicKey
	VaultA    solana.PublicKey
	VaultB    solana.PublicKey
	Authority solana.PublicKey
}

// CreatePool funds the vaults of a new pool directly in the ledger.
func CreatePool(l *ledger.Ledger, venue aggregator.VenueID, mintA, mintB solana.PublicKey, reserveA, reserveB uint64) (*Pool, error) {
	if !venue.Valid() {
		return nil, fmt.Errorf("unknown venue %d", venue)
	}
	programID := venue.ProgramID()
	authority, _, err := PoolAuthority(programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive pool authority: %w", err)
	}

	pool := &Pool{Venue: venue, MintA: mintA, MintB: mintB, Authority: authority}
	if pool.VaultA, err = vaultAddress(programID, mintA, mintB, mintA); err != nil {
		return nil, err
	}
	if pool.VaultB, err = vaultAddress(programID, mintA, mintB, mintB); err != nil {
		return nil, err
	}

	l.SetAccount(pool.VaultA, ledger.NewAccount(token.ProgramID, token.NewAccountData(mintA, authority, reserveA)))
	l.SetAccount(pool.VaultB, ledger.NewAccount(token.ProgramID, token.NewAccountData(mintB, authority, reserveB)))
	return pool, nil
}

func vaultAddress(programID, mintA, mintB, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte("vault"), mintA[:], mintB[:], mint[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive vault: %w", err)
	}
	return addr, nil
}

// VaultFor returns the vault holding mint.
func (p *Pool) VaultFor(mint solana.PublicKey) (solana.PublicKey, bool) {
	switch {
	case mint.Equals(p.MintA):
		return p.VaultA, true
	case mint.Equals(p.MintB):
		return p.VaultB, true
	}
	return solana.PublicKey{}, false
}

// SwapRequest describes one leg through a stub pool.
type SwapRequest struct {
	User            solana.PublicKey
	UserSource      solana.PublicKey
	UserDestination solana.PublicKey
	InMint          solana.PublicKey
	OutMint         solana.PublicKey
	AmountIn        uint64
	AmountOut       uint64
	MinOut          uint64
}

// Leg builds the router leg and its remaining accounts for a swap through p.
func (p *Pool) Leg(req SwapRequest) (aggregator.SwapLeg, []*solana.AccountMeta, error) {
	inVault, ok := p.VaultFor(req.InMint)
	if !ok {
		return aggregator.SwapLeg{}, nil, fmt.Errorf("pool does not hold %s", req.InMint)
	}
	outVault, ok := p.VaultFor(req.OutMint)
	if !ok {
		return aggregator.SwapLeg{}, nil, fmt.Errorf("pool does not hold %s", req.OutMint)
	}

	data, err := SwapPayload{AmountIn: req.AmountIn, AmountOut: req.AmountOut}.Encode()
	if err != nil {
		return aggregator.SwapLeg{}, nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	metas := aggregator.LegAccounts(p.Venue,
		solana.NewAccountMeta(req.User, false, true),
		solana.NewAccountMeta(req.UserSource, true, false),
		solana.NewAccountMeta(req.UserDestination, true, false),
		solana.NewAccountMeta(inVault, true, false),
		solana.NewAccountMeta(outVault, true, false),
		solana.NewAccountMeta(p.Authority, false, false),
		solana.NewAccountMeta(token.ProgramID, false, false),
	)

	leg := aggregator.SwapLeg{
		Venue:        p.Venue,
		InAmount:     req.AmountIn,
		MinOut:       req.MinOut,
		AccountCount: uint8(len(metas)),
		Data:         data,
		InMint:       req.InMint,
		OutMint:      req.OutMint,
	}
	return leg, metas, nil
}
