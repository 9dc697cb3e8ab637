// internal/simulator/world.go
package simulator

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/aggregator"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/memo"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/token"
	"github.com/rovshanmuradov/solana-router/internal/client"
	"github.com/rovshanmuradov/solana-router/internal/plan"
	"github.com/rovshanmuradov/solana-router/internal/venue"
	"github.com/rovshanmuradov/solana-router/internal/wallet"
)

// World is the ledger state a plan runs against.
type World struct {
	Plan     *plan.Plan
	Ledger   *ledger.Ledger
	Mints    map[string]solana.PublicKey
	Wallets  map[string]*wallet.Wallet
	Pools    map[string]*venue.Pool
	FeeVault solana.PublicKey
}

// NewLedger boots a ledger with the token, memo, router and venue programs.
func NewLedger(logger *zap.Logger, opts ...ledger.Option) *ledger.Ledger {
	l := ledger.New(append([]ledger.Option{ledger.WithLogger(logger)}, opts...)...)
	token.Install(l)
	memo.Install(l)
	aggregator.Install(l, logger)
	venue.Install(l, logger)
	return l
}

// BuildWorld creates the plan's mints, wallets, token accounts and pools,
// then initializes the router config through rc.
func BuildWorld(ctx context.Context, p *plan.Plan, l *ledger.Ledger, rc *client.RouterClient) (*World, error) {
	w := &World{
		Plan:    p,
		Ledger:  l,
		Mints:   make(map[string]solana.PublicKey, len(p.Mints)),
		Wallets: make(map[string]*wallet.Wallet, len(p.Wallets)),
		Pools:   make(map[string]*venue.Pool, len(p.Pools)),
	}

	for _, pw := range p.Wallets {
		var (
			wl  *wallet.Wallet
			err error
		)
		if pw.PrivateKey != "" {
			wl, err = wallet.NewWallet(pw.Name, pw.PrivateKey)
		} else {
			wl, err = wallet.Generate(pw.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", pw.Name, err)
		}
		w.Wallets[pw.Name] = wl
	}
	admin := w.Wallets[p.Admin]

	for _, m := range p.Mints {
		key := solana.NewWallet().PublicKey()
		l.SetAccount(key, ledger.NewAccount(token.ProgramID, token.NewMintData(admin.PublicKey, m.Decimals, 0)))
		w.Mints[m.Name] = key
	}

	// every wallet gets an associated token account for every mint
	for _, pw := range p.Wallets {
		wl := w.Wallets[pw.Name]
		for _, m := range p.Mints {
			var amount uint64
			if a, ok := pw.Balances[m.Name]; ok {
				units, err := a.BaseUnits(m.Decimals)
				if err != nil {
					return nil, fmt.Errorf("wallet %q: %w", pw.Name, err)
				}
				amount = units
			}
			ata, err := wl.GetATA(w.Mints[m.Name])
			if err != nil {
				return nil, fmt.Errorf("wallet %q: %w", pw.Name, err)
			}
			l.SetAccount(ata, ledger.NewAccount(token.ProgramID, token.NewAccountData(w.Mints[m.Name], wl.PublicKey, amount)))
		}
	}

	for _, pp := range p.Pools {
		reserveA, err := w.Units(pp.MintA, pp.ReserveA)
		if err != nil {
			return nil, fmt.Errorf("pool %q: %w", pp.Name, err)
		}
		reserveB, err := w.Units(pp.MintB, pp.ReserveB)
		if err != nil {
			return nil, fmt.Errorf("pool %q: %w", pp.Name, err)
		}
		pool, err := venue.CreatePool(l, pp.VenueID, w.Mints[pp.MintA], w.Mints[pp.MintB], reserveA, reserveB)
		if err != nil {
			return nil, fmt.Errorf("pool %q: %w", pp.Name, err)
		}
		w.Pools[pp.Name] = pool
	}

	feeVault, err := w.Wallets[p.FeeOwner].GetATA(w.Mints[p.FeeMint])
	if err != nil {
		return nil, fmt.Errorf("fee vault: %w", err)
	}
	w.FeeVault = feeVault

	if _, err := rc.InitConfig(ctx, admin, feeVault, p.FeeBps); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}
	return w, nil
}

// Units converts a plan amount of the named mint to base units.
func (w *World) Units(mint string, a plan.Amount) (uint64, error) {
	m, ok := w.Plan.MintByName(mint)
	if !ok {
		return 0, fmt.Errorf("unknown mint %q", mint)
	}
	return a.BaseUnits(m.Decimals)
}

// Decimals returns the decimals of the named mint.
func (w *World) Decimals(mint string) uint8 {
	if m, ok := w.Plan.MintByName(mint); ok {
		return m.Decimals
	}
	return 0
}

// RouteRequest builds the router request of a route step for its wallet.
func (w *World) RouteRequest(step *plan.Step) (client.RouteRequest, error) {
	user := w.Wallets[step.Wallet]

	var req client.RouteRequest
	for i, pl := range step.Legs {
		pool := w.Pools[pl.Pool]
		src, err := user.GetATA(w.Mints[pl.InMint])
		if err != nil {
			return req, err
		}
		dst, err := user.GetATA(w.Mints[pl.OutMint])
		if err != nil {
			return req, err
		}
		in, err := w.Units(pl.InMint, pl.AmountIn)
		if err != nil {
			return req, fmt.Errorf("leg %d: %w", i, err)
		}
		out, err := w.Units(pl.OutMint, pl.AmountOut)
		if err != nil {
			return req, fmt.Errorf("leg %d: %w", i, err)
		}
		minOut, err := w.Units(pl.OutMint, pl.MinOut)
		if err != nil {
			return req, fmt.Errorf("leg %d: %w", i, err)
		}

		leg, metas, err := pool.Leg(venue.SwapRequest{
			User:            user.PublicKey,
			UserSource:      src,
			UserDestination: dst,
			InMint:          w.Mints[pl.InMint],
			OutMint:         w.Mints[pl.OutMint],
			AmountIn:        in,
			AmountOut:       out,
			MinOut:          minOut,
		})
		if err != nil {
			return req, fmt.Errorf("leg %d: %w", i, err)
		}
		req.Legs = append(req.Legs, leg)
		req.Remaining = append(req.Remaining, metas...)
	}

	var err error
	if req.UserSource, err = user.GetATA(w.Mints[step.In]); err != nil {
		return req, err
	}
	if req.UserDestination, err = user.GetATA(w.Mints[step.Out]); err != nil {
		return req, err
	}
	if req.UserMaxIn, err = w.Units(step.In, step.MaxIn); err != nil {
		return req, fmt.Errorf("max_in: %w", err)
	}
	if req.UserMinOut, err = w.Units(step.Out, step.MinOut); err != nil {
		return req, fmt.Errorf("min_out: %w", err)
	}
	req.FeeVault = w.FeeVault
	return req, nil
}
