// internal/aggregator/route.go
package aggregator

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/token"
)

// route accounts: [user_authority (s), user_source (w), user_destination (w),
// fee_vault (w), config, token_program, ...remaining]
func (p *Program) route(ic *ledger.InvokeContext, args *RouteArgs) error {
	accounts := ic.Accounts()
	if len(accounts) < routeFixedAccounts {
		return ErrAccountNotEnoughKeys
	}
	authority, source, destination := accounts[0], accounts[1], accounts[2]
	feeVault, configAcct, tokenProgram := accounts[3], accounts[4], accounts[5]

	// Account constraints
	if err := requireSigner(authority); err != nil {
		return err
	}
	if err := requireWritable(source, destination, feeVault); err != nil {
		return err
	}
	src, err := loadTokenAccount(source)
	if err != nil {
		return err
	}
	dst, err := loadTokenAccount(destination)
	if err != nil {
		return err
	}
	vault, err := loadTokenAccount(feeVault)
	if err != nil {
		return err
	}
	cfg, err := p.loadConfig(configAcct)
	if err != nil {
		return err
	}
	if err := requireProgram(tokenProgram, token.ProgramID); err != nil {
		return err
	}

	if err := ic.ConsumeUnits(RouteBaseUnits); err != nil {
		return err
	}

	// Global gates
	if cfg.Paused {
		return ErrPaused
	}
	if !src.Owner.Equals(authority.Key) || !dst.Owner.Equals(authority.Key) {
		return ErrUnauthorized
	}

	legs := args.Legs
	if len(legs) == 0 {
		if args.UserMinOut == 0 {
			ic.Log("Empty route, nothing to execute")
			return nil
		}
		return ErrSlippageExceeded
	}
	if len(legs) > MaxLegs {
		return ErrTooManyLegs
	}
	if !legs[0].InMint.Equals(src.Mint) {
		return ErrMintContinuityBroken
	}

	cursor := NewAccountCursor(accounts[routeFixedAccounts:])
	var (
		spent       uint64
		realizedOut uint64
		prevOut     solana.PublicKey
	)
	for i := range legs {
		leg := &legs[i]
		if i > 0 && !leg.InMint.Equals(prevOut) {
			return ErrMintContinuityBroken
		}
		if !leg.Venue.Valid() {
			return ErrUnknownVenue
		}
		legAccounts, err := cursor.Take(int(leg.AccountCount))
		if err != nil {
			return err
		}

		realized, err := p.executeLeg(ic, i, leg, legAccounts)
		if err != nil {
			return err
		}
		if spent+leg.InAmount < spent {
			return ErrNumericalOverflow
		}
		spent += leg.InAmount
		realizedOut = realized
		prevOut = leg.OutMint
	}

	if cursor.Remaining() != 0 {
		return ErrRemainingAccountsMismatch
	}
	if !prevOut.Equals(dst.Mint) {
		return ErrMintContinuityBroken
	}
	if spent > args.UserMaxIn {
		return ErrTooManyTokensSpent
	}

	fee, userReceive, err := Settle(realizedOut, cfg.FeeBps)
	if err != nil {
		return err
	}
	if userReceive < args.UserMinOut {
		return ErrSlippageExceeded
	}

	if !vault.Mint.Equals(dst.Mint) {
		return ErrFeeVaultMintMismatch
	}
	if !feeVault.Key.Equals(cfg.FeeVault) {
		return ErrFeeVaultAddressMismatch
	}

	if fee > 0 {
		ix := token.NewTransferInstruction(fee, destination.Key, feeVault.Key, authority.Key)
		if err := ic.Invoke(ix); err != nil {
			return err
		}
	}

	ev := &RouteExecuted{
		User:       authority.Key,
		InMint:     src.Mint,
		OutMint:    dst.Mint,
		TotalSpent: spent,
		TotalOut:   realizedOut,
		FeeCharged: fee,
		Legs:       uint8(len(legs)),
		FeeBps:     cfg.FeeBps,
	}
	payload, err := ev.Marshal()
	if err != nil {
		return ErrNumericalOverflow
	}
	ic.EmitData(payload)

	ic.Log("Route settled: spent=%d out=%d fee=%d receive=%d", spent, realizedOut, fee, userReceive)
	p.logger.Debug("Route settled",
		zap.String("user", authority.Key.String()),
		zap.Int("legs", len(legs)),
		zap.Uint64("spent", spent),
		zap.Uint64("out", realizedOut),
		zap.Uint64("fee", fee))
	return nil
}

// executeLeg delegates one leg and returns the amount the venue realized.
// A leg with no accounts is a stand-in that realizes its MinOut.
func (p *Program) executeLeg(ic *ledger.InvokeContext, index int, leg *SwapLeg, accounts []*ledger.AccountInfo) (uint64, error) {
	if err := ic.ConsumeUnits(LegUnits); err != nil {
		return 0, err
	}
	if len(accounts) == 0 {
		ic.Log("Leg %d (%s): no accounts, realized %d", index, leg.Venue, leg.MinOut)
		return leg.MinOut, nil
	}

	programID := leg.Venue.ProgramID()
	if !accounts[0].Key.Equals(programID) {
		return 0, ErrAdapterWhitelistViolation
	}

	metas := make([]*solana.AccountMeta, 0, len(accounts)-1)
	for _, ai := range accounts[1:] {
		metas = append(metas, ai.Meta())
	}
	if err := ic.Invoke(solana.NewInstruction(programID, metas, leg.Data)); err != nil {
		return 0, err
	}

	from, data := ic.ReturnData()
	if !from.Equals(programID) || len(data) != 8 {
		return 0, ErrVenueReturnDataInvalid
	}
	realized := binary.LittleEndian.Uint64(data)
	ic.Log("Leg %d (%s): realized %d", index, leg.Venue, realized)
	return realized, nil
}
