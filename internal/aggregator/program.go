// internal/aggregator/program.go
package aggregator

import (
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/token"
)

// Compute costs charged by the router itself, on top of what venues and the
// token program consume.
const (
	RouteBaseUnits uint64 = 12_000
	LegUnits       uint64 = 3_000
	AdminUnits     uint64 = 3_000
)

// Program is the router program.
type Program struct {
	logger *zap.Logger
}

// NewProgram creates the router program.
func NewProgram(logger *zap.Logger) *Program {
	return &Program{logger: logger.Named("aggregator")}
}

// Install registers the router program in l.
func Install(l *ledger.Ledger, logger *zap.Logger) *Program {
	p := NewProgram(logger)
	l.RegisterProgram(ProgramID, p)
	return p
}

// Execute implements ledger.Program.
func (p *Program) Execute(ic *ledger.InvokeContext) error {
	err := p.dispatch(ic)
	var perr *Error
	if errors.As(err, &perr) {
		ic.Log("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", perr.Name, perr.Code, perr.Msg)
		p.logger.Debug("Instruction rejected",
			zap.String("error", perr.Name),
			zap.Uint32("code", perr.Code))
	}
	return err
}

func (p *Program) dispatch(ic *ledger.InvokeContext) error {
	data := ic.Data()
	if len(data) < 8 {
		return ErrInstructionMissing
	}
	var disc [8]byte
	copy(disc[:], data[:8])
	dec := bin.NewBorshDecoder(data[8:])

	switch disc {
	case routeDiscriminator:
		ic.Log("Instruction: Route")
		var args RouteArgs
		if err := args.UnmarshalWithDecoder(dec); err != nil {
			return ErrInstructionDidNotDeserialize
		}
		return p.route(ic, &args)

	case initConfigDiscriminator:
		ic.Log("Instruction: InitConfig")
		feeBps, err := dec.ReadUint16(bin.LE)
		if err != nil {
			return ErrInstructionDidNotDeserialize
		}
		return p.initConfig(ic, feeBps)

	case setConfigDiscriminator:
		ic.Log("Instruction: SetConfig")
		var args SetConfigArgs
		var err error
		if args.FeeBps, err = dec.ReadUint16(bin.LE); err != nil {
			return ErrInstructionDidNotDeserialize
		}
		if args.NewAdmin, err = readOptionalPublicKey(dec); err != nil {
			return ErrInstructionDidNotDeserialize
		}
		return p.setConfig(ic, &args)

	case pauseDiscriminator:
		ic.Log("Instruction: Pause")
		return p.setPaused(ic, true)

	case unpauseDiscriminator:
		ic.Log("Instruction: Unpause")
		return p.setPaused(ic, false)
	}
	return ErrInstructionFallbackNotFound
}

// loadConfig validates the config account the way the account constraints
// seeds = ["config"], bump = config.bump would.
func (p *Program) loadConfig(ai *ledger.AccountInfo) (*Config, error) {
	addr, bump := ConfigAddress()
	if !ai.Key.Equals(addr) {
		return nil, ErrConstraintSeeds
	}
	if !ai.IsInitialized() {
		return nil, ErrAccountNotInitialized
	}
	if !ai.Owner().Equals(ProgramID) {
		return nil, ErrAccountOwnedByWrongProgram
	}
	cfg, err := UnmarshalConfig(ai.Data())
	if err != nil {
		return nil, err
	}
	if cfg.Bump != bump {
		return nil, ErrConstraintSeeds
	}
	return cfg, nil
}

func (p *Program) storeConfig(ic *ledger.InvokeContext, ai *ledger.AccountInfo, cfg *Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return ErrAccountDidNotDeserialize
	}
	return ic.SetAccountData(ai, data)
}

func loadTokenAccount(ai *ledger.AccountInfo) (*token.Account, error) {
	if !ai.IsInitialized() {
		return nil, ErrAccountNotInitialized
	}
	if !ai.Owner().Equals(token.ProgramID) {
		return nil, ErrAccountOwnedByWrongProgram
	}
	acct, err := token.UnpackAccount(ai.Data())
	if err != nil {
		return nil, ErrAccountDidNotDeserialize
	}
	return acct, nil
}

func requireSigner(ai *ledger.AccountInfo) error {
	if !ai.IsSigner {
		return ErrAccountNotSigner
	}
	return nil
}

func requireWritable(accounts ...*ledger.AccountInfo) error {
	for _, ai := range accounts {
		if !ai.IsWritable {
			return ErrConstraintMut
		}
	}
	return nil
}

func requireProgram(ai *ledger.AccountInfo, id solana.PublicKey) error {
	if !ai.Key.Equals(id) {
		return ErrInvalidProgramID
	}
	return nil
}
