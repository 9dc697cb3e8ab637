// internal/aggregator/admin.go
package aggregator

import (
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
)

// initConfig accounts: [admin (s, w), config (w), fee_vault, system_program]
func (p *Program) initConfig(ic *ledger.InvokeContext, feeBps uint16) error {
	accounts := ic.Accounts()
	if len(accounts) < 4 {
		return ErrAccountNotEnoughKeys
	}
	admin, configAcct, feeVault, system := accounts[0], accounts[1], accounts[2], accounts[3]

	if err := requireSigner(admin); err != nil {
		return err
	}
	if err := requireWritable(admin, configAcct); err != nil {
		return err
	}
	if err := requireProgram(system, solana.SystemProgramID); err != nil {
		return err
	}
	addr, bump := ConfigAddress()
	if !configAcct.Key.Equals(addr) {
		return ErrConstraintSeeds
	}
	if err := ic.ConsumeUnits(AdminUnits); err != nil {
		return err
	}

	if configAcct.IsInitialized() {
		return ErrAlreadyInitialized
	}
	if feeBps > MaxFeeBps {
		return ErrFeeBpsOutOfRange
	}

	cfg := &Config{
		Admin:    admin.Key,
		FeeBps:   feeBps,
		FeeVault: feeVault.Key,
		Paused:   false,
		Bump:     bump,
	}
	data, err := cfg.Marshal()
	if err != nil {
		return ErrAccountDidNotDeserialize
	}
	if err := ic.CreateAccount(configAcct, [][]byte{ConfigSeed, {bump}}, data); err != nil {
		return err
	}

	ic.Log("Config initialized: admin=%s fee_bps=%d fee_vault=%s", cfg.Admin, cfg.FeeBps, cfg.FeeVault)
	p.logger.Info("Config initialized",
		zap.String("admin", cfg.Admin.String()),
		zap.Uint16("fee_bps", cfg.FeeBps),
		zap.String("fee_vault", cfg.FeeVault.String()))
	return nil
}

// adminAccounts validates [config (w), admin (s)] and the admin identity.
func (p *Program) adminAccounts(ic *ledger.InvokeContext) (*ledger.AccountInfo, *Config, error) {
	accounts := ic.Accounts()
	if len(accounts) < 2 {
		return nil, nil, ErrAccountNotEnoughKeys
	}
	configAcct, admin := accounts[0], accounts[1]

	if err := requireWritable(configAcct); err != nil {
		return nil, nil, err
	}
	cfg, err := p.loadConfig(configAcct)
	if err != nil {
		return nil, nil, err
	}
	if err := requireSigner(admin); err != nil {
		return nil, nil, err
	}
	if err := ic.ConsumeUnits(AdminUnits); err != nil {
		return nil, nil, err
	}
	if !admin.Key.Equals(cfg.Admin) {
		return nil, nil, ErrUnauthorized
	}
	return configAcct, cfg, nil
}

func (p *Program) setConfig(ic *ledger.InvokeContext, args *SetConfigArgs) error {
	configAcct, cfg, err := p.adminAccounts(ic)
	if err != nil {
		return err
	}
	if args.FeeBps > MaxFeeBps {
		return ErrFeeBpsOutOfRange
	}

	cfg.FeeBps = args.FeeBps
	if args.NewAdmin != nil {
		cfg.Admin = *args.NewAdmin
	}
	if err := p.storeConfig(ic, configAcct, cfg); err != nil {
		return err
	}

	ic.Log("Config updated: admin=%s fee_bps=%d", cfg.Admin, cfg.FeeBps)
	p.logger.Info("Config updated",
		zap.String("admin", cfg.Admin.String()),
		zap.Uint16("fee_bps", cfg.FeeBps))
	return nil
}

func (p *Program) setPaused(ic *ledger.InvokeContext, paused bool) error {
	configAcct, cfg, err := p.adminAccounts(ic)
	if err != nil {
		return err
	}
	cfg.Paused = paused
	if err := p.storeConfig(ic, configAcct, cfg); err != nil {
		return err
	}

	ic.Log("Paused: %t", paused)
	p.logger.Info("Pause flag changed", zap.Bool("paused", paused))
	return nil
}
