// internal/plan/plan.go
package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/solana-router/internal/aggregator"
)

// Action is what a step does.
type Action string

const (
	ActionRoute     Action = "route"
	ActionPause     Action = "pause"
	ActionUnpause   Action = "unpause"
	ActionSetConfig Action = "set_config"
)

type Mint struct {
	Name     string `yaml:"name"`
	Decimals uint8  `yaml:"decimals"`
}

type Wallet struct {
	Name string `yaml:"name"`
	// PrivateKey is base58; a key is generated when empty.
	PrivateKey string            `yaml:"private_key"`
	Balances   map[string]Amount `yaml:"balances"`
}

type Pool struct {
	Name     string `yaml:"name"`
	Venue    string `yaml:"venue"`
	MintA    string `yaml:"mint_a"`
	MintB    string `yaml:"mint_b"`
	ReserveA Amount `yaml:"reserve_a"`
	ReserveB Amount `yaml:"reserve_b"`

	VenueID aggregator.VenueID `yaml:"-"`
}

type Leg struct {
	Pool      string `yaml:"pool"`
	InMint    string `yaml:"in"`
	OutMint   string `yaml:"out"`
	AmountIn  Amount `yaml:"amount_in"`
	AmountOut Amount `yaml:"amount_out"`
	MinOut    Amount `yaml:"min_out"`
}

type Step struct {
	Name   string `yaml:"name"`
	Action Action `yaml:"action"`
	// Wallet signs the step; admin steps default to the plan admin.
	Wallet string `yaml:"wallet"`
	// Repeat submits the route this many times concurrently.
	Repeat int `yaml:"repeat"`
	// In and Out name the source and destination mints of a route. They
	// default to the first leg's input and the last leg's output and are
	// required for a route without legs.
	In     string `yaml:"in"`
	Out    string `yaml:"out"`
	MaxIn  Amount `yaml:"max_in"`
	MinOut Amount `yaml:"min_out"`
	Legs   []Leg  `yaml:"legs"`

	FeeBps   *uint16 `yaml:"fee_bps"`
	NewAdmin string  `yaml:"new_admin"`

	// ExpectError is the router error name the step must fail with.
	ExpectError string `yaml:"expect_error"`
}

// Plan is a simulation scenario.
type Plan struct {
	Admin    string   `yaml:"admin"`
	FeeBps   uint16   `yaml:"fee_bps"`
	FeeMint  string   `yaml:"fee_mint"`
	FeeOwner string   `yaml:"fee_owner"`
	Mints    []Mint   `yaml:"mints"`
	Wallets  []Wallet `yaml:"wallets"`
	Pools    []Pool   `yaml:"pools"`
	Steps    []Step   `yaml:"steps"`

	mints   map[string]*Mint
	wallets map[string]*Wallet
	pools   map[string]*Pool
}

// Manager loads plans.
type Manager struct {
	logger *zap.Logger
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger.Named("plan")}
}

// Load reads and validates the plan at path.
func (m *Manager) Load(path string) (*Plan, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for plan file", zap.String("path", path))
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Plan loaded",
		zap.String("path", path),
		zap.Int("mints", len(p.Mints)),
		zap.Int("wallets", len(p.Wallets)),
		zap.Int("pools", len(p.Pools)),
		zap.Int("steps", len(p.Steps)))
	return p, nil
}

// Parse decodes and validates a YAML plan.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks references and amounts, and fills defaults.
func (p *Plan) Validate() error {
	if len(p.Steps) == 0 {
		return errors.New("no steps found in plan")
	}
	if p.FeeBps > aggregator.MaxFeeBps {
		return fmt.Errorf("fee_bps %d exceeds %d", p.FeeBps, aggregator.MaxFeeBps)
	}

	p.mints = make(map[string]*Mint, len(p.Mints))
	for i := range p.Mints {
		m := &p.Mints[i]
		if m.Name == "" {
			return fmt.Errorf("mint %d: name is required", i)
		}
		if _, dup := p.mints[m.Name]; dup {
			return fmt.Errorf("mint %q defined twice", m.Name)
		}
		p.mints[m.Name] = m
	}

	p.wallets = make(map[string]*Wallet, len(p.Wallets))
	for i := range p.Wallets {
		w := &p.Wallets[i]
		if w.Name == "" {
			return fmt.Errorf("wallet %d: name is required", i)
		}
		if _, dup := p.wallets[w.Name]; dup {
			return fmt.Errorf("wallet %q defined twice", w.Name)
		}
		for mint, amount := range w.Balances {
			if err := p.checkAmount(mint, amount); err != nil {
				return fmt.Errorf("wallet %q: %w", w.Name, err)
			}
		}
		p.wallets[w.Name] = w
	}

	if _, ok := p.wallets[p.Admin]; !ok {
		return fmt.Errorf("admin wallet %q is not defined", p.Admin)
	}
	if p.FeeOwner == "" {
		p.FeeOwner = p.Admin
	}
	if _, ok := p.wallets[p.FeeOwner]; !ok {
		return fmt.Errorf("fee_owner wallet %q is not defined", p.FeeOwner)
	}
	if _, ok := p.mints[p.FeeMint]; !ok {
		return fmt.Errorf("fee_mint %q is not defined", p.FeeMint)
	}

	p.pools = make(map[string]*Pool, len(p.Pools))
	for i := range p.Pools {
		pool := &p.Pools[i]
		if err := p.validatePool(pool); err != nil {
			return fmt.Errorf("pool %q: %w", pool.Name, err)
		}
		p.pools[pool.Name] = pool
	}

	for i := range p.Steps {
		step := &p.Steps[i]
		if step.Name == "" {
			step.Name = fmt.Sprintf("step-%d", i+1)
		}
		if err := p.validateStep(step); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
	}
	return nil
}

func (p *Plan) checkAmount(mint string, amount Amount) error {
	m, ok := p.mints[mint]
	if !ok {
		return fmt.Errorf("unknown mint %q", mint)
	}
	if _, err := amount.BaseUnits(m.Decimals); err != nil {
		return fmt.Errorf("%s: %w", mint, err)
	}
	return nil
}

func (p *Plan) validatePool(pool *Pool) error {
	if pool.Name == "" {
		return errors.New("name is required")
	}
	if _, dup := p.pools[pool.Name]; dup {
		return errors.New("defined twice")
	}
	venue, err := aggregator.ParseVenue(pool.Venue)
	if err != nil {
		return err
	}
	pool.VenueID = venue
	if pool.MintA == pool.MintB {
		return errors.New("mint_a and mint_b must differ")
	}
	if err := p.checkAmount(pool.MintA, pool.ReserveA); err != nil {
		return err
	}
	return p.checkAmount(pool.MintB, pool.ReserveB)
}

func (p *Plan) validateStep(step *Step) error {
	switch step.Action {
	case ActionPause, ActionUnpause:
	case ActionSetConfig:
		if step.FeeBps == nil {
			return errors.New("set_config needs fee_bps")
		}
		if step.NewAdmin != "" {
			if _, ok := p.wallets[step.NewAdmin]; !ok {
				return fmt.Errorf("new_admin wallet %q is not defined", step.NewAdmin)
			}
		}
	case ActionRoute:
		return p.validateRoute(step)
	default:
		return fmt.Errorf("unsupported action %q", step.Action)
	}
	if step.Wallet == "" {
		step.Wallet = p.Admin
	}
	if _, ok := p.wallets[step.Wallet]; !ok {
		return fmt.Errorf("wallet %q is not defined", step.Wallet)
	}
	return nil
}

func (p *Plan) validateRoute(step *Step) error {
	if _, ok := p.wallets[step.Wallet]; !ok {
		return fmt.Errorf("wallet %q is not defined", step.Wallet)
	}
	if step.Repeat < 0 {
		return errors.New("repeat must not be negative")
	}
	if step.Repeat == 0 {
		step.Repeat = 1
	}
	for i := range step.Legs {
		leg := &step.Legs[i]
		pool, ok := p.pools[leg.Pool]
		if !ok {
			return fmt.Errorf("leg %d: unknown pool %q", i, leg.Pool)
		}
		if leg.InMint == "" {
			leg.InMint = pool.MintA
		}
		if leg.OutMint == "" {
			if leg.InMint == pool.MintA {
				leg.OutMint = pool.MintB
			} else {
				leg.OutMint = pool.MintA
			}
		}
		if !pool.holds(leg.InMint) || !pool.holds(leg.OutMint) || leg.InMint == leg.OutMint {
			return fmt.Errorf("leg %d: pool %q does not swap %s for %s", i, pool.Name, leg.InMint, leg.OutMint)
		}
		for _, check := range []struct {
			mint   string
			amount Amount
		}{{leg.InMint, leg.AmountIn}, {leg.OutMint, leg.AmountOut}, {leg.OutMint, leg.MinOut}} {
			if err := p.checkAmount(check.mint, check.amount); err != nil {
				return fmt.Errorf("leg %d: %w", i, err)
			}
		}
	}
	if err := p.resolveRouteMints(step); err != nil {
		return err
	}
	if err := p.checkAmount(step.In, step.MaxIn); err != nil {
		return fmt.Errorf("max_in: %w", err)
	}
	if err := p.checkAmount(step.Out, step.MinOut); err != nil {
		return fmt.Errorf("min_out: %w", err)
	}
	return nil
}

// resolveRouteMints fills In and Out from the legs. An explicit value that
// disagrees with the legs is kept: the router rejects the mismatch.
func (p *Plan) resolveRouteMints(step *Step) error {
	if n := len(step.Legs); n > 0 {
		if step.In == "" {
			step.In = step.Legs[0].InMint
		}
		if step.Out == "" {
			step.Out = step.Legs[n-1].OutMint
		}
	}
	if step.In == "" || step.Out == "" {
		return errors.New("route without legs needs in and out")
	}
	for _, name := range []string{step.In, step.Out} {
		if _, ok := p.mints[name]; !ok {
			return fmt.Errorf("unknown mint %q", name)
		}
	}
	return nil
}

func (pool *Pool) holds(mint string) bool {
	return mint == pool.MintA || mint == pool.MintB
}

// MintByName returns the mint definition.
func (p *Plan) MintByName(name string) (*Mint, bool) {
	m, ok := p.mints[name]
	return m, ok
}

// WalletByName returns the wallet definition.
func (p *Plan) WalletByName(name string) (*Wallet, bool) {
	w, ok := p.wallets[name]
	return w, ok
}

// PoolByName returns the pool definition.
func (p *Plan) PoolByName(name string) (*Pool, bool) {
	pool, ok := p.pools[name]
	return pool, ok
}
