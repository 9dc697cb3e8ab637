// internal/blockchain/ledger/ledger.go
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/computebudget"
)

// MaxRecentBlockhashes is how many blockhashes stay valid for new transactions.
const MaxRecentBlockhashes = 150

// computeBudgetUnits is charged for each compute budget instruction.
const computeBudgetUnits uint64 = 150

// Result describes a committed transaction.
type Result struct {
	Signature            solana.Signature
	Slot                 uint64
	Logs                 []string
	ComputeUnitsConsumed uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger.Named("ledger")
	}
}

// WithComputeUnitLimits overrides the default and the maximum per-transaction
// compute unit limit.
func WithComputeUnitLimits(defaultUnits, maxUnits uint32) Option {
	return func(l *Ledger) {
		if defaultUnits > 0 {
			l.defaultUnits = defaultUnits
		}
		if maxUnits > 0 {
			l.maxUnits = maxUnits
		}
	}
}

// Ledger is an in-memory bank executing signed transactions against native
// programs. It is safe for concurrent use: transactions touching disjoint
// writable accounts run in parallel, conflicting ones fail with ErrAccountInUse.
type Ledger struct {
	mu          sync.RWMutex
	accounts    map[solana.PublicKey]*Account
	slot        uint64
	blockhashes []solana.Hash
	known       map[solana.Hash]struct{}
	processed   map[solana.Signature]struct{}

	progMu   sync.RWMutex
	programs map[solana.PublicKey]Program

	locks *lockTable

	defaultUnits uint32
	maxUnits     uint32
	logger       *zap.Logger
}

// New creates an empty ledger with a single valid blockhash.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts:     make(map[solana.PublicKey]*Account),
		known:        make(map[solana.Hash]struct{}),
		processed:    make(map[solana.Signature]struct{}),
		programs:     make(map[solana.PublicKey]Program),
		locks:        newLockTable(),
		defaultUnits: computebudget.DefaultUnits,
		maxUnits:     computebudget.MaxUnits,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.defaultUnits > l.maxUnits {
		l.defaultUnits = l.maxUnits
	}
	l.pushBlockhash(solana.Hash(sha256.Sum256([]byte("genesis"))))
	return l
}

// RegisterProgram deploys program at id as an executable account.
func (l *Ledger) RegisterProgram(id solana.PublicKey, program Program) {
	l.progMu.Lock()
	l.programs[id] = program
	l.progMu.Unlock()

	l.mu.Lock()
	l.accounts[id] = &Account{Lamports: 1, Owner: BPFLoaderProgramID, Executable: true}
	l.mu.Unlock()

	l.logger.Debug("Program registered", zap.String("program", id.String()))
}

// SetAccount stores a copy of acct at key, outside of any transaction.
func (l *Ledger) SetAccount(key solana.PublicKey, acct *Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[key] = acct.Clone()
}

// GetAccount returns a copy of the account stored at key.
func (l *Ledger) GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	acct, ok := l.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return acct.Clone(), nil
}

// LatestBlockhash returns the most recent blockhash.
func (l *Ledger) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if err := ctx.Err(); err != nil {
		return solana.Hash{}, err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.blockhashes[len(l.blockhashes)-1], nil
}

// Slot returns the number of committed transactions.
func (l *Ledger) Slot() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.slot
}

// SimulateTransaction executes tx against the current state without
// committing anything or checking the blockhash.
func (l *Ledger) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lm, err := sanitize(tx)
	if err != nil {
		return nil, err
	}
	state, err := l.run(tx, lm)
	res := &Result{Signature: tx.Signatures[0], Slot: l.Slot()}
	if state != nil {
		res.Logs = state.logs
		res.ComputeUnitsConsumed = state.used
	}
	return res, err
}

// SendTransaction verifies, executes and atomically commits tx.
// On failure no account is modified and a *TransactionError is returned for
// instruction errors.
func (l *Ledger) SendTransaction(ctx context.Context, tx *solana.Transaction) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lm, err := sanitize(tx)
	if err != nil {
		return nil, err
	}
	sig := tx.Signatures[0]

	l.mu.RLock()
	_, recent := l.known[tx.Message.RecentBlockhash]
	_, seen := l.processed[sig]
	l.mu.RUnlock()
	if !recent {
		return nil, fmt.Errorf("%w: %s", ErrBlockhashNotFound, tx.Message.RecentBlockhash)
	}
	if seen {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, sig)
	}

	writable, readonly := lm.partition()
	if err := l.locks.lock(writable, readonly); err != nil {
		return nil, err
	}
	defer l.locks.unlock(writable, readonly)

	state, err := l.run(tx, lm)
	if err != nil {
		var txErr *TransactionError
		if errors.As(err, &txErr) {
			l.mu.Lock()
			l.processed[sig] = struct{}{}
			l.mu.Unlock()
		}
		l.logger.Debug("Transaction failed",
			zap.String("signature", sig.String()),
			zap.Error(err))
		return nil, err
	}

	l.mu.Lock()
	if _, dup := l.processed[sig]; dup {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyProcessed, sig)
	}
	for _, key := range writable {
		acct := state.accounts[key]
		if acct.IsEmpty() {
			delete(l.accounts, key)
			continue
		}
		l.accounts[key] = acct
	}
	l.processed[sig] = struct{}{}
	l.slot++
	slot := l.slot
	l.pushBlockhash(nextBlockhash(l.blockhashes[len(l.blockhashes)-1], slot))
	l.mu.Unlock()

	l.logger.Debug("Transaction committed",
		zap.String("signature", sig.String()),
		zap.Uint64("slot", slot),
		zap.Uint64("compute_units", state.used))

	return &Result{
		Signature:            sig,
		Slot:                 slot,
		Logs:                 state.logs,
		ComputeUnitsConsumed: state.used,
	}, nil
}

// run executes every instruction on a private copy of the touched accounts.
func (l *Ledger) run(tx *solana.Transaction, lm *loadedMessage) (*execState, error) {
	msg := tx.Message

	budget := computebudget.ComputeBudgetConfig{Units: l.defaultUnits}
	for i, ci := range msg.Instructions {
		if !lm.keys[ci.ProgramIDIndex].Equals(computebudget.ProgramID) {
			continue
		}
		if err := computebudget.Apply(&budget, ci.Data); err != nil {
			return nil, &TransactionError{InstructionIndex: i, Err: fmt.Errorf("%w: %v", ErrInvalidComputeBudget, err)}
		}
	}
	if budget.Units > l.maxUnits {
		budget.Units = l.maxUnits
	}

	state := &execState{
		accounts: make(map[solana.PublicKey]*Account, len(lm.keys)),
		lookup:   l.program,
		limit:    uint64(budget.Units),
	}

	l.mu.RLock()
	for _, key := range lm.keys {
		if acct, ok := l.accounts[key]; ok {
			state.accounts[key] = acct.Clone()
		} else {
			state.accounts[key] = emptyAccount()
		}
	}
	l.mu.RUnlock()

	for i, ci := range msg.Instructions {
		programID := lm.keys[ci.ProgramIDIndex]
		if programID.Equals(computebudget.ProgramID) {
			if err := state.consume(computeBudgetUnits); err != nil {
				return state, &TransactionError{InstructionIndex: i, Err: err, Logs: state.logs}
			}
			continue
		}

		infos := make([]*AccountInfo, 0, len(ci.Accounts))
		for _, idx := range ci.Accounts {
			key := lm.keys[idx]
			infos = append(infos, &AccountInfo{
				Key:        key,
				IsSigner:   lm.signer[idx],
				IsWritable: lm.writable[idx],
				acct:       state.accounts[key],
			})
		}

		if err := state.execute(programID, infos, []byte(ci.Data), 1); err != nil {
			return state, &TransactionError{InstructionIndex: i, Err: err, Logs: state.logs}
		}
	}
	return state, nil
}

func (l *Ledger) program(id solana.PublicKey) (Program, bool) {
	l.progMu.RLock()
	defer l.progMu.RUnlock()
	p, ok := l.programs[id]
	return p, ok
}

// pushBlockhash must be called with mu held.
func (l *Ledger) pushBlockhash(h solana.Hash) {
	l.blockhashes = append(l.blockhashes, h)
	l.known[h] = struct{}{}
	if len(l.blockhashes) > MaxRecentBlockhashes {
		delete(l.known, l.blockhashes[0])
		l.blockhashes = l.blockhashes[1:]
	}
}

func nextBlockhash(prev solana.Hash, slot uint64) solana.Hash {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], slot)
	h := sha256.New()
	h.Write(prev[:])
	h.Write(buf[:])
	var out solana.Hash
	copy(out[:], h.Sum(nil))
	return out
}
