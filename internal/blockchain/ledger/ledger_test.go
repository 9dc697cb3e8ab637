// internal/blockchain/ledger/ledger_test.go
package ledger

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/computebudget"
)

const (
	opWrite uint8 = iota
	opBurn
	opWriteThenFail
	opCall
	opReturn
	opCreate
	opCallSigned
)

var errTestFailure = errors.New("test program failure")

// scratchProgram interprets the first data byte as an operation.
func scratchProgram(ic *InvokeContext) error {
	data := ic.Data()
	if len(data) == 0 {
		return errors.New("empty data")
	}
	accounts := ic.Accounts()
	switch data[0] {
	case opWrite:
		return ic.SetAccountData(accounts[0], data[1:])
	case opBurn:
		return ic.ConsumeUnits(binary.LittleEndian.Uint64(data[1:9]))
	case opWriteThenFail:
		if err := ic.SetAccountData(accounts[0], data[1:]); err != nil {
			return err
		}
		return errTestFailure
	case opCall:
		metas := make([]*solana.AccountMeta, 0, len(accounts)-1)
		for _, ai := range accounts[1:] {
			metas = append(metas, ai.Meta())
		}
		return ic.Invoke(solana.NewInstruction(accounts[0].Key, metas, data[1:]))
	case opReturn:
		return ic.SetReturnData(data[1:])
	case opCreate:
		_, bump, err := solana.FindProgramAddress([][]byte{[]byte("seed")}, ic.ProgramID())
		if err != nil {
			return err
		}
		return ic.CreateAccount(accounts[0], [][]byte{[]byte("seed"), {bump}}, data[1:])
	case opCallSigned:
		_, bump, err := solana.FindProgramAddress([][]byte{[]byte("seed")}, ic.ProgramID())
		if err != nil {
			return err
		}
		ix := solana.NewInstruction(accounts[0].Key, []*solana.AccountMeta{
			solana.NewAccountMeta(accounts[1].Key, false, true),
		}, data[1:])
		return ic.InvokeSigned(ix, [][][]byte{{[]byte("seed"), {bump}}})
	}
	return errors.New("unknown op")
}

type fixture struct {
	ledger  *Ledger
	payer   solana.PrivateKey
	program solana.PublicKey
	callee  solana.PublicKey
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	f := &fixture{
		ledger:  New(opts...),
		payer:   payer,
		program: solana.NewWallet().PublicKey(),
		callee:  solana.NewWallet().PublicKey(),
	}
	f.ledger.RegisterProgram(f.program, ProgramFunc(scratchProgram))
	f.ledger.RegisterProgram(f.callee, ProgramFunc(scratchProgram))
	return f
}

func (f *fixture) ownedAccount(t *testing.T, owner solana.PublicKey, data []byte) solana.PublicKey {
	t.Helper()
	key := solana.NewWallet().PublicKey()
	f.ledger.SetAccount(key, NewAccount(owner, data))
	return key
}

func (f *fixture) tx(t *testing.T, signers []solana.PrivateKey, ixs ...solana.Instruction) *solana.Transaction {
	t.Helper()
	bh, err := f.ledger.LatestBlockhash(context.Background())
	require.NoError(t, err)

	tx, err := solana.NewTransaction(ixs, bh, solana.TransactionPayer(f.payer.PublicKey()))
	require.NoError(t, err)

	all := append([]solana.PrivateKey{f.payer}, signers...)
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range all {
			if all[i].PublicKey().Equals(key) {
				return &all[i]
			}
		}
		return nil
	})
	require.NoError(t, err)
	return tx
}

func op(code uint8, payload ...byte) []byte {
	return append([]byte{code}, payload...)
}

func (f *fixture) data(t *testing.T, key solana.PublicKey) []byte {
	t.Helper()
	acct, err := f.ledger.GetAccount(context.Background(), key)
	require.NoError(t, err)
	return acct.Data
}

func TestSendTransactionCommits(t *testing.T) {
	f := newFixture(t)
	target := f.ownedAccount(t, f.program, []byte{0})

	before, err := f.ledger.LatestBlockhash(context.Background())
	require.NoError(t, err)

	ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(target, true, false),
	}, op(opWrite, 7, 8, 9))

	res, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	require.NoError(t, err)

	assert.Equal(t, []byte{7, 8, 9}, f.data(t, target))
	assert.Equal(t, uint64(1), res.Slot)
	assert.Contains(t, res.Logs, "Program "+f.program.String()+" invoke [1]")
	assert.Contains(t, res.Logs, "Program "+f.program.String()+" success")

	after, err := f.ledger.LatestBlockhash(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestFailedInstructionRollsBack(t *testing.T) {
	f := newFixture(t)
	first := f.ownedAccount(t, f.program, []byte{1})
	second := f.ownedAccount(t, f.program, []byte{2})

	ok := solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(first, true, false),
	}, op(opWrite, 10))
	bad := solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(second, true, false),
	}, op(opWriteThenFail, 20))

	_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ok, bad))
	require.Error(t, err)

	var txErr *TransactionError
	require.ErrorAs(t, err, &txErr)
	assert.Equal(t, 1, txErr.InstructionIndex)
	assert.ErrorIs(t, err, errTestFailure)

	assert.Equal(t, []byte{1}, f.data(t, first))
	assert.Equal(t, []byte{2}, f.data(t, second))
	assert.Equal(t, uint64(0), f.ledger.Slot())
}

func TestSignatureChecks(t *testing.T) {
	f := newFixture(t)
	target := f.ownedAccount(t, f.program, nil)
	ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(target, true, false),
	}, op(opWrite, 1))

	t.Run("tampered message", func(t *testing.T) {
		tx := f.tx(t, nil, ix)
		tx.Message.Instructions[0].Data = op(opWrite, 2)
		_, err := f.ledger.SendTransaction(context.Background(), tx)
		assert.ErrorIs(t, err, ErrSignatureVerification)
	})

	t.Run("missing signature", func(t *testing.T) {
		tx := f.tx(t, nil, ix)
		tx.Signatures = nil
		_, err := f.ledger.SendTransaction(context.Background(), tx)
		assert.ErrorIs(t, err, ErrMissingSignature)
	})

	t.Run("duplicate submission", func(t *testing.T) {
		tx := f.tx(t, nil, ix)
		_, err := f.ledger.SendTransaction(context.Background(), tx)
		require.NoError(t, err)
		_, err = f.ledger.SendTransaction(context.Background(), tx)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	})
}

func TestBlockhashExpiry(t *testing.T) {
	f := newFixture(t)
	target := f.ownedAccount(t, f.program, nil)
	ix := func(b byte) solana.Instruction {
		return solana.NewInstruction(f.program, []*solana.AccountMeta{
			solana.NewAccountMeta(target, true, false),
		}, op(opWrite, b))
	}

	stale := f.tx(t, nil, ix(0))
	for i := 0; i < MaxRecentBlockhashes; i++ {
		_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix(byte(i+1))))
		require.NoError(t, err)
	}

	_, err := f.ledger.SendTransaction(context.Background(), stale)
	assert.ErrorIs(t, err, ErrBlockhashNotFound)
}

func TestAccountLocks(t *testing.T) {
	f := newFixture(t)
	target := f.ownedAccount(t, f.program, nil)
	ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(target, true, false),
	}, op(opWrite, 1))

	require.NoError(t, f.ledger.locks.lock([]solana.PublicKey{target}, nil))
	_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	assert.ErrorIs(t, err, ErrAccountInUse)

	f.ledger.locks.unlock([]solana.PublicKey{target}, nil)
	_, err = f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	assert.NoError(t, err)
}

func TestLockTableSharesReaders(t *testing.T) {
	lt := newLockTable()
	key := solana.NewWallet().PublicKey()

	require.NoError(t, lt.lock(nil, []solana.PublicKey{key}))
	require.NoError(t, lt.lock(nil, []solana.PublicKey{key}))
	assert.ErrorIs(t, lt.lock([]solana.PublicKey{key}, nil), ErrAccountInUse)

	lt.unlock(nil, []solana.PublicKey{key})
	assert.ErrorIs(t, lt.lock([]solana.PublicKey{key}, nil), ErrAccountInUse)

	lt.unlock(nil, []solana.PublicKey{key})
	assert.NoError(t, lt.lock([]solana.PublicKey{key}, nil))
}

func TestConcurrentDisjointTransactions(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	payers := make([]solana.PrivateKey, workers)
	targets := make([]solana.PublicKey, workers)
	txs := make([]*solana.Transaction, workers)
	for i := range targets {
		targets[i] = f.ownedAccount(t, f.program, nil)
		payers[i] = solana.NewWallet().PrivateKey
		ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
			solana.NewAccountMeta(targets[i], true, false),
		}, op(opWrite, byte(i)))

		bh, err := f.ledger.LatestBlockhash(context.Background())
		require.NoError(t, err)
		tx, err := solana.NewTransaction([]solana.Instruction{ix}, bh, solana.TransactionPayer(payers[i].PublicKey()))
		require.NoError(t, err)
		signer := payers[i]
		_, err = tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &signer })
		require.NoError(t, err)
		txs[i] = tx
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range txs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.SendTransaction(context.Background(), txs[i])
		}(i)
	}
	wg.Wait()

	for i := range errs {
		require.NoError(t, errs[i])
		assert.Equal(t, []byte{byte(i)}, f.data(t, targets[i]))
	}
	assert.Equal(t, uint64(workers), f.ledger.Slot())
}

func TestComputeBudget(t *testing.T) {
	f := newFixture(t, WithComputeUnitLimits(10_000, 50_000))
	burn := func(units uint64) solana.Instruction {
		payload := make([]byte, 8)
		binary.LittleEndian.PutUint64(payload, units)
		return solana.NewInstruction(f.program, nil, op(opBurn, payload...))
	}

	_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, burn(20_000)))
	assert.ErrorIs(t, err, ErrComputeBudgetExceeded)

	limit, err := (&computebudget.SetComputeUnitLimitInstruction{Units: 30_000}).Build()
	require.NoError(t, err)
	res, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, limit, burn(20_000)))
	require.NoError(t, err)
	assert.Equal(t, uint64(20_150), res.ComputeUnitsConsumed)

	// requests above the maximum are clamped
	limit, err = (&computebudget.SetComputeUnitLimitInstruction{Units: computebudget.MaxUnits}).Build()
	require.NoError(t, err)
	_, err = f.ledger.SendTransaction(context.Background(), f.tx(t, nil, limit, burn(60_000)))
	assert.ErrorIs(t, err, ErrComputeBudgetExceeded)
}

func TestAccountWriteRules(t *testing.T) {
	f := newFixture(t)
	foreign := f.ownedAccount(t, f.callee, []byte{1})
	owned := f.ownedAccount(t, f.program, []byte{1})

	t.Run("read-only", func(t *testing.T) {
		ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
			solana.NewAccountMeta(owned, false, false),
		}, op(opWrite, 2))
		_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
		assert.ErrorIs(t, err, ErrReadonlyDataModified)
	})

	t.Run("foreign owner", func(t *testing.T) {
		ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
			solana.NewAccountMeta(foreign, true, false),
		}, op(opWrite, 2))
		_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
		assert.ErrorIs(t, err, ErrExternalAccountDataModified)
	})
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)
	pda, _, err := solana.FindProgramAddress([][]byte{[]byte("seed")}, f.program)
	require.NoError(t, err)

	ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(pda, true, false),
	}, op(opCreate, 42))
	_, err = f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	require.NoError(t, err)

	acct, err := f.ledger.GetAccount(context.Background(), pda)
	require.NoError(t, err)
	assert.Equal(t, f.program, acct.Owner)
	assert.Equal(t, []byte{42}, acct.Data)

	_, err = f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	assert.ErrorIs(t, err, ErrAccountAlreadyInitialized)

	other := solana.NewWallet().PublicKey()
	ix = solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(other, true, false),
	}, op(opCreate, 42))
	_, err = f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	assert.ErrorIs(t, err, ErrInvalidSeeds)
}

func TestCrossProgramInvocation(t *testing.T) {
	f := newFixture(t)
	target := f.ownedAccount(t, f.callee, []byte{0})

	t.Run("writes through callee", func(t *testing.T) {
		ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
			solana.NewAccountMeta(f.callee, false, false),
			solana.NewAccountMeta(target, true, false),
		}, op(opCall, opWrite, 5))
		res, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
		require.NoError(t, err)
		assert.Equal(t, []byte{5}, f.data(t, target))
		assert.Contains(t, res.Logs, "Program "+f.callee.String()+" invoke [2]")
	})

	t.Run("read-only stays read-only in callee", func(t *testing.T) {
		ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
			solana.NewAccountMeta(f.callee, false, false),
			solana.NewAccountMeta(target, false, false),
		}, op(opCall, opWrite, 6))
		_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
		assert.ErrorIs(t, err, ErrReadonlyDataModified)
	})

	t.Run("missing program account", func(t *testing.T) {
		ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
			solana.NewAccountMeta(target, true, false),
		}, op(opCall, opWrite, 6))
		_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
		assert.ErrorIs(t, err, ErrProgramNotExecutable)
	})

	t.Run("call depth", func(t *testing.T) {
		data := op(opReturn)
		for i := 0; i < MaxInvokeDepth; i++ {
			data = op(opCall, data...)
		}
		ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
			solana.NewAccountMeta(f.program, false, false),
			solana.NewAccountMeta(f.program, false, false),
			solana.NewAccountMeta(f.program, false, false),
			solana.NewAccountMeta(f.program, false, false),
			solana.NewAccountMeta(f.program, false, false),
		}, data)
		_, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
		assert.ErrorIs(t, err, ErrCallDepth)
	})
}

func TestInvokeSignedPrivileges(t *testing.T) {
	f := newFixture(t)
	pda, _, err := solana.FindProgramAddress([][]byte{[]byte("seed")}, f.program)
	require.NoError(t, err)

	ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(f.callee, false, false),
		solana.NewAccountMeta(pda, false, false),
	}, op(opCallSigned, opReturn, 1))
	_, err = f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	require.NoError(t, err)

	// the callee program cannot sign for an address derived from another program
	ix = solana.NewInstruction(f.callee, []*solana.AccountMeta{
		solana.NewAccountMeta(f.program, false, false),
		solana.NewAccountMeta(pda, false, false),
	}, op(opCallSigned, opReturn, 1))
	_, err = f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	assert.ErrorIs(t, err, ErrPrivilegeEscalation)
}

func TestReturnData(t *testing.T) {
	f := newFixture(t)
	ix := solana.NewInstruction(f.program, nil, op(opReturn, 1, 2, 3))
	res, err := f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	require.NoError(t, err)
	assert.Contains(t, res.Logs, "Program return: "+f.program.String()+" AQID")

	big := make([]byte, MaxReturnDataSize+1)
	ix = solana.NewInstruction(f.program, nil, op(opReturn, big...))
	_, err = f.ledger.SendTransaction(context.Background(), f.tx(t, nil, ix))
	assert.ErrorIs(t, err, ErrReturnDataTooLarge)
}

func TestSimulateDoesNotCommit(t *testing.T) {
	f := newFixture(t)
	target := f.ownedAccount(t, f.program, []byte{1})
	ix := solana.NewInstruction(f.program, []*solana.AccountMeta{
		solana.NewAccountMeta(target, true, false),
	}, op(opWrite, 9))

	res, err := f.ledger.SimulateTransaction(context.Background(), f.tx(t, nil, ix))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Logs)
	assert.Equal(t, []byte{1}, f.data(t, target))
	assert.Equal(t, uint64(0), f.ledger.Slot())
}

func TestGetAccountNotFound(t *testing.T) {
	l := New()
	_, err := l.GetAccount(context.Background(), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
