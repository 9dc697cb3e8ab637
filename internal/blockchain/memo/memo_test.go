package memo

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
)

func send(t *testing.T, l *ledger.Ledger, payer solana.PrivateKey, ix solana.Instruction) (*ledger.Result, error) {
	t.Helper()
	bh, err := l.LatestBlockhash(context.Background())
	require.NoError(t, err)
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, bh, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)
	_, err = tx.Sign(func(solana.PublicKey) *solana.PrivateKey { return &payer })
	require.NoError(t, err)
	return l.SendTransaction(context.Background(), tx)
}

func TestMemoIsLogged(t *testing.T) {
	l := ledger.New()
	Install(l)
	payer := solana.NewWallet().PrivateKey

	res, err := send(t, l, payer, NewMemoInstruction("route#1", payer.PublicKey()))
	require.NoError(t, err)
	assert.Contains(t, res.Logs, `Program log: Memo (len 7): "route#1"`)
	assert.Equal(t, BaseUnits+7*PerByteUnits, res.ComputeUnitsConsumed)
}

func TestMemoRejectsInvalidInput(t *testing.T) {
	l := ledger.New()
	Install(l)
	payer := solana.NewWallet().PrivateKey

	bad := solana.NewInstruction(ProgramID, solana.AccountMetaSlice{solana.NewAccountMeta(payer.PublicKey(), false, true)}, []byte{0xff, 0xfe})
	_, err := send(t, l, payer, bad)
	assert.ErrorIs(t, err, ErrInvalidUTF8)

	unsigned := solana.NewInstruction(ProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(solana.NewWallet().PublicKey(), false, false),
	}, []byte("hi"))
	_, err = send(t, l, payer, unsigned)
	assert.ErrorIs(t, err, ErrMissingSignature)
}
