package wallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWalletRoundTrip(t *testing.T) {
	generated, err := Generate("alice")
	require.NoError(t, err)

	restored, err := NewWallet("alice", generated.PrivateKeyBase58())
	require.NoError(t, err)

	assert.Equal(t, generated.PublicKey, restored.PublicKey)
	assert.Equal(t, "alice", restored.Name)
	assert.Equal(t, generated.PublicKey.String(), restored.String())
}

func TestNewWalletRejectsBadKeys(t *testing.T) {
	_, err := NewWallet("x", "not-base58-0OIl")
	assert.Error(t, err)

	_, err = NewWallet("x", "3yZe7d")
	assert.ErrorContains(t, err, "invalid private key length")
}

func TestGetATAMatchesDerivation(t *testing.T) {
	w, err := Generate("bob")
	require.NoError(t, err)
	mint := solana.NewWallet().PublicKey()

	want, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	require.NoError(t, err)

	got, err := w.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// second lookup comes from the cache
	again, err := w.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, want, again)

	require.NoError(t, w.PrecomputeATAs([]solana.PublicKey{solana.NewWallet().PublicKey()}))
	assert.Len(t, w.ataCache, 2)
}

func TestSignTransactionWithSeveralSigners(t *testing.T) {
	payer, err := Generate("payer")
	require.NoError(t, err)
	admin, err := Generate("admin")
	require.NoError(t, err)

	ix := solana.NewInstruction(solana.SystemProgramID, solana.AccountMetaSlice{
		solana.NewAccountMeta(admin.PublicKey, false, true),
	}, []byte{1})
	newTx := func() *solana.Transaction {
		tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(payer.PublicKey))
		require.NoError(t, err)
		return tx
	}

	assert.Error(t, payer.SignTransaction(newTx()), "admin key is missing")

	tx := newTx()
	require.NoError(t, SignTransaction(tx, payer, admin))
	require.Len(t, tx.Signatures, 2)

	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)
	assert.True(t, tx.Signatures[0].Verify(payer.PublicKey, msg))
	assert.True(t, tx.Signatures[1].Verify(admin.PublicKey, msg))
}
