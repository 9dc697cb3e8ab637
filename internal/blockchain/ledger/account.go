// internal/blockchain/ledger/account.go
package ledger

import (
	"github.com/gagliardetto/solana-go"
)

// BPFLoaderProgramID owns every program registered in the ledger.
var BPFLoaderProgramID = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

// Account is the stored state behind an address.
type Account struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
	Executable bool
}

// NewAccount returns an account owned by owner holding a copy of data.
func NewAccount(owner solana.PublicKey, data []byte) *Account {
	return &Account{
		Owner: owner,
		Data:  append([]byte(nil), data...),
	}
}

// emptyAccount is what a never-written address looks like.
func emptyAccount() *Account {
	return &Account{Owner: solana.SystemProgramID}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       append([]byte(nil), a.Data...),
		Executable: a.Executable,
	}
}

// IsEmpty reports whether the account was never initialized.
func (a *Account) IsEmpty() bool {
	return a.Owner.Equals(solana.SystemProgramID) && len(a.Data) == 0 && a.Lamports == 0 && !a.Executable
}

// AccountInfo is a program's view of one instruction account.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool

	acct *Account
}

// Owner returns the program that owns the account.
func (ai *AccountInfo) Owner() solana.PublicKey {
	return ai.acct.Owner
}

// Data returns the account data. Callers must not modify it; use
// InvokeContext.SetAccountData.
func (ai *AccountInfo) Data() []byte {
	return ai.acct.Data
}

// Lamports returns the account balance in lamports.
func (ai *AccountInfo) Lamports() uint64 {
	return ai.acct.Lamports
}

// Executable reports whether the account holds a program.
func (ai *AccountInfo) Executable() bool {
	return ai.acct.Executable
}

// IsInitialized reports whether the account holds any state.
func (ai *AccountInfo) IsInitialized() bool {
	return !ai.acct.IsEmpty()
}

// Meta converts the info back into an account meta.
func (ai *AccountInfo) Meta() *solana.AccountMeta {
	return solana.NewAccountMeta(ai.Key, ai.IsWritable, ai.IsSigner)
}
