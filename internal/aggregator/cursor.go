// internal/aggregator/cursor.go
package aggregator

import "github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"

// AccountCursor hands out consecutive slices of the remaining accounts.
type AccountCursor struct {
	accounts []*ledger.AccountInfo
	pos      int
}

func NewAccountCursor(accounts []*ledger.AccountInfo) *AccountCursor {
	return &AccountCursor{accounts: accounts}
}

// Take consumes the next n accounts.
func (c *AccountCursor) Take(n int) ([]*ledger.AccountInfo, error) {
	if n < 0 || n > c.Remaining() {
		return nil, ErrRemainingAccountsMismatch
	}
	out := c.accounts[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

// Remaining is the number of accounts not consumed yet.
func (c *AccountCursor) Remaining() int {
	return len(c.accounts) - c.pos
}
