// internal/blockchain/ledger/locks.go
package ledger

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// lockTable holds the account locks of in-flight transactions.
// Writers are exclusive, readers share.
type lockTable struct {
	mu    sync.Mutex
	write map[solana.PublicKey]struct{}
	read  map[solana.PublicKey]int
}

func newLockTable() *lockTable {
	return &lockTable{
		write: make(map[solana.PublicKey]struct{}),
		read:  make(map[solana.PublicKey]int),
	}
}

// lock takes every lock or none of them.
func (lt *lockTable) lock(writable, readonly []solana.PublicKey) error {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for _, key := range writable {
		if _, held := lt.write[key]; held || lt.read[key] > 0 {
			return fmt.Errorf("%w: %s", ErrAccountInUse, key)
		}
	}
	for _, key := range readonly {
		if _, held := lt.write[key]; held {
			return fmt.Errorf("%w: %s", ErrAccountInUse, key)
		}
	}

	for _, key := range writable {
		lt.write[key] = struct{}{}
	}
	for _, key := range readonly {
		lt.read[key]++
	}
	return nil
}

func (lt *lockTable) unlock(writable, readonly []solana.PublicKey) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for _, key := range writable {
		delete(lt.write, key)
	}
	for _, key := range readonly {
		if lt.read[key] <= 1 {
			delete(lt.read, key)
			continue
		}
		lt.read[key]--
	}
}
