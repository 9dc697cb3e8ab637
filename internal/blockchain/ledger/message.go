// internal/blockchain/ledger/message.go
package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// loadedMessage is a sanitized legacy message with resolved privileges.
type loadedMessage struct {
	keys     []solana.PublicKey
	signer   []bool
	writable []bool
}

// sanitize checks the header against the key list and verifies every
// required signature over the serialized message.
func sanitize(tx *solana.Transaction) (*loadedMessage, error) {
	if tx == nil {
		return nil, ErrInvalidMessage
	}
	msg := tx.Message
	if len(msg.AddressTableLookups) > 0 {
		return nil, fmt.Errorf("%w: address table lookups are not supported", ErrInvalidMessage)
	}

	keys := msg.AccountKeys
	numSigned := int(msg.Header.NumRequiredSignatures)
	roSigned := int(msg.Header.NumReadonlySignedAccounts)
	roUnsigned := int(msg.Header.NumReadonlyUnsignedAccounts)

	if numSigned == 0 || numSigned > len(keys) || roSigned >= numSigned || roUnsigned > len(keys)-numSigned {
		return nil, fmt.Errorf("%w: bad header", ErrInvalidMessage)
	}
	if len(tx.Signatures) < numSigned {
		return nil, fmt.Errorf("%w: have %d of %d", ErrMissingSignature, len(tx.Signatures), numSigned)
	}

	seen := make(map[solana.PublicKey]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: duplicate account key %s", ErrInvalidMessage, k)
		}
		seen[k] = struct{}{}
	}

	content, err := msg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	for i := 0; i < numSigned; i++ {
		if !tx.Signatures[i].Verify(keys[i], content) {
			return nil, fmt.Errorf("%w: %s", ErrSignatureVerification, keys[i])
		}
	}

	invoked := make(map[uint16]struct{}, len(msg.Instructions))
	for _, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(keys) {
			return nil, fmt.Errorf("%w: program index out of range", ErrInvalidMessage)
		}
		for _, idx := range ci.Accounts {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("%w: account index out of range", ErrInvalidMessage)
			}
		}
		invoked[ci.ProgramIDIndex] = struct{}{}
	}

	lm := &loadedMessage{
		keys:     keys,
		signer:   make([]bool, len(keys)),
		writable: make([]bool, len(keys)),
	}
	for i := range keys {
		if i < numSigned {
			lm.signer[i] = true
			lm.writable[i] = i < numSigned-roSigned
		} else {
			lm.writable[i] = i < len(keys)-roUnsigned
		}
		// invoked programs are demoted to read-only
		if _, ok := invoked[uint16(i)]; ok {
			lm.writable[i] = false
		}
	}
	return lm, nil
}

func (lm *loadedMessage) partition() (writable, readonly []solana.PublicKey) {
	for i, k := range lm.keys {
		if lm.writable[i] {
			writable = append(writable, k)
		} else {
			readonly = append(readonly, k)
		}
	}
	return writable, readonly
}
