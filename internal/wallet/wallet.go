// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Wallet представляет подписанта: пользователя маршрута или администратора.
type Wallet struct {
	Name       string
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	mu       sync.Mutex
	ataCache map[solana.PublicKey]solana.PublicKey // mint -> ATA
}

func newWallet(name string, privateKey solana.PrivateKey) *Wallet {
	return &Wallet{
		Name:       name,
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		ataCache:   make(map[solana.PublicKey]solana.PublicKey),
	}
}

// NewWallet создаёт кошелёк из base58-encoded приватного ключа.
func NewWallet(name, privateKeyBase58 string) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}
	return newWallet(name, solana.PrivateKey(privateKeyBytes)), nil
}

// Generate создаёт кошелёк со случайным ключом.
func Generate(name string) (*Wallet, error) {
	privateKey, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key for %s: %w", name, err)
	}
	return newWallet(name, privateKey), nil
}

// PrivateKeyBase58 возвращает ключ в формате, который принимает NewWallet.
func (w *Wallet) PrivateKeyBase58() string {
	return base58.Encode(w.PrivateKey)
}

// SignTransaction подписывает транзакцию ключами переданных кошельков.
// Транзакция должна требовать подписи только от них.
func SignTransaction(tx *solana.Transaction, signers ...*Wallet) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for _, w := range signers {
			if key.Equals(w.PublicKey) {
				return &w.PrivateKey
			}
		}
		return nil
	})
	return err
}

// SignTransaction подписывает транзакцию, где кошелёк единственный подписант.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	return SignTransaction(tx, w)
}

// GetATA возвращает адрес ассоциированного токен-аккаунта (ATA) для mint.
func (w *Wallet) GetATA(mint solana.PublicKey) (solana.PublicKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if ata, ok := w.ataCache[mint]; ok {
		return ata, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	w.ataCache[mint] = ata
	return ata, nil
}

// PrecomputeATAs заранее рассчитывает ATA для списка токенов.
func (w *Wallet) PrecomputeATAs(mints []solana.PublicKey) error {
	for _, mint := range mints {
		if _, err := w.GetATA(mint); err != nil {
			return fmt.Errorf("failed to precompute ATA for mint %s: %w", mint, err)
		}
	}
	return nil
}

// String возвращает строковое представление кошелька (его публичный ключ).
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
