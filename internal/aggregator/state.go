// internal/aggregator/state.go
package aggregator

import (
	"bytes"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ProgramID is the router program address.
var ProgramID = solana.MustPublicKeyFromBase58("2De6Tg3Snwste9Bv73YJ9xLC12whrPnisdXBmTMqUv4j")

// ConfigSeed derives the config PDA.
var ConfigSeed = []byte("config")

// configDiscriminator is sha256("account:Config")[:8].
var configDiscriminator = [8]byte{155, 12, 170, 224, 30, 250, 204, 130}

// ConfigSize is the account size: discriminator, admin, fee_bps, fee_vault, paused, bump.
const ConfigSize = 8 + 32 + 2 + 32 + 1 + 1

// MaxFeeBps is 100%.
const MaxFeeBps = 10_000

// Config is the singleton administrative record.
type Config struct {
	Admin    solana.PublicKey
	FeeBps   uint16
	FeeVault solana.PublicKey
	Paused   bool
	Bump     uint8
}

var configAddress = sync.OnceValues(func() (solana.PublicKey, uint8) {
	addr, bump, err := solana.FindProgramAddress([][]byte{ConfigSeed}, ProgramID)
	if err != nil {
		panic(fmt.Sprintf("config address: %v", err))
	}
	return addr, bump
})

// ConfigAddress returns the config PDA and its bump.
func ConfigAddress() (solana.PublicKey, uint8) {
	return configAddress()
}

// Marshal encodes the account data.
func (c *Config) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteBytes(configDiscriminator[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(c.Admin[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint16(c.FeeBps, bin.LE); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(c.FeeVault[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBool(c.Paused); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(c.Bump); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalConfig decodes config account data.
func UnmarshalConfig(data []byte) (*Config, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], configDiscriminator[:]) {
		return nil, ErrAccountDiscriminatorMismatch
	}
	dec := bin.NewBorshDecoder(data[8:])
	var (
		c   Config
		err error
	)
	if c.Admin, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}
	if c.FeeBps, err = dec.ReadUint16(bin.LE); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}
	if c.FeeVault, err = readPublicKey(dec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}
	if c.Paused, err = dec.ReadBool(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}
	if c.Bump, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccountDidNotDeserialize, err)
	}
	return &c, nil
}
