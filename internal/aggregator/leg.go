// internal/aggregator/leg.go
package aggregator

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MaxLegs bounds the number of legs in one route.
const MaxLegs = 10

// SwapLeg is one delegated step of a route.
type SwapLeg struct {
	Venue        VenueID
	InAmount     uint64
	MinOut       uint64
	AccountCount uint8
	Data         []byte
	InMint       solana.PublicKey
	OutMint      solana.PublicKey
}

func (l SwapLeg) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteUint8(uint8(l.Venue)); err != nil {
		return err
	}
	if err := enc.WriteUint64(l.InAmount, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint64(l.MinOut, bin.LE); err != nil {
		return err
	}
	if err := enc.WriteUint8(l.AccountCount); err != nil {
		return err
	}
	if err := writeVec(enc, l.Data); err != nil {
		return err
	}
	if err := enc.WriteBytes(l.InMint[:], false); err != nil {
		return err
	}
	return enc.WriteBytes(l.OutMint[:], false)
}

func (l *SwapLeg) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	venue, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	l.Venue = VenueID(venue)
	if l.InAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if l.MinOut, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	if l.AccountCount, err = dec.ReadUint8(); err != nil {
		return err
	}
	if l.Data, err = readVec(dec); err != nil {
		return err
	}
	if l.InMint, err = readPublicKey(dec); err != nil {
		return err
	}
	l.OutMint, err = readPublicKey(dec)
	return err
}

// maxVecLen caps decoded byte vectors.
const maxVecLen = 1232

func writeVec(enc *bin.Encoder, b []byte) error {
	if err := enc.WriteUint32(uint32(len(b)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes(b, false)
}

func readVec(dec *bin.Decoder) ([]byte, error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}
	if n > maxVecLen {
		return nil, fmt.Errorf("vector length %d exceeds %d", n, maxVecLen)
	}
	return dec.ReadNBytes(int(n))
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func writeOptionalPublicKey(enc *bin.Encoder, key *solana.PublicKey) error {
	if key == nil {
		return enc.WriteUint8(0)
	}
	if err := enc.WriteUint8(1); err != nil {
		return err
	}
	return enc.WriteBytes(key[:], false)
}

func readOptionalPublicKey(dec *bin.Decoder) (*solana.PublicKey, error) {
	tag, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 0:
		return nil, nil
	case 1:
		key, err := readPublicKey(dec)
		if err != nil {
			return nil, err
		}
		return &key, nil
	default:
		return nil, fmt.Errorf("invalid option tag %d", tag)
	}
}
