// internal/aggregator/events.go
package aggregator

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// routeExecutedDiscriminator is sha256("event:RouteExecuted")[:8].
var routeExecutedDiscriminator = [8]byte{223, 139, 136, 123, 11, 101, 183, 17}

const programDataPrefix = "Program data: "

// RouteExecuted is emitted after a route settles.
type RouteExecuted struct {
	User       solana.PublicKey
	InMint     solana.PublicKey
	OutMint    solana.PublicKey
	TotalSpent uint64
	TotalOut   uint64
	FeeCharged uint64
	Legs       uint8
	FeeBps     uint16
}

// Marshal encodes the event with its discriminator.
func (e *RouteExecuted) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(routeExecutedDiscriminator[:])
	enc := bin.NewBorshEncoder(buf)
	for _, key := range []solana.PublicKey{e.User, e.InMint, e.OutMint} {
		if err := enc.WriteBytes(key[:], false); err != nil {
			return nil, err
		}
	}
	for _, v := range []uint64{e.TotalSpent, e.TotalOut, e.FeeCharged} {
		if err := enc.WriteUint64(v, bin.LE); err != nil {
			return nil, err
		}
	}
	if err := enc.WriteUint8(e.Legs); err != nil {
		return nil, err
	}
	if err := enc.WriteUint16(e.FeeBps, bin.LE); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var errNotRouteExecuted = errors.New("not a RouteExecuted event")

// UnmarshalRouteExecuted decodes an event payload.
func UnmarshalRouteExecuted(data []byte) (*RouteExecuted, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], routeExecutedDiscriminator[:]) {
		return nil, errNotRouteExecuted
	}
	dec := bin.NewBorshDecoder(data[8:])
	var (
		e   RouteExecuted
		err error
	)
	for _, key := range []*solana.PublicKey{&e.User, &e.InMint, &e.OutMint} {
		if *key, err = readPublicKey(dec); err != nil {
			return nil, err
		}
	}
	for _, v := range []*uint64{&e.TotalSpent, &e.TotalOut, &e.FeeCharged} {
		if *v, err = dec.ReadUint64(bin.LE); err != nil {
			return nil, err
		}
	}
	if e.Legs, err = dec.ReadUint8(); err != nil {
		return nil, err
	}
	if e.FeeBps, err = dec.ReadUint16(bin.LE); err != nil {
		return nil, err
	}
	return &e, nil
}

// ParseRouteExecuted extracts every RouteExecuted event from transaction logs.
func ParseRouteExecuted(logs []string) ([]*RouteExecuted, error) {
	var events []*RouteExecuted
	for _, line := range logs {
		payload, ok := strings.CutPrefix(line, programDataPrefix)
		if !ok {
			continue
		}
		for _, chunk := range strings.Fields(payload) {
			data, err := base64.StdEncoding.DecodeString(chunk)
			if err != nil {
				return nil, fmt.Errorf("failed to decode program data: %w", err)
			}
			ev, err := UnmarshalRouteExecuted(data)
			if errors.Is(err, errNotRouteExecuted) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to decode RouteExecuted: %w", err)
			}
			events = append(events, ev)
		}
	}
	return events, nil
}
