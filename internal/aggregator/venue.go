// internal/aggregator/venue.go
package aggregator

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// VenueID selects the external program a leg is delegated to.
type VenueID uint8

const (
	VenueLifinityV2 VenueID = iota
	VenueOrcaWhirlpool
	VenueSolarCp
	VenueSolarClmm
	VenueInvariant

	venueCount
)

type venueInfo struct {
	name      string
	programID solana.PublicKey
}

// venues is the whitelist: each id is bound to exactly one program.
var venues = [venueCount]venueInfo{
	VenueLifinityV2:    {"lifinity_v2", solana.MustPublicKeyFromBase58("2wT8Yq49kHgDzXuPxZSaeLaH1qbmGXtEyPy64bL7aD3c")},
	VenueOrcaWhirlpool: {"orca_whirlpool", solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")},
	VenueSolarCp:       {"solar_cp", solana.MustPublicKeyFromBase58("sooGfSeXGtkLCPAMMpqkViwXxPxq8np5xpoEGoEsXXL")},
	VenueSolarClmm:     {"solar_clmm", solana.MustPublicKeyFromBase58("GFrrqgWtvbqTyweJfzCdLo8GnLkRtNZv1BanG6UiVUk2")},
	VenueInvariant:     {"invariant", solana.MustPublicKeyFromBase58("HyaB3W9q6XdA5xwpU4XnSZV94htfmbmqJXZcEbRaJutt")},
}

// Venues returns every known venue id.
func Venues() []VenueID {
	ids := make([]VenueID, 0, venueCount)
	for id := VenueID(0); id < venueCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Valid reports whether v is a known venue.
func (v VenueID) Valid() bool {
	return v < venueCount
}

// ProgramID returns the whitelisted program of the venue.
func (v VenueID) ProgramID() solana.PublicKey {
	if !v.Valid() {
		return solana.PublicKey{}
	}
	return venues[v].programID
}

func (v VenueID) String() string {
	if !v.Valid() {
		return fmt.Sprintf("venue(%d)", uint8(v))
	}
	return venues[v].name
}

// ParseVenue resolves a venue by its name.
func ParseVenue(name string) (VenueID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id := VenueID(0); id < venueCount; id++ {
		if venues[id].name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown venue %q", name)
}

// VenueByProgram resolves a venue from its program id.
func VenueByProgram(programID solana.PublicKey) (VenueID, bool) {
	for id := VenueID(0); id < venueCount; id++ {
		if venues[id].programID.Equals(programID) {
			return id, true
		}
	}
	return 0, false
}
