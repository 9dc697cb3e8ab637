// internal/utils/binary/binary.go
package binary

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// COptionSize is the packed size of a COption<Pubkey>: u32 tag + 32 bytes.
const COptionSize = 36

// CheckLength returns an error unless data holds exactly size bytes.
func CheckLength(data []byte, size int) error {
	if len(data) != size {
		return fmt.Errorf("invalid data length: got %d, want %d", len(data), size)
	}
	return nil
}

// ReadUint64LittleEndian reads a uint64 from a byte slice in little-endian format
func ReadUint64LittleEndian(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset : offset+8])
}

// ReadUint32LittleEndian reads a uint32 from a byte slice in little-endian format
func ReadUint32LittleEndian(data []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(data[offset : offset+4])
}

// ReadUint8 reads a single byte
func ReadUint8(data []byte, offset int) uint8 {
	return data[offset]
}

// ReadPubKey reads a public key
func ReadPubKey(data []byte, offset int) solana.PublicKey {
	return solana.PublicKeyFromBytes(data[offset : offset+32])
}

// ReadCOptionPubKey reads a COption<Pubkey>; nil means None.
func ReadCOptionPubKey(data []byte, offset int) *solana.PublicKey {
	if ReadUint32LittleEndian(data, offset) == 0 {
		return nil
	}
	key := ReadPubKey(data, offset+4)
	return &key
}

// ReadCOptionUint64 reads a COption<u64> (u32 tag + 8 bytes).
func ReadCOptionUint64(data []byte, offset int) *uint64 {
	if ReadUint32LittleEndian(data, offset) == 0 {
		return nil
	}
	v := ReadUint64LittleEndian(data, offset+4)
	return &v
}

// WriteUint64LittleEndian writes a uint64 to a byte slice in little-endian format
func WriteUint64LittleEndian(val uint64, data []byte, offset int) {
	binary.LittleEndian.PutUint64(data[offset:offset+8], val)
}

// WriteUint32LittleEndian writes a uint32 to a byte slice in little-endian format
func WriteUint32LittleEndian(val uint32, data []byte, offset int) {
	binary.LittleEndian.PutUint32(data[offset:offset+4], val)
}

// WriteUint8 writes a single byte
func WriteUint8(val uint8, data []byte, offset int) {
	data[offset] = val
}

// WritePubKey writes a public key
func WritePubKey(key solana.PublicKey, data []byte, offset int) {
	copy(data[offset:offset+32], key[:])
}

// WriteCOptionPubKey writes a COption<Pubkey>, zeroing the slot for None.
func WriteCOptionPubKey(key *solana.PublicKey, data []byte, offset int) {
	if key == nil {
		clear(data[offset : offset+COptionSize])
		return
	}
	WriteUint32LittleEndian(1, data, offset)
	WritePubKey(*key, data, offset+4)
}

// WriteCOptionUint64 writes a COption<u64>.
func WriteCOptionUint64(val *uint64, data []byte, offset int) {
	if val == nil {
		clear(data[offset : offset+12])
		return
	}
	WriteUint32LittleEndian(1, data, offset)
	WriteUint64LittleEndian(*val, data, offset+4)
}
