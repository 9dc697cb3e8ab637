// internal/blockchain/computebudget/computebudget.go
package computebudget

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var ProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	RequestUnitsDeprecated uint8 = 0
	RequestHeapFrame       uint8 = 1
	SetComputeUnitLimit    uint8 = 2
	SetComputeUnitPrice    uint8 = 3
)

// Instruction structures
type SetComputeUnitLimitInstruction struct {
	Units uint32
}

type SetComputeUnitPriceInstruction struct {
	MicroLamports uint64
}

// Predefined profiles
const (
	DefaultUnits  uint32 = 200_000
	StandardUnits uint32 = 400_000
	MaxUnits      uint32 = 1_400_000
)

var ErrInvalidInstruction = errors.New("invalid compute budget instruction")

// ComputeBudgetConfig holds the compute budget requested by a transaction.
type ComputeBudgetConfig struct {
	Units     uint32
	UnitPrice uint64
}

// NewDefaultConfig returns the budget every transaction gets without asking.
func NewDefaultConfig() ComputeBudgetConfig {
	return ComputeBudgetConfig{
		Units:     DefaultUnits,
		UnitPrice: 0,
	}
}

// NewRouteConfig returns the budget for long multi-leg routes.
func NewRouteConfig() ComputeBudgetConfig {
	return ComputeBudgetConfig{
		Units:     MaxUnits,
		UnitPrice: ConvertSolToMicrolamports(0.000001),
	}
}

// ConvertSolToMicrolamports converts SOL to micro-lamports.
func ConvertSolToMicrolamports(sol float64) uint64 {
	return uint64(sol * 1e15)
}

// BuildComputeBudgetInstructions creates the instructions for the requested budget.
func BuildComputeBudgetInstructions(config ComputeBudgetConfig) ([]solana.Instruction, error) {
	if config.Units == 0 {
		config = NewDefaultConfig()
	}

	var instructions []solana.Instruction

	limitInstruction, err := (&SetComputeUnitLimitInstruction{
		Units: config.Units,
	}).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build compute unit limit instruction: %w", err)
	}
	instructions = append(instructions, limitInstruction)

	if config.UnitPrice > 0 {
		priceInstruction, err := (&SetComputeUnitPriceInstruction{
			MicroLamports: config.UnitPrice,
		}).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build compute unit price instruction: %w", err)
		}
		instructions = append(instructions, priceInstruction)
	}

	return instructions, nil
}

// Build creates the instruction that sets the compute unit limit.
func (instr *SetComputeUnitLimitInstruction) Build() (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, SetComputeUnitLimit); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, instr.Units); err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		ProgramID,
		[]*solana.AccountMeta{},
		buf.Bytes(),
	), nil
}

// Build creates the instruction that sets the compute unit price.
func (instr *SetComputeUnitPriceInstruction) Build() (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, SetComputeUnitPrice); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.LittleEndian, instr.MicroLamports); err != nil {
		return nil, err
	}
	return solana.NewInstruction(
		ProgramID,
		[]*solana.AccountMeta{},
		buf.Bytes(),
	), nil
}

// Apply folds one compute budget instruction into cfg. Heap frame and the
// deprecated request are accepted and ignored.
func Apply(cfg *ComputeBudgetConfig, data []byte) error {
	if len(data) == 0 {
		return ErrInvalidInstruction
	}
	switch data[0] {
	case SetComputeUnitLimit:
		if len(data) != 5 {
			return fmt.Errorf("%w: limit payload has %d bytes", ErrInvalidInstruction, len(data))
		}
		cfg.Units = binary.LittleEndian.Uint32(data[1:5])
	case SetComputeUnitPrice:
		if len(data) != 9 {
			return fmt.Errorf("%w: price payload has %d bytes", ErrInvalidInstruction, len(data))
		}
		cfg.UnitPrice = binary.LittleEndian.Uint64(data[1:9])
	case RequestHeapFrame, RequestUnitsDeprecated:
	default:
		return fmt.Errorf("%w: unknown tag %d", ErrInvalidInstruction, data[0])
	}
	return nil
}
