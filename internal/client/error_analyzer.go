package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-router/internal/aggregator"
	"github.com/rovshanmuradov/solana-router/internal/blockchain/ledger"
)

const anchorErrorMarker = "AnchorError occurred"

// AnchorError is the router error reported in transaction logs.
type AnchorError struct {
	Code uint32 `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// Analysis describes why a transaction failed.
type Analysis struct {
	Type             string       `json:"type"`
	Message          string       `json:"message"`
	InstructionIndex int          `json:"instruction_index,omitempty"`
	CustomCode       *uint32      `json:"custom_code,omitempty"`
	AnchorError      *AnchorError `json:"anchor_error,omitempty"`
	Logs             []string     `json:"logs,omitempty"`
}

// ErrorAnalyzer provides methods to analyze transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// Analyze classifies err. Instruction failures carry their logs, which are
// searched for the router's AnchorError line.
func (ea *ErrorAnalyzer) Analyze(err error) *Analysis {
	if err == nil {
		return &Analysis{Type: "none", Message: "no error"}
	}

	var txErr *ledger.TransactionError
	if !errors.As(err, &txErr) {
		return &Analysis{Type: "transaction_rejected", Message: err.Error()}
	}

	a := &Analysis{
		Type:             "instruction_error",
		Message:          txErr.Err.Error(),
		InstructionIndex: txErr.InstructionIndex,
		Logs:             txErr.Logs,
	}

	var custom ledger.CustomError
	if errors.As(txErr.Err, &custom) {
		code := custom.CustomCode()
		a.CustomCode = &code
	}

	for _, line := range txErr.Logs {
		if !strings.Contains(line, anchorErrorMarker) {
			continue
		}
		anchorErr, ok := ParseAnchorErrorLog(line)
		if !ok {
			continue
		}
		a.AnchorError = anchorErr
		ea.logger.Debug("Anchor error detected",
			zap.Uint32("code", anchorErr.Code),
			zap.String("name", anchorErr.Name),
			zap.String("message", anchorErr.Msg))
	}
	return a
}

// RouterError returns the router error behind err, either directly or
// recovered from the transaction logs.
func (ea *ErrorAnalyzer) RouterError(err error) (*aggregator.Error, bool) {
	var routerErr *aggregator.Error
	if errors.As(err, &routerErr) {
		return routerErr, true
	}
	a := ea.Analyze(err)
	if a.AnchorError == nil {
		return nil, false
	}
	return aggregator.ErrorFromCode(a.AnchorError.Code)
}

// ParseAnchorErrorLog parses an Anchor error log line.
// Example: "Program log: AnchorError occurred. Error Code: SlippageExceeded. Error Number: 6001. Error Message: Not enough output (slippage)."
func ParseAnchorErrorLog(line string) (*AnchorError, bool) {
	_, rest, ok := strings.Cut(line, "Error Code:")
	if !ok {
		return nil, false
	}
	name, rest, ok := strings.Cut(rest, ". Error Number:")
	if !ok {
		return nil, false
	}
	number, msg, ok := strings.Cut(rest, ". Error Message:")
	if !ok {
		return nil, false
	}
	code, err := strconv.ParseUint(strings.TrimSpace(number), 10, 32)
	if err != nil {
		return nil, false
	}
	return &AnchorError{
		Code: uint32(code),
		Name: strings.TrimSpace(name),
		Msg:  strings.TrimSuffix(strings.TrimSpace(msg), "."),
	}, true
}

// FormatErrorAnalysis formats the analysis for logging or display
func (ea *ErrorAnalyzer) FormatErrorAnalysis(a *Analysis) string {
	jsonBytes, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error formatting analysis: %v", err)
	}
	return string(jsonBytes)
}
