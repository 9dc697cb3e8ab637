// internal/blockchain/ledger/invoke.go
package ledger

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

const (
	// MaxInvokeDepth bounds the instruction stack, top level included.
	MaxInvokeDepth = 4
	// InvokeUnits is charged for every cross-program invocation.
	InvokeUnits uint64 = 1_000
	// MaxReturnDataSize bounds SetReturnData payloads.
	MaxReturnDataSize = 1024
)

// Program is native code registered at a program address.
type Program interface {
	Execute(ic *InvokeContext) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ic *InvokeContext) error

// Execute calls f(ic).
func (f ProgramFunc) Execute(ic *InvokeContext) error {
	return f(ic)
}

// execState is shared by every frame of one transaction.
type execState struct {
	accounts map[solana.PublicKey]*Account
	lookup   func(solana.PublicKey) (Program, bool)

	limit uint64
	used  uint64
	logs  []string

	returnProgram solana.PublicKey
	returnData    []byte
}

func (s *execState) log(line string) {
	s.logs = append(s.logs, line)
}

func (s *execState) consume(units uint64) error {
	if s.used+units > s.limit || s.used+units < s.used {
		s.used = s.limit
		return ErrComputeBudgetExceeded
	}
	s.used += units
	return nil
}

func (s *execState) execute(programID solana.PublicKey, accounts []*AccountInfo, data []byte, depth int) error {
	s.log(fmt.Sprintf("Program %s invoke [%d]", programID, depth))

	acct, ok := s.accounts[programID]
	if !ok || !acct.Executable {
		s.log(fmt.Sprintf("Program %s failed: %v", programID, ErrProgramNotExecutable))
		return fmt.Errorf("%w: %s", ErrProgramNotExecutable, programID)
	}
	program, ok := s.lookup(programID)
	if !ok {
		s.log(fmt.Sprintf("Program %s failed: %v", programID, ErrProgramNotFound))
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}

	s.returnProgram = solana.PublicKey{}
	s.returnData = nil

	ic := &InvokeContext{
		state:     s,
		programID: programID,
		accounts:  accounts,
		data:      data,
		depth:     depth,
	}

	before := s.used
	err := program.Execute(ic)
	s.log(fmt.Sprintf("Program %s consumed %d of %d compute units", programID, s.used-before, s.limit))
	if len(s.returnData) > 0 && s.returnProgram.Equals(programID) {
		s.log(fmt.Sprintf("Program return: %s %s", programID, base64.StdEncoding.EncodeToString(s.returnData)))
	}
	if err != nil {
		s.log(fmt.Sprintf("Program %s failed: %v", programID, err))
		return err
	}
	s.log(fmt.Sprintf("Program %s success", programID))
	return nil
}

// InvokeContext is the view a program gets of the instruction it executes.
type InvokeContext struct {
	state     *execState
	programID solana.PublicKey
	accounts  []*AccountInfo
	data      []byte
	depth     int
}

// ProgramID returns the address of the executing program.
func (ic *InvokeContext) ProgramID() solana.PublicKey {
	return ic.programID
}

// Accounts returns the instruction accounts in order.
func (ic *InvokeContext) Accounts() []*AccountInfo {
	return ic.accounts
}

// Data returns the instruction data.
func (ic *InvokeContext) Data() []byte {
	return ic.data
}

// Depth returns the invocation depth, 1 for a top-level instruction.
func (ic *InvokeContext) Depth() int {
	return ic.depth
}

// Log appends a "Program log:" line.
func (ic *InvokeContext) Log(format string, args ...interface{}) {
	ic.state.log("Program log: " + fmt.Sprintf(format, args...))
}

// EmitData appends a "Program data:" line with each chunk base64 encoded.
func (ic *InvokeContext) EmitData(chunks ...[]byte) {
	encoded := make([]string, 0, len(chunks))
	for _, c := range chunks {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(c))
	}
	ic.state.log("Program data: " + strings.Join(encoded, " "))
}

// ConsumeUnits charges the transaction compute meter.
func (ic *InvokeContext) ConsumeUnits(units uint64) error {
	return ic.state.consume(units)
}

// RemainingUnits returns what is left of the compute budget.
func (ic *InvokeContext) RemainingUnits() uint64 {
	return ic.state.limit - ic.state.used
}

// SetAccountData replaces the data of an account owned by the executing program.
func (ic *InvokeContext) SetAccountData(ai *AccountInfo, data []byte) error {
	if !ai.IsWritable {
		return fmt.Errorf("%w: %s", ErrReadonlyDataModified, ai.Key)
	}
	if !ai.acct.Owner.Equals(ic.programID) {
		return fmt.Errorf("%w: %s", ErrExternalAccountDataModified, ai.Key)
	}
	ai.acct.Data = append(ai.acct.Data[:0:0], data...)
	return nil
}

// CreateAccount assigns an uninitialized program-derived address to the
// executing program and stores data in it.
func (ic *InvokeContext) CreateAccount(ai *AccountInfo, seeds [][]byte, data []byte) error {
	if !ai.IsWritable {
		return fmt.Errorf("%w: %s", ErrReadonlyDataModified, ai.Key)
	}
	if ai.IsInitialized() {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInitialized, ai.Key)
	}
	addr, err := solana.CreateProgramAddress(seeds, ic.programID)
	if err != nil || !addr.Equals(ai.Key) {
		return fmt.Errorf("%w: %s", ErrInvalidSeeds, ai.Key)
	}
	ai.acct.Owner = ic.programID
	ai.acct.Data = append([]byte(nil), data...)
	return nil
}

// SetReturnData publishes data for the caller of the executing program.
func (ic *InvokeContext) SetReturnData(data []byte) error {
	if len(data) > MaxReturnDataSize {
		return ErrReturnDataTooLarge
	}
	ic.state.returnProgram = ic.programID
	ic.state.returnData = append([]byte(nil), data...)
	return nil
}

// ReturnData returns the last return data and the program that set it.
func (ic *InvokeContext) ReturnData() (solana.PublicKey, []byte) {
	return ic.state.returnProgram, ic.state.returnData
}

// Invoke calls another program with the privileges of the current frame.
func (ic *InvokeContext) Invoke(ix solana.Instruction) error {
	return ic.InvokeSigned(ix, nil)
}

// InvokeSigned calls another program; every seed set is turned into a
// program-derived address of the executing program that counts as a signer.
func (ic *InvokeContext) InvokeSigned(ix solana.Instruction, signerSeeds [][][]byte) error {
	if ic.depth+1 > MaxInvokeDepth {
		return ErrCallDepth
	}
	if err := ic.ConsumeUnits(InvokeUnits); err != nil {
		return err
	}

	pdaSigners := make(map[solana.PublicKey]struct{}, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := solana.CreateProgramAddress(seeds, ic.programID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSeeds, err)
		}
		pdaSigners[addr] = struct{}{}
	}

	programID := ix.ProgramID()
	if ic.find(programID) == nil {
		return fmt.Errorf("%w: program %s", ErrMissingAccount, programID)
	}

	data, err := ix.Data()
	if err != nil {
		return fmt.Errorf("failed to read instruction data: %w", err)
	}

	metas := ix.Accounts()
	callee := make([]*AccountInfo, 0, len(metas))
	for _, meta := range metas {
		caller := ic.find(meta.PublicKey)
		if caller == nil {
			return fmt.Errorf("%w: %s", ErrMissingAccount, meta.PublicKey)
		}
		if meta.IsSigner && !caller.IsSigner {
			if _, ok := pdaSigners[meta.PublicKey]; !ok {
				return fmt.Errorf("%w: signer %s", ErrPrivilegeEscalation, meta.PublicKey)
			}
		}
		if meta.IsWritable && !caller.IsWritable {
			return fmt.Errorf("%w: writable %s", ErrPrivilegeEscalation, meta.PublicKey)
		}
		callee = append(callee, &AccountInfo{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
			acct:       caller.acct,
		})
	}

	return ic.state.execute(programID, callee, append([]byte(nil), data...), ic.depth+1)
}

// find returns the frame account with the given key, merging privileges of
// duplicates.
func (ic *InvokeContext) find(key solana.PublicKey) *AccountInfo {
	var found *AccountInfo
	for _, ai := range ic.accounts {
		if !ai.Key.Equals(key) {
			continue
		}
		if found == nil {
			found = &AccountInfo{Key: ai.Key, acct: ai.acct}
		}
		found.IsSigner = found.IsSigner || ai.IsSigner
		found.IsWritable = found.IsWritable || ai.IsWritable
	}
	return found
}
