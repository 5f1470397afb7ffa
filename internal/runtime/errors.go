package runtime

import (
	"errors"
	"fmt"
)

// Transaction-level errors. These reject a transaction before any
// instruction runs and are not recorded in the transaction log.
var (
	ErrNoSigners            = errors.New("transaction has no signers")
	ErrSignatureCount       = errors.New("signature count does not match signers")
	ErrSignatureFailure     = errors.New("transaction signature verification failure")
	ErrDuplicateSigner      = errors.New("duplicate signer")
	ErrNoInstructions       = errors.New("transaction has no instructions")
	ErrAlreadyProcessed     = errors.New("transaction already processed")
	ErrTooManyAccountLocks  = errors.New("too many account locks")
	ErrMalformedTransaction = errors.New("malformed transaction")
)

// Instruction errors. Returned by programs or by the runtime while an
// instruction runs, always wrapped in an InstructionError.
var (
	ErrProgramNotFound             = errors.New("attempt to load a program that does not exist")
	ErrMissingAccount              = errors.New("an account required by the instruction is missing")
	ErrNotEnoughAccountKeys        = errors.New("insufficient account keys for instruction")
	ErrMissingRequiredSignature    = errors.New("missing required signature for instruction")
	ErrPrivilegeEscalation         = errors.New("cross-program invocation with unauthorized signer or writable account")
	ErrReadonlyDataModified        = errors.New("instruction modified data of a read-only account")
	ErrExternalAccountDataModified = errors.New("instruction modified data of an account it does not own")
	ErrModifiedProgramID           = errors.New("instruction illegally modified the program id of an account")
	ErrCallDepth                   = errors.New("cross-program invocation call depth too deep")
	ErrReentrancyNotAllowed        = errors.New("cross-program invocation reentrancy not allowed for this instruction")
	ErrInvalidInstructionData      = errors.New("invalid instruction data")
	ErrInvalidAccountData          = errors.New("invalid account data for instruction")
	ErrAccountAlreadyInUse         = errors.New("account already in use")
	ErrAccountDataTooSmall         = errors.New("account data too small for instruction")
	ErrInvalidArgument             = errors.New("invalid program argument")
	ErrInvalidSeeds                = errors.New("provided seeds do not result in a valid address")
	ErrIncorrectProgramID          = errors.New("incorrect program id for instruction")
	ErrAccountNotFound             = errors.New("attempt to debit an account but found no record of a prior credit")
	ErrVersionConflict             = errors.New("account changed by another writer, retry")
)

// CustomError is a program-defined error carrying a numeric code.
// Two CustomErrors match under errors.Is when their codes are equal.
type CustomError struct {
	Code uint32
	Name string
	Msg  string
}

// NewCustomError creates a program error.
func NewCustomError(code uint32, name, msg string) *CustomError {
	return &CustomError{Code: code, Name: name, Msg: msg}
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("custom program error: %#x (%s: %s)", e.Code, e.Name, e.Msg)
}

// Is reports whether target is a CustomError with the same code.
func (e *CustomError) Is(target error) bool {
	t, ok := target.(*CustomError)
	return ok && t.Code == e.Code
}

// InstructionError ties an error to the top-level instruction that raised it.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// ErrorName returns a short stable name for err, used in logs and metrics.
func ErrorName(err error) string {
	var custom *CustomError
	if errors.As(err, &custom) {
		return custom.Name
	}
	for name, sentinel := range sentinelNames {
		if errors.Is(err, sentinel) {
			return name
		}
	}
	return "Unknown"
}

// ErrorCode returns the custom code carried by err, if any.
func ErrorCode(err error) (uint32, bool) {
	var custom *CustomError
	if errors.As(err, &custom) {
		return custom.Code, true
	}
	return 0, false
}

// ErrorIndex returns the index of the failing top-level instruction, if err
// came from one.
func ErrorIndex(err error) (int, bool) {
	var ie *InstructionError
	if errors.As(err, &ie) {
		return ie.Index, true
	}
	return 0, false
}

var sentinelNames = map[string]error{
	"ProgramNotFound":             ErrProgramNotFound,
	"MissingAccount":              ErrMissingAccount,
	"NotEnoughAccountKeys":        ErrNotEnoughAccountKeys,
	"MissingRequiredSignature":    ErrMissingRequiredSignature,
	"PrivilegeEscalation":         ErrPrivilegeEscalation,
	"ReadonlyDataModified":        ErrReadonlyDataModified,
	"ExternalAccountDataModified": ErrExternalAccountDataModified,
	"ModifiedProgramId":           ErrModifiedProgramID,
	"IncorrectProgramId":          ErrIncorrectProgramID,
	"CallDepth":                   ErrCallDepth,
	"ReentrancyNotAllowed":        ErrReentrancyNotAllowed,
	"InvalidInstructionData":      ErrInvalidInstructionData,
	"InvalidAccountData":          ErrInvalidAccountData,
	"AccountAlreadyInUse":         ErrAccountAlreadyInUse,
	"AccountDataTooSmall":         ErrAccountDataTooSmall,
	"InvalidArgument":             ErrInvalidArgument,
	"InvalidSeeds":                ErrInvalidSeeds,
	"AccountNotFound":             ErrAccountNotFound,
	"VersionConflict":             ErrVersionConflict,
}
