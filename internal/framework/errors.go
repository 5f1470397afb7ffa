package framework

import "fit-token/internal/runtime"

// Framework error codes. Program-defined codes start at ErrorCodeOffset.
const ErrorCodeOffset = 6000

var (
	ErrInstructionMissing           = runtime.NewCustomError(100, "InstructionMissing", "8 byte instruction identifier not provided")
	ErrInstructionFallbackNotFound  = runtime.NewCustomError(101, "InstructionFallbackNotFound", "Fallback functions are not supported")
	ErrInstructionDidNotDeserialize = runtime.NewCustomError(102, "InstructionDidNotDeserialize", "The program could not deserialize the given instruction")

	ErrAccountDiscriminatorMismatch = runtime.NewCustomError(3002, "AccountDiscriminatorMismatch", "8 byte discriminator did not match what was expected")
	ErrAccountDidNotDeserialize     = runtime.NewCustomError(3003, "AccountDidNotDeserialize", "Failed to deserialize the account")
	ErrAccountDidNotSerialize       = runtime.NewCustomError(3004, "AccountDidNotSerialize", "Failed to serialize the account")
	ErrAccountNotEnoughKeys         = runtime.NewCustomError(3005, "AccountNotEnoughKeys", "Not enough account keys given to the instruction")
	ErrAccountNotMutable            = runtime.NewCustomError(3006, "AccountNotMutable", "The given account is not mutable")
	ErrAccountOwnedByWrongProgram   = runtime.NewCustomError(3007, "AccountOwnedByWrongProgram", "The given account is owned by a different program than expected")
	ErrInvalidProgramID             = runtime.NewCustomError(3008, "InvalidProgramId", "Program ID was not as expected")
	ErrAccountNotSigner             = runtime.NewCustomError(3010, "AccountNotSigner", "The given account did not sign")
	ErrAccountNotInitialized        = runtime.NewCustomError(3012, "AccountNotInitialized", "The program expected this account to be already initialized")
)
