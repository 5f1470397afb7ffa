package token

import "fit-token/internal/runtime"

// Token program errors, numbered as in the SPL token program.
var (
	ErrInsufficientFunds  = runtime.NewCustomError(1, "InsufficientFunds", "Insufficient funds")
	ErrInvalidMint        = runtime.NewCustomError(2, "InvalidMint", "Invalid Mint")
	ErrMintMismatch       = runtime.NewCustomError(3, "MintMismatch", "Account not associated with this Mint")
	ErrOwnerMismatch      = runtime.NewCustomError(4, "OwnerMismatch", "Owner does not match")
	ErrFixedSupply        = runtime.NewCustomError(5, "FixedSupply", "Fixed supply")
	ErrAlreadyInUse       = runtime.NewCustomError(6, "AlreadyInUse", "Already in use")
	ErrUninitializedState = runtime.NewCustomError(9, "UninitializedState", "State is uninitialized")
	ErrInvalidInstruction = runtime.NewCustomError(12, "InvalidInstruction", "Invalid instruction")
	ErrOverflow           = runtime.NewCustomError(14, "Overflow", "Operation overflowed")
	ErrAccountFrozen      = runtime.NewCustomError(17, "AccountFrozen", "Account is frozen")
)
