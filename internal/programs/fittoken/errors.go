package fittoken

import (
	"fit-token/internal/framework"
	"fit-token/internal/runtime"
)

// Program errors.
var (
	ErrInvalidAmount = runtime.NewCustomError(framework.ErrorCodeOffset, "InvalidAmount", "Invalid amount")
	ErrNameTooLong   = runtime.NewCustomError(framework.ErrorCodeOffset+1, "NameTooLong", "Token name exceeds 32 bytes")
	ErrSymbolTooLong = runtime.NewCustomError(framework.ErrorCodeOffset+2, "SymbolTooLong", "Token symbol exceeds 8 bytes")
	ErrUnauthorized  = runtime.NewCustomError(framework.ErrorCodeOffset+3, "Unauthorized", "Signer is not the registry authority")
	ErrVaultIsSource = runtime.NewCustomError(framework.ErrorCodeOffset+4, "VaultIsSource", "Vault must differ from the depositor token account")
)
