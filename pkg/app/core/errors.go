package core

import "errors"

// Command failures. Each one rejects the whole command; callers match them with errors.Is.
var (
	ErrUnknownAccount        = errors.New("unknown account")
	ErrUnknownSymbol         = errors.New("unknown symbol")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientContracts = errors.New("insufficient contracts")
	ErrInvalidPrice          = errors.New("invalid price")
	ErrInvalidQuantity       = errors.New("invalid quantity")
	ErrInvalidOutcome        = errors.New("invalid outcome")
	ErrInvalidIntent         = errors.New("invalid intent")
	ErrInvalidName           = errors.New("invalid name")

	ErrUserExists   = errors.New("user already exists")
	ErrSymbolExists = errors.New("symbol already exists")
)
