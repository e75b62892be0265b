package dynamo

import "errors"

var (
	// ErrUnknownMethod indicates a method name that maps to no integration family.
	ErrUnknownMethod = errors.New("dynamo: unknown integration method")

	// ErrInvalidState indicates a state vector holding NaN or Inf.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)
