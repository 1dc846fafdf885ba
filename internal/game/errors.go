package game

import "errors"

// Engine error taxonomy. All payload-derived failures surface as one of
// these; engines never panic on wire input.
var (
	// ErrInvalidPayload means malformed, truncated, out-of-range, or
	// zero-amount wire input. Always a caller error, never fatal.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidMove means a structurally valid but semantically illegal
	// move, such as doubling after hitting.
	ErrInvalidMove = errors.New("invalid move")

	// ErrGameAlreadyComplete means a move arrived for a finished session.
	ErrGameAlreadyComplete = errors.New("game already complete")

	// ErrDeckExhausted means a draw was attempted from an empty deck.
	ErrDeckExhausted = errors.New("deck exhausted")

	// ErrInvalidState means the persisted state blob does not decode under
	// the engine's current format, including version mismatches.
	ErrInvalidState = errors.New("invalid state")
)
