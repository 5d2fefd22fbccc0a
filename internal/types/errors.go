package types

import "errors"

// Sentinel errors for protocol engine operations.
var (
	// ErrInvalidExpression indicates a whenJson value is not a valid expression.
	ErrInvalidExpression = errors.New("invalid rule expression")

	// ErrInvalidCondition indicates a condition matches neither condition shape.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrUnknownField indicates a condition names a field outside the context vocabulary.
	ErrUnknownField = errors.New("unknown condition field")

	// ErrUnknownOperator indicates an unknown or incompatible operator.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrMissingValue indicates a condition omits value for an operator that needs one.
	ErrMissingValue = errors.New("condition value required")

	// ErrInvalidValue indicates a condition value is not a scalar or list of scalars.
	ErrInvalidValue = errors.New("condition value must be a scalar or list of scalars")

	// ErrProfileNotFound indicates no health profile exists for a user.
	ErrProfileNotFound = errors.New("health profile not found")

	// ErrProtocolNotFound indicates no protocol matches an id or key.
	ErrProtocolNotFound = errors.New("protocol not found")

	// ErrUnsupportedFixture indicates a fixture file has an unknown extension.
	ErrUnsupportedFixture = errors.New("unsupported fixture format")
)
