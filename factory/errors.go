package factory

import "errors"

var (
	// ErrUnauthorized is returned when the caller may not invoke an administrator-only
	// or self-only entry point.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidPayment is returned when the attached payment differs from the registration fee.
	ErrInvalidPayment = errors.New("the amount sent is not the expected amount")

	// ErrImageNotConfigured is returned when no program image has been stored yet.
	ErrImageNotConfigured = errors.New("program image is not set")

	// ErrInsufficientEscrow is returned when the registration fee does not cover the storage
	// cost of the current image. It indicates an administrator misconfiguration.
	ErrInsufficientEscrow = errors.New("registration fee is lower than storage cost (this should never happen)")

	// ErrInvalidSubaccount is returned when the derived sub-account id breaks the naming rules.
	ErrInvalidSubaccount = errors.New("invalid subaccount id")

	// ErrInsufficientGas is returned when the prepaid gas cannot cover the provisioning
	// action together with the reserved settlement budget.
	ErrInsufficientGas = errors.New("insufficient prepaid gas")

	// ErrAlreadyInitialized is returned by a second initialization.
	ErrAlreadyInitialized = errors.New("factory already initialized")

	// ErrNotInitialized is returned by any entry point called before initialization.
	ErrNotInitialized = errors.New("factory not initialized")

	// ErrEmptyImage is returned when the privileged image update carries no input.
	ErrEmptyImage = errors.New("no input")

	// ErrMissingOutcome is returned when the settlement handler runs without a provisioning outcome.
	ErrMissingOutcome = errors.New("settlement invoked without provisioning outcome")

	// ErrUnknownMethod is returned for an entry point the factory does not expose.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrInvalidArguments is returned when entry point arguments cannot be decoded.
	ErrInvalidArguments = errors.New("invalid arguments")
)
