package ledger

import (
	"errors"

	"github.com/ruteri/subaccount-factory/interfaces"
)

var (
	// ErrAccountExists is returned when creating an account that already exists.
	ErrAccountExists = errors.New("account already exists")

	// ErrNotSubAccount is returned when an account tries to create an account outside its namespace.
	ErrNotSubAccount = errors.New("can only create direct sub-accounts of the predecessor")

	// ErrNoContract is returned when calling an account without code.
	ErrNoContract = errors.New("account has no contract code")

	// ErrMethodNotFound is returned when the code does not export the called method.
	ErrMethodNotFound = errors.New("method not found")

	// ErrInsufficientStake is returned when an account cannot cover the storage of its code.
	ErrInsufficientStake = errors.New("balance does not cover storage staking")

	// ErrAccessKeyNotFound is returned when a transaction key is not registered for the signer.
	ErrAccessKeyNotFound = errors.New("access key not found")

	// ErrInvalidNonce is returned when a transaction nonce is not greater than the last used one.
	ErrInvalidNonce = errors.New("invalid nonce")

	// ErrGasLimit is returned when a transaction asks for more gas than the ledger allows.
	ErrGasLimit = errors.New("gas above the per-transaction limit")

	// ErrReadOnly is returned when a view call tries to change state.
	ErrReadOnly = interfaces.ErrReadOnly

	// ErrInvalidAction is returned for malformed composed actions.
	ErrInvalidAction = errors.New("invalid action")
)
