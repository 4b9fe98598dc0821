package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ruteri/subaccount-factory/interfaces"
)

// Invocation is a call into deployed (non-native) program code.
type Invocation struct {
	Account     interfaces.AccountID
	Predecessor interfaces.AccountID
	Code        []byte
	Method      string
	Args        []byte
	Gas         interfaces.Gas
}

// Executor runs deployed program images. It returns the gas burnt and the call result.
type Executor interface {
	Execute(ctx context.Context, inv Invocation) (interfaces.Gas, []byte, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, inv Invocation) (interfaces.Gas, []byte, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, inv Invocation) (interfaces.Gas, []byte, error) {
	return f(ctx, inv)
}

// DefaultInitializerCost is the gas ImageExecutor charges for an initializer call.
const DefaultInitializerCost = 5 * interfaces.TGas

// ImageExecutor is the stand-in for a program VM. Every image exports only
// an initializer that accepts a JSON object.
type ImageExecutor struct {
	Initializer string
	Cost        interfaces.Gas
}

// NewImageExecutor returns an executor that accepts calls to initializer.
func NewImageExecutor(initializer string) *ImageExecutor {
	return &ImageExecutor{Initializer: initializer, Cost: DefaultInitializerCost}
}

// Execute validates the call and charges the fixed cost.
func (e *ImageExecutor) Execute(_ context.Context, inv Invocation) (interfaces.Gas, []byte, error) {
	if len(inv.Code) == 0 {
		return 0, nil, ErrNoContract
	}
	if inv.Method != e.Initializer {
		return 0, nil, fmt.Errorf("%w: %s", ErrMethodNotFound, inv.Method)
	}
	if e.Cost > inv.Gas {
		return inv.Gas, nil, fmt.Errorf("%w: %s needs %s, has %s", interfaces.ErrGasExceeded, inv.Method, e.Cost, inv.Gas)
	}

	var args map[string]json.RawMessage
	if err := json.Unmarshal(inv.Args, &args); err != nil {
		return e.Cost, nil, fmt.Errorf("initializer arguments: %w", err)
	}
	return e.Cost, nil, nil
}
