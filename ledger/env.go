package ledger

import (
	"fmt"

	"github.com/ruteri/subaccount-factory/interfaces"
)

// env implements interfaces.Env for a single execution. It is only used
// while the runtime lock is held.
type env struct {
	rt *Runtime

	current     interfaces.AccountID
	predecessor interfaces.AccountID
	signer      interfaces.AccountID
	attached    interfaces.Amount
	prepaid     interfaces.Gas
	outcome     *interfaces.Outcome
	readOnly    bool

	used     interfaces.Gas
	reserved interfaces.Gas
	logs     []string
	emitted  []*interfaces.ComposedAction
}

func (e *env) CurrentAccountID() interfaces.AccountID     { return e.current }
func (e *env) PredecessorAccountID() interfaces.AccountID { return e.predecessor }
func (e *env) SignerAccountID() interfaces.AccountID      { return e.signer }
func (e *env) AttachedDeposit() interfaces.Amount         { return e.attached }
func (e *env) PrepaidGas() interfaces.Gas                 { return e.prepaid }

func (e *env) StoragePricePerByte() interfaces.Amount {
	return e.rt.storagePrice
}

func (e *env) IsValidAccountID(id string) bool {
	return interfaces.AccountID(id).IsValid()
}

func (e *env) PromiseResult() (interfaces.Outcome, bool) {
	if e.outcome == nil {
		return interfaces.Outcome{}, false
	}
	return *e.outcome, true
}

func (e *env) IsView() bool { return e.readOnly }

func (e *env) Log(msg string) {
	e.logs = append(e.logs, msg)
	e.rt.log.Info("Contract log", "account", e.current, "msg", msg)
}

// Emit reserves gas and debits the deposits of action from the current account.
func (e *env) Emit(action *interfaces.ComposedAction) error {
	if e.readOnly {
		return ErrReadOnly
	}
	if err := action.Receiver.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}
	if len(action.Actions) == 0 {
		return fmt.Errorf("%w: no actions", ErrInvalidAction)
	}

	need := e.used + e.reserved + action.ReservedGas()
	if need > e.prepaid {
		return fmt.Errorf("%w: need %s, prepaid %s", interfaces.ErrGasExceeded, need, e.prepaid)
	}

	deposit, err := action.TotalDeposit()
	if err != nil {
		return err
	}
	acc, ok := e.rt.accounts[e.current]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, e.current)
	}
	balance, err := acc.balance.Sub(deposit)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, needs %s", interfaces.ErrInsufficientBalance, e.current, acc.balance, deposit)
	}

	acc.balance = balance
	e.reserved += action.ReservedGas()
	e.emitted = append(e.emitted, action)
	return nil
}
