package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ActionKind identifies a single step of a composed action.
type ActionKind int

const (
	// CreateAccountAction creates the receiver account.
	CreateAccountAction ActionKind = iota
	// TransferAction moves balance from the predecessor to the receiver.
	TransferAction
	// DeployCodeAction installs a program image as the receiver's code.
	DeployCodeAction
	// FunctionCallAction invokes an entry point of the receiver's code.
	FunctionCallAction
)

// String returns the action name.
func (k ActionKind) String() string {
	switch k {
	case CreateAccountAction:
		return "create_account"
	case TransferAction:
		return "transfer"
	case DeployCodeAction:
		return "deploy_code"
	case FunctionCallAction:
		return "function_call"
	default:
		return "unknown"
	}
}

// Action is one step of a composed action.
type Action struct {
	Kind ActionKind

	// Deposit is the amount moved by a transfer or attached to a function call.
	Deposit Amount

	// Code is the program image installed by a deploy.
	Code []byte

	// Method, Args and Gas describe a function call.
	Method string
	Args   []byte
	Gas    Gas
}

// Continuation is a completion handler scheduled to run after a composed action resolves.
// Arguments must carry everything the handler needs; it runs in a separate execution unit.
type Continuation struct {
	Receiver AccountID
	Method   string
	Args     []byte
	Gas      Gas
}

// ComposedAction is an ordered list of actions against one receiver,
// executed all-or-nothing by the ledger runtime.
type ComposedAction struct {
	Receiver AccountID
	Actions  []Action
	Then     *Continuation
}

// NewComposedAction starts a composed action targeting receiver.
func NewComposedAction(receiver AccountID) *ComposedAction {
	return &ComposedAction{Receiver: receiver}
}

// CreateAccount appends an account creation step.
func (a *ComposedAction) CreateAccount() *ComposedAction {
	a.Actions = append(a.Actions, Action{Kind: CreateAccountAction})
	return a
}

// Transfer appends a balance transfer step.
func (a *ComposedAction) Transfer(amount Amount) *ComposedAction {
	a.Actions = append(a.Actions, Action{Kind: TransferAction, Deposit: amount})
	return a
}

// DeployCode appends a code installation step.
func (a *ComposedAction) DeployCode(code []byte) *ComposedAction {
	a.Actions = append(a.Actions, Action{Kind: DeployCodeAction, Code: code})
	return a
}

// FunctionCall appends an invocation of method on the receiver's code.
func (a *ComposedAction) FunctionCall(method string, args []byte, deposit Amount, gas Gas) *ComposedAction {
	a.Actions = append(a.Actions, Action{Kind: FunctionCallAction, Method: method, Args: args, Deposit: deposit, Gas: gas})
	return a
}

// ThenCall schedules a continuation to run once the composed action resolves.
func (a *ComposedAction) ThenCall(receiver AccountID, method string, args []byte, gas Gas) *ComposedAction {
	a.Then = &Continuation{Receiver: receiver, Method: method, Args: args, Gas: gas}
	return a
}

// ReservedGas is the gas the emitter must set aside for function calls and the continuation.
func (a *ComposedAction) ReservedGas() Gas {
	var total Gas
	for _, action := range a.Actions {
		if action.Kind == FunctionCallAction {
			total += action.Gas
		}
	}
	if a.Then != nil {
		total += a.Then.Gas
	}
	return total
}

// TotalDeposit sums all amounts leaving the emitter with this action.
func (a *ComposedAction) TotalDeposit() (Amount, error) {
	var total Amount
	for _, action := range a.Actions {
		if action.Kind != TransferAction && action.Kind != FunctionCallAction {
			continue
		}
		var err error
		total, err = total.Add(action.Deposit)
		if err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}

// Outcome is the resolution of a composed action reported to its continuation.
type Outcome struct {
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// Env is the execution context the ledger runtime hands to a contract entry point.
type Env interface {
	// CurrentAccountID is the account whose code is executing.
	CurrentAccountID() AccountID

	// PredecessorAccountID is the immediate caller. For continuations it is the emitting account.
	PredecessorAccountID() AccountID

	// SignerAccountID is the account that signed the originating transaction.
	SignerAccountID() AccountID

	// AttachedDeposit is the amount transferred with the call.
	AttachedDeposit() Amount

	// PrepaidGas is the gas budget of this execution.
	PrepaidGas() Gas

	// StoragePricePerByte is the balance an account must hold per byte of state.
	StoragePricePerByte() Amount

	// IsValidAccountID applies the ledger naming rules.
	IsValidAccountID(id string) bool

	// PromiseResult returns the outcome of the composed action this continuation was scheduled on.
	PromiseResult() (Outcome, bool)

	// Log records a message on the receipt.
	Log(msg string)

	// Emit schedules a composed action. It fails if the current account cannot
	// fund the deposits or the remaining gas cannot cover the reserved gas.
	Emit(action *ComposedAction) error

	// IsView reports whether the call is a read-only view. Contracts must not
	// mutate their own state during a view.
	IsView() bool
}

// Contract is a program hosted natively by the ledger runtime.
type Contract interface {
	// Call executes method with JSON (or raw) args and returns the JSON encoded result.
	Call(ctx context.Context, env Env, method string, args []byte) ([]byte, error)
}

// Transaction is an externally originated call into the ledger.
type Transaction struct {
	Signer   AccountID `json:"signer_id"`
	Receiver AccountID `json:"receiver_id"`
	Method   string    `json:"method_name"`
	Args     []byte    `json:"args,omitempty"`
	Deposit  Amount    `json:"deposit"`
	Gas      Gas       `json:"gas"`
	Nonce    uint64    `json:"nonce"`
}

// ReceiptStatus tracks a receipt through its lifecycle.
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptSucceeded ReceiptStatus = "succeeded"
	ReceiptFailed    ReceiptStatus = "failed"
)

// ReceiptKind distinguishes what produced a receipt.
type ReceiptKind string

const (
	// ReceiptCall is an externally originated transaction.
	ReceiptCall ReceiptKind = "call"
	// ReceiptAction is a composed action emitted by a contract.
	ReceiptAction ReceiptKind = "action"
	// ReceiptContinuation is a completion handler invocation.
	ReceiptContinuation ReceiptKind = "continuation"
)

// Receipt records the execution of one unit of work by the ledger runtime.
type Receipt struct {
	ID          string          `json:"id"`
	ParentID    string          `json:"parent_id,omitempty"`
	Kind        ReceiptKind     `json:"kind"`
	Predecessor AccountID       `json:"predecessor_id"`
	Receiver    AccountID       `json:"receiver_id"`
	Method      string          `json:"method_name,omitempty"`
	Status      ReceiptStatus   `json:"status"`
	Error       string          `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Logs        []string        `json:"logs"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// AccountView is the public state of an account.
type AccountView struct {
	ID       AccountID `json:"account_id"`
	Balance  Amount    `json:"balance"`
	CodeHash string    `json:"code_hash,omitempty"`
	CodeSize int       `json:"code_size"`
}

var (
	// ErrReceiptNotFound is returned when a receipt id is unknown.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrAccountNotFound is returned when an account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrGasExceeded is returned when an execution needs more gas than was prepaid.
	ErrGasExceeded = errors.New("exceeded the prepaid gas")

	// ErrInsufficientBalance is returned when an account cannot fund a transfer or deposit.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrReadOnly is returned when a view call tries to change state.
	ErrReadOnly = errors.New("state changes are not allowed in view calls")
)

// Ledger is the public surface of the ledger runtime used by the API layer.
type Ledger interface {
	// Submit authorizes key as an access key of the signer, checks the nonce
	// and executes the transaction. Actions emitted by a failing call are dropped.
	Submit(ctx context.Context, tx Transaction, key common.Address) (*Receipt, error)

	// View runs a read-only entry point.
	View(ctx context.Context, receiver AccountID, method string, args []byte) ([]byte, error)

	// Account returns the public state of an account.
	Account(ctx context.Context, id AccountID) (AccountView, error)

	// Receipt returns a receipt and the receipts it spawned.
	Receipt(ctx context.Context, id string) (*Receipt, []*Receipt, error)
}

// ReceiptStore persists receipts so callers can re-query asynchronous outcomes.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, receipt *Receipt) error
	Receipt(ctx context.Context, id string) (*Receipt, error)
	ChildReceipts(ctx context.Context, parentID string) ([]*Receipt, error)
}
