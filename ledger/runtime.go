package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/ruteri/subaccount-factory/interfaces"
	"go.uber.org/atomic"
)

const (
	// CallBaseGas is charged for every contract entry point invocation.
	CallBaseGas = 5 * interfaces.TGas

	// DefaultTransactionGas is attached to transactions that do not set gas.
	DefaultTransactionGas = 100 * interfaces.TGas

	// MaxTransactionGas is the per-transaction gas limit.
	MaxTransactionGas = 300 * interfaces.TGas
)

// DefaultStoragePricePerByte is 10^19 units per byte.
var DefaultStoragePricePerByte = interfaces.MustParseAmount("10000000000000000000")

type account struct {
	balance  interfaces.Amount
	code     []byte
	codeHash interfaces.ContentID
	contract interfaces.Contract
	keys     map[common.Address]uint64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithStoragePricePerByte overrides the storage staking price.
func WithStoragePricePerByte(price interfaces.Amount) Option {
	return func(r *Runtime) { r.storagePrice = price }
}

// WithReceiptStore sets where receipts are persisted.
func WithReceiptStore(store interfaces.ReceiptStore) Option {
	return func(r *Runtime) { r.receipts = store }
}

// WithExecutor sets the executor of deployed program images.
func WithExecutor(executor Executor) Option {
	return func(r *Runtime) { r.executor = executor }
}

// Runtime is an in-process ledger hosting native contracts.
//
// Every state transition (transaction, composed action, continuation) runs under a
// single lock, so transitions are totally ordered. Composed actions and continuations
// are queued and executed by a background worker after the emitting call returns.
type Runtime struct {
	log          *slog.Logger
	storagePrice interfaces.Amount
	receipts     interfaces.ReceiptStore
	executor     Executor

	mu       sync.Mutex
	accounts map[interfaces.AccountID]*account

	queueMu sync.Mutex
	queue   []*task
	wake    chan struct{}
	pending atomic.Int64
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates an empty ledger.
func New(log *slog.Logger, opts ...Option) *Runtime {
	r := &Runtime{
		log:          log,
		storagePrice: DefaultStoragePricePerByte,
		receipts:     NewMemoryReceiptStore(),
		executor:     NewImageExecutor("new"),
		accounts:     make(map[interfaces.AccountID]*account),
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StoragePricePerByte returns the configured storage price.
func (r *Runtime) StoragePricePerByte() interfaces.Amount {
	return r.storagePrice
}

// CreateAccount adds a genesis account with the given balance and access keys.
func (r *Runtime) CreateAccount(id interfaces.AccountID, balance interfaces.Amount, keys ...common.Address) error {
	if err := id.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[id]; exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	acc := &account{balance: balance, keys: make(map[common.Address]uint64)}
	for _, key := range keys {
		acc.keys[key] = 0
	}
	r.accounts[id] = acc
	r.log.Debug("Created account", "account", id, "balance", balance.String(), "keys", len(keys))
	return nil
}

// AddAccessKey authorizes key to sign transactions for id.
func (r *Runtime) AddAccessKey(id interfaces.AccountID, key common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, id)
	}
	if _, exists := acc.keys[key]; !exists {
		acc.keys[key] = 0
	}
	return nil
}

// DeployNative installs a natively hosted contract on an existing account.
func (r *Runtime) DeployNative(id interfaces.AccountID, contract interfaces.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, id)
	}
	acc.contract = contract
	acc.code = nil
	acc.codeHash = interfaces.ContentID{}
	return nil
}

// Submit authorizes and executes a signed transaction.
// The nonce is consumed even if the call itself fails.
func (r *Runtime) Submit(ctx context.Context, tx interfaces.Transaction, key common.Address) (*interfaces.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[tx.Signer]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, tx.Signer)
	}
	last, ok := acc.keys[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s for %s", ErrAccessKeyNotFound, key.Hex(), tx.Signer)
	}
	if tx.Nonce <= last {
		return nil, fmt.Errorf("%w: %d, last used %d", ErrInvalidNonce, tx.Nonce, last)
	}
	acc.keys[key] = tx.Nonce

	return r.executeLocked(ctx, tx)
}

// Execute runs a transaction without signature checks. It is the trusted path used
// at bootstrap. On a failed call the receipt is returned together with the error.
func (r *Runtime) Execute(ctx context.Context, tx interfaces.Transaction) (*interfaces.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.executeLocked(ctx, tx)
}

func (r *Runtime) executeLocked(ctx context.Context, tx interfaces.Transaction) (*interfaces.Receipt, error) {
	if tx.Gas == 0 {
		tx.Gas = DefaultTransactionGas
	}
	if tx.Gas > MaxTransactionGas {
		return nil, fmt.Errorf("%w: %s > %s", ErrGasLimit, tx.Gas, MaxTransactionGas)
	}
	if tx.Gas < CallBaseGas {
		return nil, fmt.Errorf("%w: %s < %s", interfaces.ErrGasExceeded, tx.Gas, CallBaseGas)
	}
	if _, ok := r.accounts[tx.Signer]; !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, tx.Signer)
	}
	if _, ok := r.accounts[tx.Receiver]; !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, tx.Receiver)
	}

	receipt := r.newReceipt(interfaces.ReceiptCall, "", tx.Signer, tx.Receiver, tx.Method)
	snap := r.snapshotLocked()
	e := &env{
		rt:          r,
		current:     tx.Receiver,
		predecessor: tx.Signer,
		signer:      tx.Signer,
		attached:    tx.Deposit,
		prepaid:     tx.Gas,
		used:        CallBaseGas,
	}

	result, err := r.depositAndCallLocked(ctx, e, tx.Signer, tx.Method, tx.Args)
	if err != nil {
		r.restoreLocked(snap)
		r.finish(ctx, receipt, e.logs, nil, err)
		r.log.Info("Transaction failed",
			"receipt", receipt.ID,
			"signer", tx.Signer,
			"receiver", tx.Receiver,
			"method", tx.Method,
			"err", err)
		return receipt, err
	}

	r.finish(ctx, receipt, e.logs, result, nil)
	r.scheduleLocked(ctx, receipt.ID, tx.Receiver, tx.Signer, e.emitted)
	return receipt, nil
}

// View runs a read-only entry point. It cannot move balance or emit actions.
func (r *Runtime) View(ctx context.Context, receiver interfaces.AccountID, method string, args []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[receiver]; !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, receiver)
	}
	e := &env{
		rt:       r,
		current:  receiver,
		prepaid:  MaxTransactionGas,
		used:     CallBaseGas,
		readOnly: true,
	}
	return r.callLocked(ctx, e, method, args)
}

// Account returns the public state of an account.
func (r *Runtime) Account(_ context.Context, id interfaces.AccountID) (interfaces.AccountView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return interfaces.AccountView{}, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, id)
	}
	view := interfaces.AccountView{ID: id, Balance: acc.balance, CodeSize: len(acc.code)}
	if len(acc.code) > 0 {
		view.CodeHash = acc.codeHash.String()
	}
	return view, nil
}

// Receipt returns a receipt together with the receipts it spawned.
// It holds the runtime lock so a finished receipt is never observed without
// the receipts it scheduled.
func (r *Runtime) Receipt(ctx context.Context, id string) (*interfaces.Receipt, []*interfaces.Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	receipt, err := r.receipts.Receipt(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	children, err := r.receipts.ChildReceipts(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return receipt, children, nil
}

// depositAndCallLocked moves the attached deposit from payer to the current account
// and invokes method.
func (r *Runtime) depositAndCallLocked(ctx context.Context, e *env, payer interfaces.AccountID, method string, args []byte) ([]byte, error) {
	if !e.attached.IsZero() {
		if err := r.debitLocked(payer, e.attached); err != nil {
			return nil, err
		}
		if err := r.creditLocked(e.current, e.attached); err != nil {
			return nil, err
		}
	}
	return r.callLocked(ctx, e, method, args)
}

func (r *Runtime) callLocked(ctx context.Context, e *env, method string, args []byte) ([]byte, error) {
	acc, ok := r.accounts[e.current]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, e.current)
	}

	switch {
	case acc.contract != nil:
		return acc.contract.Call(ctx, e, method, args)
	case len(acc.code) > 0:
		burnt, result, err := r.executor.Execute(ctx, Invocation{
			Account:     e.current,
			Predecessor: e.predecessor,
			Code:        acc.code,
			Method:      method,
			Args:        args,
			Gas:         e.prepaid - e.used,
		})
		e.used += burnt
		return result, err
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoContract, e.current)
	}
}

func (r *Runtime) debitLocked(id interfaces.AccountID, amount interfaces.Amount) error {
	acc, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, id)
	}
	balance, err := acc.balance.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, needs %s", interfaces.ErrInsufficientBalance, id, acc.balance, amount)
	}
	acc.balance = balance
	return nil
}

func (r *Runtime) creditLocked(id interfaces.AccountID, amount interfaces.Amount) error {
	acc, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, id)
	}
	balance, err := acc.balance.Add(amount)
	if err != nil {
		return err
	}
	acc.balance = balance
	return nil
}

func (r *Runtime) snapshotLocked() map[interfaces.AccountID]account {
	snap := make(map[interfaces.AccountID]account, len(r.accounts))
	for id, acc := range r.accounts {
		snap[id] = *acc
	}
	return snap
}

func (r *Runtime) restoreLocked(snap map[interfaces.AccountID]account) {
	r.accounts = make(map[interfaces.AccountID]*account, len(snap))
	for id, acc := range snap {
		r.accounts[id] = &acc
	}
}

func (r *Runtime) newReceipt(kind interfaces.ReceiptKind, parentID string, predecessor, receiver interfaces.AccountID, method string) *interfaces.Receipt {
	now := time.Now().UTC()
	return &interfaces.Receipt{
		ID:          uuid.NewString(),
		ParentID:    parentID,
		Kind:        kind,
		Predecessor: predecessor,
		Receiver:    receiver,
		Method:      method,
		Status:      interfaces.ReceiptPending,
		Logs:        []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *Runtime) finish(ctx context.Context, receipt *interfaces.Receipt, logs []string, result []byte, err error) {
	receipt.Logs = append(receipt.Logs, logs...)
	if len(result) > 0 && json.Valid(result) {
		receipt.Result = result
	}
	if err != nil {
		receipt.Status = interfaces.ReceiptFailed
		receipt.Error = err.Error()
	} else {
		receipt.Status = interfaces.ReceiptSucceeded
	}
	receipt.UpdatedAt = time.Now().UTC()
	r.saveReceipt(ctx, receipt)
}

func (r *Runtime) saveReceipt(ctx context.Context, receipt *interfaces.Receipt) {
	if err := r.receipts.SaveReceipt(ctx, receipt); err != nil {
		r.log.Error("Failed to save receipt", "receipt", receipt.ID, "err", err)
	}
}
