package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/subaccount-factory/interfaces"
)

// task is a queued unit of asynchronous work: either a composed action
// or the continuation scheduled on one.
type task struct {
	receipt     *interfaces.Receipt
	predecessor interfaces.AccountID
	signer      interfaces.AccountID

	action *interfaces.ComposedAction

	continuation *interfaces.Continuation
	outcome      *interfaces.Outcome
}

// Start launches the background worker. Calling Start on a running runtime is a no-op.
func (r *Runtime) Start(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		for {
			for r.processNext(ctx) {
			}
			select {
			case <-r.wake:
			case <-r.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	r.log.Info("Ledger worker started")
}

// Stop halts the background worker and waits for it to exit.
// Queued work stays queued.
func (r *Runtime) Stop() {
	if !r.running.CompareAndSwap(true, false) {
		return
	}
	close(r.stop)
	<-r.done
	r.log.Info("Ledger worker stopped", "pending", r.pending.Load())
}

// Pending returns the number of queued tasks.
func (r *Runtime) Pending() int64 {
	return r.pending.Load()
}

// WaitIdle blocks until the queue is drained or ctx is done.
func (r *Runtime) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for r.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Flush synchronously processes queued work, including work it schedules,
// and returns the number of tasks executed.
func (r *Runtime) Flush(ctx context.Context) int {
	n := 0
	for r.processNext(ctx) {
		n++
	}
	return n
}

func (r *Runtime) enqueue(t *task) {
	r.queueMu.Lock()
	r.queue = append(r.queue, t)
	r.queueMu.Unlock()

	r.pending.Inc()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runtime) dequeue() *task {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	if len(r.queue) == 0 {
		return nil
	}
	t := r.queue[0]
	r.queue[0] = nil
	r.queue = r.queue[1:]
	return t
}

func (r *Runtime) processNext(ctx context.Context) bool {
	t := r.dequeue()
	if t == nil {
		return false
	}
	defer r.pending.Dec()

	r.mu.Lock()
	defer r.mu.Unlock()

	if t.action != nil {
		r.runActionLocked(ctx, t)
	} else {
		r.runContinuationLocked(ctx, t)
	}
	return true
}

// scheduleLocked queues actions emitted by emitter, each with a pending receipt.
func (r *Runtime) scheduleLocked(ctx context.Context, parentID string, emitter, signer interfaces.AccountID, actions []*interfaces.ComposedAction) {
	for _, action := range actions {
		receipt := r.newReceipt(interfaces.ReceiptAction, parentID, emitter, action.Receiver, actionNames(action))
		r.saveReceipt(ctx, receipt)
		r.enqueue(&task{
			receipt:     receipt,
			predecessor: emitter,
			signer:      signer,
			action:      action,
		})
	}
}

// runActionLocked applies a composed action all-or-nothing. On failure every
// deposit is returned to the emitter. The continuation, if any, is always scheduled.
func (r *Runtime) runActionLocked(ctx context.Context, t *task) {
	snap := r.snapshotLocked()
	logs, emitted, err := r.applyLocked(ctx, t)

	outcome := interfaces.Outcome{Succeeded: err == nil}
	if err != nil {
		r.restoreLocked(snap)
		outcome.Error = err.Error()

		deposit, derr := t.action.TotalDeposit()
		if derr == nil && !deposit.IsZero() {
			derr = r.creditLocked(t.predecessor, deposit)
		}
		if derr != nil {
			r.log.Error("Failed to refund composed action", "receipt", t.receipt.ID, "account", t.predecessor, "err", derr)
		}
		r.log.Info("Composed action failed",
			"receipt", t.receipt.ID,
			"predecessor", t.predecessor,
			"receiver", t.action.Receiver,
			"err", err)
	}
	r.finish(ctx, t.receipt, logs, nil, err)

	if err == nil {
		r.scheduleLocked(ctx, t.receipt.ID, t.action.Receiver, t.signer, emitted)
	}

	if then := t.action.Then; then != nil {
		receipt := r.newReceipt(interfaces.ReceiptContinuation, t.receipt.ID, t.predecessor, then.Receiver, then.Method)
		r.saveReceipt(ctx, receipt)
		r.enqueue(&task{
			receipt:      receipt,
			predecessor:  t.predecessor,
			signer:       t.signer,
			continuation: then,
			outcome:      &outcome,
		})
	}
}

func (r *Runtime) applyLocked(ctx context.Context, t *task) ([]string, []*interfaces.ComposedAction, error) {
	receiver := t.action.Receiver
	var (
		logs    []string
		emitted []*interfaces.ComposedAction
	)

	for i, a := range t.action.Actions {
		var err error
		switch a.Kind {
		case interfaces.CreateAccountAction:
			err = r.createSubAccountLocked(t.predecessor, receiver)

		case interfaces.TransferAction:
			err = r.creditLocked(receiver, a.Deposit)

		case interfaces.DeployCodeAction:
			err = r.deployLocked(receiver, a.Code)

		case interfaces.FunctionCallAction:
			e := &env{
				rt:          r,
				current:     receiver,
				predecessor: t.predecessor,
				signer:      t.signer,
				attached:    a.Deposit,
				prepaid:     a.Gas,
			}
			if err = r.creditLocked(receiver, a.Deposit); err == nil {
				_, err = r.callLocked(ctx, e, a.Method, a.Args)
			}
			logs = append(logs, e.logs...)
			emitted = append(emitted, e.emitted...)

		default:
			err = fmt.Errorf("%w: kind %d", ErrInvalidAction, a.Kind)
		}
		if err != nil {
			return logs, nil, fmt.Errorf("action #%d (%s): %w", i, a.Kind, err)
		}
	}
	return logs, emitted, nil
}

func (r *Runtime) createSubAccountLocked(creator, id interfaces.AccountID) error {
	if _, exists := r.accounts[id]; exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, id)
	}
	if !id.IsDirectSubAccountOf(creator) {
		return fmt.Errorf("%w: %s by %s", ErrNotSubAccount, id, creator)
	}
	r.accounts[id] = &account{keys: make(map[common.Address]uint64)}
	return nil
}

func (r *Runtime) deployLocked(id interfaces.AccountID, code []byte) error {
	acc, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrAccountNotFound, id)
	}
	stake, err := r.storagePrice.Mul(interfaces.NewAmount(uint64(len(code))))
	if err != nil {
		return err
	}
	if acc.balance.Cmp(stake) < 0 {
		return fmt.Errorf("%w: %s holds %s, code needs %s", ErrInsufficientStake, id, acc.balance, stake)
	}
	acc.code = append([]byte(nil), code...)
	acc.codeHash = interfaces.ComputeID(code)
	acc.contract = nil
	return nil
}

func (r *Runtime) runContinuationLocked(ctx context.Context, t *task) {
	then := t.continuation
	e := &env{
		rt:          r,
		current:     then.Receiver,
		predecessor: t.predecessor,
		signer:      t.signer,
		prepaid:     then.Gas,
		used:        CallBaseGas,
		outcome:     t.outcome,
	}

	snap := r.snapshotLocked()
	var (
		result []byte
		err    error
	)
	if then.Gas < CallBaseGas {
		err = fmt.Errorf("%w: continuation has %s", interfaces.ErrGasExceeded, then.Gas)
	} else {
		result, err = r.callLocked(ctx, e, then.Method, then.Args)
	}

	if err != nil {
		r.restoreLocked(snap)
		r.finish(ctx, t.receipt, e.logs, nil, err)
		r.log.Warn("Continuation failed",
			"receipt", t.receipt.ID,
			"receiver", then.Receiver,
			"method", then.Method,
			"err", err)
		return
	}

	r.finish(ctx, t.receipt, e.logs, result, nil)
	r.scheduleLocked(ctx, t.receipt.ID, then.Receiver, t.signer, e.emitted)
}

func actionNames(action *interfaces.ComposedAction) string {
	names := make([]string, 0, len(action.Actions))
	for _, a := range action.Actions {
		names = append(names, a.Kind.String())
	}
	return strings.Join(names, ",")
}
