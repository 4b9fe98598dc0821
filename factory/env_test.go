package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/ruteri/subaccount-factory/interfaces"
)

const (
	testFactory interfaces.AccountID = "factory.near"
	testAdmin   interfaces.AccountID = "admin.near"
	testUser    interfaces.AccountID = "alice.near"
)

// fakeEnv records emissions and logs instead of executing them.
type fakeEnv struct {
	current     interfaces.AccountID
	predecessor interfaces.AccountID
	attached    interfaces.Amount
	gas         interfaces.Gas
	price       interfaces.Amount
	outcome     *interfaces.Outcome

	view    bool

	logs    []string
	emitted []*interfaces.ComposedAction
	emitErr error
}

func newFakeEnv(caller interfaces.AccountID, attached uint64) *fakeEnv {
	return &fakeEnv{
		current:     testFactory,
		predecessor: caller,
		attached:    interfaces.NewAmount(attached),
		gas:         100 * interfaces.TGas,
		price:       interfaces.NewAmount(1),
	}
}

func (e *fakeEnv) CurrentAccountID() interfaces.AccountID     { return e.current }
func (e *fakeEnv) PredecessorAccountID() interfaces.AccountID { return e.predecessor }
func (e *fakeEnv) SignerAccountID() interfaces.AccountID      { return e.predecessor }
func (e *fakeEnv) AttachedDeposit() interfaces.Amount         { return e.attached }
func (e *fakeEnv) PrepaidGas() interfaces.Gas                 { return e.gas }
func (e *fakeEnv) StoragePricePerByte() interfaces.Amount     { return e.price }
func (e *fakeEnv) Log(msg string)                             { e.logs = append(e.logs, msg) }
func (e *fakeEnv) IsView() bool                               { return e.view }

func (e *fakeEnv) IsValidAccountID(id string) bool {
	return interfaces.AccountID(id).IsValid()
}

func (e *fakeEnv) PromiseResult() (interfaces.Outcome, bool) {
	if e.outcome == nil {
		return interfaces.Outcome{}, false
	}
	return *e.outcome, true
}

func (e *fakeEnv) Emit(action *interfaces.ComposedAction) error {
	if e.emitErr != nil {
		return e.emitErr
	}
	e.emitted = append(e.emitted, action)
	return nil
}

// memBlobStore is an in-memory interfaces.BlobStore.
type memBlobStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	puts   map[string]int
	putErr error
	// failLabel limits putErr to one label when set.
	failLabel string
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: map[string][]byte{}, puts: map[string]int{}}
}

func (m *memBlobStore) Get(_ context.Context, label string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[label]
	if !ok {
		return nil, interfaces.ErrContentNotFound
	}
	return append([]byte(nil), data...), nil
}

func (m *memBlobStore) Put(_ context.Context, label string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil && (m.failLabel == "" || m.failLabel == label) {
		return m.putErr
	}
	m.blobs[label] = append([]byte(nil), data...)
	m.puts[label]++
	return nil
}

func (m *memBlobStore) Available(context.Context) bool { return true }
func (m *memBlobStore) Name() string                   { return "memory" }
func (m *memBlobStore) LocationURI() string            { return "memory://" }

var errStoreDown = errors.New("store down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
