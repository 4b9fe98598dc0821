package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/ruteri/subaccount-factory/interfaces"
)

// MemoryReceiptStore keeps receipts in memory. It is the default store of a Runtime.
type MemoryReceiptStore struct {
	mu       sync.RWMutex
	receipts map[string]*interfaces.Receipt
}

// NewMemoryReceiptStore creates an empty store.
func NewMemoryReceiptStore() *MemoryReceiptStore {
	return &MemoryReceiptStore{receipts: make(map[string]*interfaces.Receipt)}
}

// SaveReceipt inserts or replaces a receipt.
func (s *MemoryReceiptStore) SaveReceipt(_ context.Context, receipt *interfaces.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[receipt.ID] = copyReceipt(receipt)
	return nil
}

// Receipt returns a receipt by id.
func (s *MemoryReceiptStore) Receipt(_ context.Context, id string) (*interfaces.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[id]
	if !ok {
		return nil, interfaces.ErrReceiptNotFound
	}
	return copyReceipt(receipt), nil
}

// ChildReceipts returns the receipts spawned by parentID in creation order.
func (s *MemoryReceiptStore) ChildReceipts(_ context.Context, parentID string) ([]*interfaces.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var children []*interfaces.Receipt
	for _, receipt := range s.receipts {
		if receipt.ParentID == parentID {
			children = append(children, copyReceipt(receipt))
		}
	}
	sort.SliceStable(children, func(i, j int) bool {
		return children[i].CreatedAt.Before(children[j].CreatedAt)
	})
	return children, nil
}

func copyReceipt(r *interfaces.Receipt) *interfaces.Receipt {
	c := *r
	c.Logs = append([]string{}, r.Logs...)
	c.Result = append([]byte(nil), r.Result...)
	return &c
}
