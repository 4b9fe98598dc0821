package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/subaccount-factory/interfaces"
)

// ErrCorruptState is returned when the persisted image does not match the recorded hash.
var ErrCorruptState = errors.New("persisted factory state is corrupt")

// stateRecord is the JSON document stored under interfaces.StateLabel.
// The image itself lives under interfaces.CodeLabelFor(image hash).
type stateRecord struct {
	Administrator   interfaces.AccountID `json:"administrator"`
	RegistrationFee interfaces.Amount    `json:"registration_fee"`
	ImageHash       string               `json:"image_hash,omitempty"`
	ImageSize       int                  `json:"image_size,omitempty"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// StateStore persists factory snapshots to a BlobStore.
type StateStore struct {
	store interfaces.BlobStore
	log   *slog.Logger

	mu       sync.Mutex
	lastCode interfaces.ContentID
}

// NewStateStore creates a StateStore on top of store.
func NewStateStore(store interfaces.BlobStore, log *slog.Logger) *StateStore {
	return &StateStore{store: store, log: log}
}

// Save writes snap. The image blob is only rewritten when its hash changed.
func (s *StateStore) Save(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := stateRecord{
		Administrator:   snap.Administrator,
		RegistrationFee: snap.RegistrationFee,
		UpdatedAt:       time.Now().UTC(),
	}

	var codeID interfaces.ContentID
	if snap.ProgramImage != nil {
		codeID = interfaces.ComputeID(snap.ProgramImage)
		if codeID != s.lastCode {
			if err := s.store.Put(ctx, interfaces.CodeLabelFor(codeID), snap.ProgramImage); err != nil {
				return fmt.Errorf("storing program image in %s: %w", s.store.Name(), err)
			}
			s.log.Debug("Stored program image", "backend", s.store.Name(), "hash", codeID.String(), "size", len(snap.ProgramImage))
		}
		record.ImageHash = codeID.String()
		record.ImageSize = len(snap.ProgramImage)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	// The record is the commit point. A failure here leaves an unreferenced
	// image blob and the previous record intact.
	if err := s.store.Put(ctx, interfaces.StateLabel, data); err != nil {
		return fmt.Errorf("storing state in %s: %w", s.store.Name(), err)
	}
	if !codeID.IsZero() {
		s.lastCode = codeID
	}
	return nil
}

// Load reads the last saved snapshot. It returns false if no state was saved.
func (s *StateStore) Load(ctx context.Context) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.store.Get(ctx, interfaces.StateLabel)
	if errors.Is(err, interfaces.ErrContentNotFound) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("loading state from %s: %w", s.store.Name(), err)
	}

	var record stateRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if err := record.Administrator.Validate(); err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}

	snap := Snapshot{
		Administrator:   record.Administrator,
		RegistrationFee: record.RegistrationFee,
	}
	if record.ImageHash == "" {
		return snap, true, nil
	}

	expected, err := interfaces.NewContentIDFromHex(record.ImageHash)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	image, err := s.store.Get(ctx, interfaces.CodeLabelFor(expected))
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("loading program image from %s: %w", s.store.Name(), err)
	}
	if actual := interfaces.ComputeID(image); actual != expected {
		return Snapshot{}, false, fmt.Errorf("%w: image hash %s, expected %s", ErrCorruptState, actual, expected)
	}

	s.lastCode = expected
	snap.ProgramImage = image
	return snap, true, nil
}
