package factory

import (
	"fmt"
	"sync"

	"github.com/ruteri/subaccount-factory/interfaces"
)

// State holds the durable factory configuration: the administrator, the flat
// registration fee and the optional program image installed into every sub-account.
//
// The administrator is fixed at initialization. The fee is mutable by the administrator
// and the image only through the privileged self-call path.
type State struct {
	mu sync.RWMutex

	initialized     bool
	administrator   interfaces.AccountID
	registrationFee interfaces.Amount
	programImage    []byte // nil until first set
}

// NewState returns an uninitialized state.
func NewState() *State {
	return &State{}
}

// Initialize sets the administrator and fee. It can only succeed once.
func (s *State) Initialize(administrator interfaces.AccountID, registrationFee interfaces.Amount) error {
	if err := administrator.Validate(); err != nil {
		return fmt.Errorf("%w: administrator: %v", ErrInvalidArguments, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.administrator = administrator
	s.registrationFee = registrationFee
	return nil
}

// Initialized reports whether Initialize has succeeded.
func (s *State) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Administrator returns the administrator account.
func (s *State) Administrator() interfaces.AccountID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.administrator
}

// RegistrationFee returns the current registration fee.
func (s *State) RegistrationFee() interfaces.Amount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registrationFee
}

// SetRegistrationFee updates the fee. Only the administrator may call it.
// A fee below the minimum escrow is accepted; registrations will then fail loudly.
func (s *State) SetRegistrationFee(caller interfaces.AccountID, fee interfaces.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	if caller != s.administrator {
		return fmt.Errorf("%w: only owner can call this method", ErrUnauthorized)
	}
	s.registrationFee = fee
	return nil
}

// SetProgramImage overwrites the stored image. The caller must be the factory
// account itself.
func (s *State) SetProgramImage(caller, self interfaces.AccountID, image []byte) error {
	if caller != self {
		return fmt.Errorf("%w: method is private", ErrUnauthorized)
	}
	if len(image) == 0 {
		return ErrEmptyImage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.programImage = append([]byte(nil), image...)
	return nil
}

// ProgramImage returns the stored image and whether one is present.
// The returned slice must not be modified.
func (s *State) ProgramImage() ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.programImage, s.programImage != nil
}

// Snapshot is a point-in-time copy of the state, used for persistence.
type Snapshot struct {
	Administrator   interfaces.AccountID
	RegistrationFee interfaces.Amount
	ProgramImage    []byte
}

// Snapshot copies the state. It returns false when the state is not initialized.
func (s *State) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Administrator:   s.administrator,
		RegistrationFee: s.registrationFee,
		ProgramImage:    s.programImage,
	}, s.initialized
}

// reset returns the state to uninitialized.
func (s *State) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.administrator = ""
	s.registrationFee = interfaces.Amount{}
	s.programImage = nil
}

// restore replaces the whole state with a snapshot.
func (s *State) restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.administrator = snap.Administrator
	s.registrationFee = snap.RegistrationFee
	s.programImage = snap.ProgramImage
}
