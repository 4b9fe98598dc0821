package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ruteri/subaccount-factory/interfaces"
)

// Entry points exposed to the ledger runtime.
const (
	MethodInitialize         = "new"
	MethodGetRegistrationFee = "get_registration_fee"
	MethodSetRegistrationFee = "set_registration_fee"
	MethodSetProgramImage    = "set_program_image"
	MethodRegister           = "register"
	MethodOnProvisioned      = "on_provisioned"
)

// InitArgs are the arguments of MethodInitialize.
type InitArgs struct {
	Administrator   interfaces.AccountID `json:"administrator"`
	RegistrationFee interfaces.Amount    `json:"registration_fee"`
}

// SetFeeArgs are the arguments of MethodSetRegistrationFee.
type SetFeeArgs struct {
	RegistrationFee interfaces.Amount `json:"registration_fee"`
}

// RegisterArgs are the arguments of MethodRegister. The same shape is forwarded
// to the initializer of the provisioned sub-account.
type RegisterArgs struct {
	TenantID        interfaces.TenantID  `json:"tenant_id"`
	ReferralAddress interfaces.AccountID `json:"referral_address"`
}

// ProvisionedArgs are the continuation arguments of MethodOnProvisioned.
type ProvisionedArgs struct {
	AttachedPayment interfaces.Amount `json:"attached_payment"`
	MinimumEscrow   interfaces.Amount `json:"minimum_escrow"`
}

// Contract is the deployment factory hosted by the ledger runtime.
// It owns the factory State and, optionally, persists it to a StateStore.
type Contract struct {
	state *State
	store *StateStore
	log   *slog.Logger
}

// NewContract creates a factory contract. store may be nil to keep state in memory only.
func NewContract(log *slog.Logger, store *StateStore) *Contract {
	return &Contract{
		state: NewState(),
		store: store,
		log:   log,
	}
}

// State exposes the factory state for read access.
func (c *Contract) State() *State {
	return c.state
}

// Restore loads previously persisted state. It returns false when nothing was stored.
func (c *Contract) Restore(ctx context.Context) (bool, error) {
	if c.store == nil {
		return false, nil
	}

	snap, found, err := c.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	c.state.restore(snap)
	c.log.Info("Restored factory state",
		"administrator", snap.Administrator,
		"registrationFee", snap.RegistrationFee.String(),
		"imageSize", len(snap.ProgramImage))
	return true, nil
}

// Call dispatches a runtime invocation to the matching entry point.
func (c *Contract) Call(ctx context.Context, env interfaces.Env, method string, args []byte) ([]byte, error) {
	if env.IsView() && method != MethodGetRegistrationFee {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrReadOnly, method)
	}

	switch method {
	case MethodInitialize:
		var a InitArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, c.Initialize(ctx, a.Administrator, a.RegistrationFee)

	case MethodGetRegistrationFee:
		fee, err := c.GetRegistrationFee()
		if err != nil {
			return nil, err
		}
		return json.Marshal(fee)

	case MethodSetRegistrationFee:
		var a SetFeeArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return nil, c.SetRegistrationFee(ctx, env, a.RegistrationFee)

	case MethodSetProgramImage:
		return nil, c.SetProgramImage(ctx, env, args)

	case MethodRegister:
		var a RegisterArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		subaccount, err := c.Register(env, a.TenantID, a.ReferralAddress)
		if err != nil {
			return nil, err
		}
		return json.Marshal(subaccount)

	case MethodOnProvisioned:
		if err := requireSelf(env); err != nil {
			return nil, err
		}
		var a ProvisionedArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		outcome, ok := env.PromiseResult()
		if !ok {
			return nil, ErrMissingOutcome
		}
		return nil, c.OnProvisioned(env, a.AttachedPayment, a.MinimumEscrow, outcome)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
}

// Initialize performs the one-time setup of the factory.
func (c *Contract) Initialize(ctx context.Context, administrator interfaces.AccountID, registrationFee interfaces.Amount) error {
	if err := c.state.Initialize(administrator, registrationFee); err != nil {
		return err
	}
	if err := c.persist(ctx); err != nil {
		c.state.reset()
		return err
	}
	return nil
}

// GetRegistrationFee returns the configured fee.
func (c *Contract) GetRegistrationFee() (interfaces.Amount, error) {
	if !c.state.Initialized() {
		return interfaces.Amount{}, ErrNotInitialized
	}
	return c.state.RegistrationFee(), nil
}

// SetRegistrationFee updates the fee on behalf of the administrator.
func (c *Contract) SetRegistrationFee(ctx context.Context, env interfaces.Env, fee interfaces.Amount) error {
	before, _ := c.state.Snapshot()
	if err := c.state.SetRegistrationFee(env.PredecessorAccountID(), fee); err != nil {
		return err
	}
	if err := c.persist(ctx); err != nil {
		c.state.restore(before)
		return err
	}
	return nil
}

// SetProgramImage replaces the stored image. Reachable only through a self-call.
func (c *Contract) SetProgramImage(ctx context.Context, env interfaces.Env, image []byte) error {
	before, _ := c.state.Snapshot()
	if err := c.state.SetProgramImage(env.PredecessorAccountID(), env.CurrentAccountID(), image); err != nil {
		return err
	}
	if err := c.persist(ctx); err != nil {
		c.state.restore(before)
		return err
	}
	env.Log("Contract code updated")
	return nil
}

func (c *Contract) persist(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snap, ok := c.state.Snapshot()
	if !ok {
		return nil
	}
	if err := c.store.Save(ctx, snap); err != nil {
		c.log.Error("Failed to persist factory state", "err", err)
		return fmt.Errorf("failed to persist factory state: %w", err)
	}
	return nil
}

// requireSelf rejects calls that did not originate from the factory account itself.
func requireSelf(env interfaces.Env) error {
	if env.PredecessorAccountID() != env.CurrentAccountID() {
		return fmt.Errorf("%w: method is private", ErrUnauthorized)
	}
	return nil
}

func decodeArgs(args []byte, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}
