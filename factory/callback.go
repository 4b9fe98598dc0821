package factory

import (
	"fmt"

	"github.com/ruteri/subaccount-factory/interfaces"
)

// OnProvisioned settles a registration once its composed action has resolved.
//
// On success the surplus (attached payment minus minimum escrow) goes to the
// administrator. On failure nothing moves: the ledger has already returned the
// escrow to the factory and the registrant is not refunded.
func (c *Contract) OnProvisioned(env interfaces.Env, attachedPayment, minimumEscrow interfaces.Amount, outcome interfaces.Outcome) error {
	if err := requireSelf(env); err != nil {
		return err
	}

	if !outcome.Succeeded {
		// No refunds if you try to overclock.
		env.Log(fmt.Sprintf("Error registering tenant: %s", outcome.Error))
		return nil
	}

	surplus, err := attachedPayment.Sub(minimumEscrow)
	if err != nil {
		return fmt.Errorf("settlement: %w", err)
	}

	administrator := c.state.Administrator()
	if err := env.Emit(interfaces.NewComposedAction(administrator).Transfer(surplus)); err != nil {
		return fmt.Errorf("settlement transfer to %s: %w", administrator, err)
	}
	return nil
}
