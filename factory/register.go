package factory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ruteri/subaccount-factory/interfaces"
)

const (
	// InitializerMethod is invoked on every freshly deployed sub-account.
	InitializerMethod = "new"

	// InitializerGas is the budget forwarded to the sub-account initializer.
	InitializerGas = 50 * interfaces.TGas

	// SettlementGas is reserved for the on_provisioned continuation.
	SettlementGas = 10 * interfaces.TGas
)

// Register provisions a sub-account "<tenantID>.<factory>" for a tenant.
//
// The attached payment must equal the registration fee exactly. The minimum escrow
// moves into the new account; once provisioning resolves, OnProvisioned forwards
// the remainder to the administrator. All checks run before anything is emitted.
func (c *Contract) Register(env interfaces.Env, tenantID interfaces.TenantID, referral interfaces.AccountID) (interfaces.AccountID, error) {
	if !c.state.Initialized() {
		return "", ErrNotInitialized
	}

	attached := env.AttachedDeposit()
	fee := c.state.RegistrationFee()
	if !attached.Equal(fee) {
		return "", fmt.Errorf("%w: expected %s, got %s", ErrInvalidPayment, fee, attached)
	}

	image, ok := c.state.ProgramImage()
	if !ok {
		return "", ErrImageNotConfigured
	}

	minimumEscrow, err := MinimumEscrow(len(image), env.StoragePricePerByte())
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInsufficientEscrow, err)
	}
	if attached.Cmp(minimumEscrow) < 0 {
		return "", fmt.Errorf("%w: fee %s, storage cost %s", ErrInsufficientEscrow, attached, minimumEscrow)
	}

	self := env.CurrentAccountID()
	subaccount := self.SubAccount(tenantID.String())
	if !env.IsValidAccountID(string(subaccount)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidSubaccount, subaccount)
	}

	initArgs, err := json.Marshal(RegisterArgs{TenantID: tenantID, ReferralAddress: referral})
	if err != nil {
		return "", err
	}
	settleArgs, err := json.Marshal(ProvisionedArgs{AttachedPayment: attached, MinimumEscrow: minimumEscrow})
	if err != nil {
		return "", err
	}

	action := interfaces.NewComposedAction(subaccount).
		CreateAccount().
		Transfer(minimumEscrow).
		DeployCode(image).
		FunctionCall(InitializerMethod, initArgs, interfaces.Amount{}, InitializerGas).
		ThenCall(self, MethodOnProvisioned, settleArgs, SettlementGas)

	if reserved := action.ReservedGas(); reserved > env.PrepaidGas() {
		return "", fmt.Errorf("%w: need %s, prepaid %s", ErrInsufficientGas, reserved, env.PrepaidGas())
	}

	env.Log(fmt.Sprintf("Registering tenant %s", tenantID))
	if err := env.Emit(action); err != nil {
		if errors.Is(err, interfaces.ErrGasExceeded) {
			return "", fmt.Errorf("%w: %w", ErrInsufficientGas, err)
		}
		return "", err
	}

	c.log.Debug("Provisioning scheduled",
		"tenant", tenantID,
		"subaccount", subaccount,
		"escrow", minimumEscrow.String())
	return subaccount, nil
}
