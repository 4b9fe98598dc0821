package factory

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ruteri/subaccount-factory/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupContract returns an initialized factory with an image of imageSize bytes.
func setupContract(t *testing.T, fee uint64, imageSize int) *Contract {
	t.Helper()
	c := NewContract(discardLogger(), nil)
	require.NoError(t, c.Initialize(context.Background(), testAdmin, interfaces.NewAmount(fee)))
	if imageSize > 0 {
		env := newFakeEnv(testFactory, 0)
		require.NoError(t, c.SetProgramImage(context.Background(), env, bytes.Repeat([]byte{0xAB}, imageSize)))
	}
	return c
}

func TestMinimumEscrow(t *testing.T) {
	escrow, err := MinimumEscrow(100, interfaces.NewAmount(1))
	require.NoError(t, err)
	assert.Equal(t, "5220", escrow.String())

	escrow, err = MinimumEscrow(0, interfaces.MustParseAmount("10000000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, "51200000000000000000000", escrow.String())

	_, err = MinimumEscrow(1<<20, interfaces.MustParseAmount("340282366920938463463374607431768211455"))
	assert.ErrorIs(t, err, interfaces.ErrAmountOverflow)
}

func TestInitialize(t *testing.T) {
	c := NewContract(discardLogger(), nil)

	_, err := c.GetRegistrationFee()
	assert.ErrorIs(t, err, ErrNotInitialized)

	err = c.Initialize(context.Background(), "Not Valid", interfaces.NewAmount(1))
	assert.ErrorIs(t, err, ErrInvalidArguments)

	require.NoError(t, c.Initialize(context.Background(), testAdmin, interfaces.NewAmount(6000)))
	err = c.Initialize(context.Background(), testUser, interfaces.NewAmount(1))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)

	fee, err := c.GetRegistrationFee()
	require.NoError(t, err)
	assert.Equal(t, "6000", fee.String())
	assert.Equal(t, testAdmin, c.State().Administrator())
}

func TestSetRegistrationFee(t *testing.T) {
	c := setupContract(t, 6000, 100)

	err := c.SetRegistrationFee(context.Background(), newFakeEnv(testUser, 0), interfaces.NewAmount(1))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "only owner can call this method")
	assert.Equal(t, "6000", c.State().RegistrationFee().String())

	// A fee below the escrow is accepted; registrations fail later.
	require.NoError(t, c.SetRegistrationFee(context.Background(), newFakeEnv(testAdmin, 0), interfaces.NewAmount(1000)))
	assert.Equal(t, "1000", c.State().RegistrationFee().String())
}

func TestSetProgramImage(t *testing.T) {
	c := setupContract(t, 6000, 0)

	err := c.SetProgramImage(context.Background(), newFakeEnv(testAdmin, 0), []byte{1})
	assert.ErrorIs(t, err, ErrUnauthorized)

	self := newFakeEnv(testFactory, 0)
	err = c.SetProgramImage(context.Background(), self, nil)
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, ok := c.State().ProgramImage()
	assert.False(t, ok)

	input := []byte{1, 2, 3}
	require.NoError(t, c.SetProgramImage(context.Background(), self, input))
	assert.Equal(t, []string{"Contract code updated"}, self.logs)

	input[0] = 9
	image, ok := c.State().ProgramImage()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, image)
}

func TestRegister(t *testing.T) {
	c := setupContract(t, 6000, 100)
	env := newFakeEnv(testUser, 6000)

	subaccount, err := c.Register(env, 7, "referrer.near")
	require.NoError(t, err)
	assert.Equal(t, interfaces.AccountID("7.factory.near"), subaccount)
	assert.Equal(t, []string{"Registering tenant 7"}, env.logs)

	require.Len(t, env.emitted, 1)
	action := env.emitted[0]
	assert.Equal(t, subaccount, action.Receiver)
	require.Len(t, action.Actions, 4)
	assert.Equal(t, interfaces.CreateAccountAction, action.Actions[0].Kind)
	assert.Equal(t, interfaces.TransferAction, action.Actions[1].Kind)
	assert.Equal(t, "5220", action.Actions[1].Deposit.String())
	assert.Equal(t, interfaces.DeployCodeAction, action.Actions[2].Kind)
	assert.Len(t, action.Actions[2].Code, 100)
	assert.Equal(t, interfaces.FunctionCallAction, action.Actions[3].Kind)
	assert.Equal(t, InitializerMethod, action.Actions[3].Method)
	assert.Equal(t, InitializerGas, action.Actions[3].Gas)
	assert.True(t, action.Actions[3].Deposit.IsZero())
	assert.JSONEq(t, `{"tenant_id":"7","referral_address":"referrer.near"}`, string(action.Actions[3].Args))

	require.NotNil(t, action.Then)
	assert.Equal(t, testFactory, action.Then.Receiver)
	assert.Equal(t, MethodOnProvisioned, action.Then.Method)
	assert.Equal(t, SettlementGas, action.Then.Gas)
	assert.JSONEq(t, `{"attached_payment":"6000","minimum_escrow":"5220"}`, string(action.Then.Args))
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		fee       uint64
		imageSize int
		attached  uint64
		factory   interfaces.AccountID
		gas       interfaces.Gas
		wantErr   error
	}{
		{
			name:      "payment below fee",
			fee:       6000,
			imageSize: 100,
			attached:  5999,
			wantErr:   ErrInvalidPayment,
		},
		{
			name:      "payment above fee",
			fee:       6000,
			imageSize: 100,
			attached:  6001,
			wantErr:   ErrInvalidPayment,
		},
		{
			name:     "no image",
			fee:      6000,
			attached: 6000,
			wantErr:  ErrImageNotConfigured,
		},
		{
			name:      "fee below storage cost",
			fee:       1000,
			imageSize: 100,
			attached:  1000,
			wantErr:   ErrInsufficientEscrow,
		},
		{
			name:      "derived account too long",
			fee:       6000,
			imageSize: 100,
			attached:  6000,
			factory:   interfaces.AccountID(strings.Repeat("f", 60)),
			wantErr:   ErrInvalidSubaccount,
		},
		{
			name:      "prepaid gas below reservation",
			fee:       6000,
			imageSize: 100,
			attached:  6000,
			gas:       30 * interfaces.TGas,
			wantErr:   ErrInsufficientGas,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupContract(t, tt.fee, tt.imageSize)
			env := newFakeEnv(testUser, tt.attached)
			if tt.factory != "" {
				env.current = tt.factory
			}
			if tt.gas != 0 {
				env.gas = tt.gas
			}

			_, err := c.Register(env, 12345, "referrer.near")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, env.emitted)
			assert.Empty(t, env.logs)
		})
	}
}

func TestRegister_EmitGasExceeded(t *testing.T) {
	c := setupContract(t, 6000, 100)
	env := newFakeEnv(testUser, 6000)
	env.emitErr = interfaces.ErrGasExceeded

	_, err := c.Register(env, 1, "referrer.near")
	assert.ErrorIs(t, err, ErrInsufficientGas)
	assert.ErrorIs(t, err, interfaces.ErrGasExceeded)
}

func TestRegister_NotInitialized(t *testing.T) {
	c := NewContract(discardLogger(), nil)
	_, err := c.Register(newFakeEnv(testUser, 0), 1, "referrer.near")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestOnProvisioned(t *testing.T) {
	t.Run("success forwards surplus to administrator", func(t *testing.T) {
		c := setupContract(t, 6000, 100)
		env := newFakeEnv(testFactory, 0)

		err := c.OnProvisioned(env, interfaces.NewAmount(6000), interfaces.NewAmount(5220), interfaces.Outcome{Succeeded: true})
		require.NoError(t, err)
		require.Len(t, env.emitted, 1)
		assert.Equal(t, testAdmin, env.emitted[0].Receiver)
		require.Len(t, env.emitted[0].Actions, 1)
		assert.Equal(t, interfaces.TransferAction, env.emitted[0].Actions[0].Kind)
		assert.Equal(t, "780", env.emitted[0].Actions[0].Deposit.String())
	})

	t.Run("zero surplus", func(t *testing.T) {
		c := setupContract(t, 5220, 100)
		env := newFakeEnv(testFactory, 0)

		err := c.OnProvisioned(env, interfaces.NewAmount(5220), interfaces.NewAmount(5220), interfaces.Outcome{Succeeded: true})
		require.NoError(t, err)
		require.Len(t, env.emitted, 1)
		assert.True(t, env.emitted[0].Actions[0].Deposit.IsZero())
	})

	t.Run("failure moves nothing", func(t *testing.T) {
		c := setupContract(t, 6000, 100)
		env := newFakeEnv(testFactory, 0)

		err := c.OnProvisioned(env, interfaces.NewAmount(6000), interfaces.NewAmount(5220), interfaces.Outcome{Error: "account exists"})
		require.NoError(t, err)
		assert.Empty(t, env.emitted)
		require.Len(t, env.logs, 1)
		assert.Contains(t, env.logs[0], "Error registering tenant")
	})

	t.Run("external caller rejected", func(t *testing.T) {
		c := setupContract(t, 6000, 100)
		env := newFakeEnv(testUser, 0)

		err := c.OnProvisioned(env, interfaces.NewAmount(6000), interfaces.NewAmount(5220), interfaces.Outcome{Succeeded: true})
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.Empty(t, env.emitted)
	})
}

func TestCall_Dispatch(t *testing.T) {
	ctx := context.Background()
	c := NewContract(discardLogger(), nil)

	initArgs, err := json.Marshal(InitArgs{Administrator: testAdmin, RegistrationFee: interfaces.NewAmount(6000)})
	require.NoError(t, err)
	_, err = c.Call(ctx, newFakeEnv(testFactory, 0), MethodInitialize, initArgs)
	require.NoError(t, err)

	out, err := c.Call(ctx, newFakeEnv(testUser, 0), MethodGetRegistrationFee, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"6000"`, string(out))

	_, err = c.Call(ctx, newFakeEnv(testAdmin, 0), MethodSetRegistrationFee, []byte(`{"registration_fee":"7000"}`))
	require.NoError(t, err)
	assert.Equal(t, "7000", c.State().RegistrationFee().String())

	_, err = c.Call(ctx, newFakeEnv(testUser, 0), MethodSetProgramImage, []byte{1, 2})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.Call(ctx, newFakeEnv(testFactory, 0), MethodSetProgramImage, bytes.Repeat([]byte{1}, 100))
	require.NoError(t, err)

	env := newFakeEnv(testUser, 7000)
	out, err = c.Call(ctx, env, MethodRegister, []byte(`{"tenant_id":"42","referral_address":"ref.near"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"42.factory.near"`, string(out))

	_, err = c.Call(ctx, newFakeEnv(testUser, 0), MethodOnProvisioned, []byte(`{}`))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = c.Call(ctx, newFakeEnv(testFactory, 0), MethodOnProvisioned, []byte(`{"attached_payment":"7000","minimum_escrow":"5220"}`))
	assert.ErrorIs(t, err, ErrMissingOutcome)

	_, err = c.Call(ctx, newFakeEnv(testUser, 0), MethodRegister, []byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = c.Call(ctx, newFakeEnv(testUser, 0), "withdraw", nil)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestContract_Persistence(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()

	c := NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))
	require.NoError(t, c.Initialize(ctx, testAdmin, interfaces.NewAmount(6000)))
	require.NoError(t, c.SetProgramImage(ctx, newFakeEnv(testFactory, 0), []byte("image-v1")))
	require.NoError(t, c.SetRegistrationFee(ctx, newFakeEnv(testAdmin, 0), interfaces.NewAmount(8000)))
	v1Label := interfaces.CodeLabelFor(interfaces.ComputeID([]byte("image-v1")))
	assert.Equal(t, 1, blobs.puts[v1Label], "unchanged image is not rewritten")

	restored := NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))
	found, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, testAdmin, restored.State().Administrator())
	assert.Equal(t, "8000", restored.State().RegistrationFee().String())
	image, ok := restored.State().ProgramImage()
	require.True(t, ok)
	assert.Equal(t, []byte("image-v1"), image)

	t.Run("empty store", func(t *testing.T) {
		fresh := NewContract(discardLogger(), NewStateStore(newMemBlobStore(), discardLogger()))
		found, err := fresh.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, found)
		assert.False(t, fresh.State().Initialized())
	})

	t.Run("tampered image", func(t *testing.T) {
		blobs.blobs[v1Label] = []byte("image-v2")
		tampered := NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))
		_, err := tampered.Restore(ctx)
		assert.ErrorIs(t, err, ErrCorruptState)
	})
}

func TestContract_PersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	c := NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))
	require.NoError(t, c.Initialize(ctx, testAdmin, interfaces.NewAmount(6000)))

	blobs.putErr = errStoreDown
	err := c.SetRegistrationFee(ctx, newFakeEnv(testAdmin, 0), interfaces.NewAmount(1))
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, "6000", c.State().RegistrationFee().String())

	err = c.SetProgramImage(ctx, newFakeEnv(testFactory, 0), []byte("image"))
	assert.ErrorIs(t, err, errStoreDown)
	_, ok := c.State().ProgramImage()
	assert.False(t, ok)

	fresh := NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))
	err = fresh.Initialize(ctx, testAdmin, interfaces.NewAmount(1))
	assert.ErrorIs(t, err, errStoreDown)
	assert.False(t, fresh.State().Initialized())
}

func TestContract_StateWriteFailureKeepsPreviousImage(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	c := NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))
	require.NoError(t, c.Initialize(ctx, testAdmin, interfaces.NewAmount(6000)))
	require.NoError(t, c.SetProgramImage(ctx, newFakeEnv(testFactory, 0), []byte("image-v1")))

	blobs.putErr = errStoreDown
	blobs.failLabel = interfaces.StateLabel
	err := c.SetProgramImage(ctx, newFakeEnv(testFactory, 0), []byte("image-v2"))
	assert.ErrorIs(t, err, errStoreDown)
	image, ok := c.State().ProgramImage()
	require.True(t, ok)
	assert.Equal(t, []byte("image-v1"), image)

	restored := NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))
	found, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, found)
	image, ok = restored.State().ProgramImage()
	require.True(t, ok)
	assert.Equal(t, []byte("image-v1"), image)

	// Once the store recovers, the retried upload commits.
	blobs.putErr = nil
	require.NoError(t, c.SetProgramImage(ctx, newFakeEnv(testFactory, 0), []byte("image-v2")))
	restored = NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))
	_, err = restored.Restore(ctx)
	require.NoError(t, err)
	image, _ = restored.State().ProgramImage()
	assert.Equal(t, []byte("image-v2"), image)
}

func TestCall_ViewRejectsStateChanges(t *testing.T) {
	ctx := context.Background()
	blobs := newMemBlobStore()
	c := NewContract(discardLogger(), NewStateStore(blobs, discardLogger()))

	view := newFakeEnv(testUser, 0)
	view.view = true

	_, err := c.Call(ctx, view, MethodInitialize, []byte(`{"administrator":"admin.near","registration_fee":"6000"}`))
	assert.ErrorIs(t, err, interfaces.ErrReadOnly)
	assert.False(t, c.State().Initialized())
	assert.Empty(t, blobs.puts)

	require.NoError(t, c.Initialize(ctx, testAdmin, interfaces.NewAmount(6000)))
	for _, method := range []string{MethodSetRegistrationFee, MethodSetProgramImage, MethodRegister, MethodOnProvisioned} {
		_, err := c.Call(ctx, view, method, []byte(`{}`))
		assert.ErrorIs(t, err, interfaces.ErrReadOnly, method)
	}

	out, err := c.Call(ctx, view, MethodGetRegistrationFee, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `"6000"`, string(out))
}
