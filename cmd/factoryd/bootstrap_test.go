package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/subaccount-factory/config"
	"github.com/ruteri/subaccount-factory/factory"
	"github.com/ruteri/subaccount-factory/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisYAML = `
factory_account: factory.near
administrator: admin.near
registration_fee: 6000
storage_price_per_byte: 1
image_path: image.bin
journal_path: data/receipts.db
storage:
  - file://./data/blobs
accounts:
  - id: admin.near
  - id: alice.near
    balance: 20000
    keys: ["0x00000000000000000000000000000000000000a1"]
`

func writeGenesis(t *testing.T, dir string, image []byte) *config.Genesis {
	t.Helper()
	path := filepath.Join(dir, "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(genesisYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.bin"), image, 0o600))

	genesis, err := config.Load(path)
	require.NoError(t, err)
	return genesis
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	genesis := writeGenesis(t, dir, make([]byte, 100))
	n, err := bootstrap(ctx, genesis, logger, nil)
	require.NoError(t, err)

	fee, err := n.contract.GetRegistrationFee()
	require.NoError(t, err)
	assert.Equal(t, "6000", fee.String())
	image, ok := n.contract.State().ProgramImage()
	require.True(t, ok)
	assert.Len(t, image, 100)

	receipt, err := n.runtime.Execute(ctx, interfaces.Transaction{
		Signer:   "alice.near",
		Receiver: "factory.near",
		Method:   factory.MethodRegister,
		Args:     []byte(`{"tenant_id":"3","referral_address":"ref.near"}`),
		Deposit:  interfaces.NewAmount(6000),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n.runtime.Flush(ctx))

	sub, err := n.runtime.Account(ctx, "3.factory.near")
	require.NoError(t, err)
	assert.Equal(t, "5220", sub.Balance.String())

	// Receipts land in the journal.
	_, children, err := n.runtime.Receipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Len(t, children, 1)
	require.NoError(t, n.Close())
	assert.FileExists(t, filepath.Join(dir, "data", "receipts.db"))

	// A restart restores the persisted state instead of the genesis values.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.bin"), make([]byte, 10), 0o600))
	n, err = bootstrap(ctx, genesis, logger, nil)
	require.NoError(t, err)
	defer n.Close()

	image, ok = n.contract.State().ProgramImage()
	require.True(t, ok)
	assert.Len(t, image, 100)

	// Earlier receipts survive the restart.
	stored, _, err := n.runtime.Receipt(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ReceiptSucceeded, stored.Status)
}

func TestBootstrap_WithoutImage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	genesis, err := config.Parse([]byte("factory_account: factory.near\nfactory_balance: 10\nadministrator: admin.near\nregistration_fee: 1\n"))
	require.NoError(t, err)

	n, err := bootstrap(context.Background(), genesis, logger, nil)
	require.NoError(t, err)
	defer n.Close()

	assert.Zero(t, n.runtime.Pending())

	// No image configured: registration is rejected.
	_, err = n.runtime.Execute(context.Background(), interfaces.Transaction{
		Signer:   "factory.near",
		Receiver: "factory.near",
		Method:   factory.MethodRegister,
		Args:     []byte(`{"tenant_id":"1","referral_address":"ref.near"}`),
		Deposit:  interfaces.NewAmount(1),
	})
	assert.ErrorIs(t, err, factory.ErrImageNotConfigured)
}
