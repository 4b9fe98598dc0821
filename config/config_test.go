package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/subaccount-factory/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const genesisYAML = `
factory_account: factory.near
administrator: admin.near
registration_fee: 6000
factory_keys:
  - "0x00000000000000000000000000000000000000aa"
storage_price_per_byte: "1"
image_path: image.bin
journal_path: data/receipts.db
storage:
  - file://./data/blobs
  - s3://bucket/factory/?region=eu-west-1
accounts:
  - id: alice.near
    balance: "20000"
    keys:
      - "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"
  - id: admin.near
    balance: 0
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(genesisYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.bin"), []byte("image"), 0o600))

	genesis, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, interfaces.AccountID("factory.near"), genesis.FactoryAccount)
	assert.Equal(t, interfaces.AccountID("admin.near"), genesis.Administrator)
	assert.Equal(t, "6000", genesis.RegistrationFee.String())
	require.NotNil(t, genesis.StoragePricePerByte)
	assert.Equal(t, "1", genesis.StoragePricePerByte.String())
	assert.True(t, genesis.FactoryBalance.IsZero())

	require.Len(t, genesis.FactoryKeyAddresses(), 1)
	require.Len(t, genesis.Accounts, 2)
	assert.Equal(t, "20000", genesis.Accounts[0].Balance.String())
	keys := genesis.Accounts[0].KeyAddresses()
	require.Len(t, keys, 1)
	assert.Equal(t, "0x71C7656EC7ab88b098defB751B7401B5f6d8976F", keys[0].Hex())

	image, err := genesis.Image()
	require.NoError(t, err)
	assert.Equal(t, []byte("image"), image)

	assert.Equal(t, filepath.Join(dir, "data", "receipts.db"), genesis.Journal())

	locations, err := genesis.StorageLocations()
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, filepath.Join(dir, "data", "blobs"), locations[0].Path)
	assert.Equal(t, "s3", locations[1].Scheme)
	assert.Equal(t, "bucket", locations[1].Host)
}

func TestParseDefaults(t *testing.T) {
	genesis, err := Parse([]byte("factory_account: factory.near\nadministrator: admin.near\nregistration_fee: \"1\"\n"))
	require.NoError(t, err)

	assert.Nil(t, genesis.StoragePricePerByte)
	assert.Empty(t, genesis.Journal())

	image, err := genesis.Image()
	require.NoError(t, err)
	assert.Nil(t, image)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad factory account", "factory_account: Factory\nadministrator: admin.near\n"},
		{"missing administrator", "factory_account: factory.near\n"},
		{"negative fee", "factory_account: factory.near\nadministrator: admin.near\nregistration_fee: \"-1\"\n"},
		{"bad key", "factory_account: factory.near\nadministrator: admin.near\naccounts:\n  - id: alice.near\n    keys: [\"0x1234\"]\n"},
		{"bad factory key", "factory_account: factory.near\nadministrator: admin.near\nfactory_keys: [\"nope\"]\n"},
		{"duplicate account", "factory_account: factory.near\nadministrator: admin.near\naccounts:\n  - id: factory.near\n"},
		{"bad storage", "factory_account: factory.near\nadministrator: admin.near\nstorage: [\"ftp://host/\"]\n"},
		{"malformed yaml", "factory_account: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
