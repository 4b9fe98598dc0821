// Package config loads the genesis file describing the factory deployment:
// the factory account, its administrator and fee, prefunded accounts and
// where the persisted factory state lives.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/subaccount-factory/interfaces"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Account is a prefunded ledger account with its access keys.
type Account struct {
	ID      interfaces.AccountID `yaml:"id"`
	Balance interfaces.Amount    `yaml:"balance"`
	Keys    []string             `yaml:"keys"`
}

// Genesis describes the initial ledger and factory deployment.
type Genesis struct {
	FactoryAccount      interfaces.AccountID `yaml:"factory_account"`
	FactoryBalance      interfaces.Amount    `yaml:"factory_balance"`
	FactoryKeys         []string             `yaml:"factory_keys"`
	Administrator       interfaces.AccountID `yaml:"administrator"`
	RegistrationFee     interfaces.Amount    `yaml:"registration_fee"`
	StoragePricePerByte *interfaces.Amount   `yaml:"storage_price_per_byte"`
	ImagePath           string               `yaml:"image_path"`
	JournalPath         string               `yaml:"journal_path"`
	Storage             []string             `yaml:"storage"`
	Accounts            []Account            `yaml:"accounts"`

	dir string
}

// Load reads and validates a genesis file. Relative paths inside it are
// resolved against the file's directory.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis: %w", err)
	}

	genesis, err := Parse(data)
	if err != nil {
		return nil, err
	}
	genesis.dir = filepath.Dir(path)
	return genesis, nil
}

// Parse decodes and validates genesis YAML.
func Parse(data []byte) (*Genesis, error) {
	var genesis Genesis
	if err := yaml.Unmarshal(data, &genesis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := genesis.Validate(); err != nil {
		return nil, err
	}
	return &genesis, nil
}

// Validate checks account names, key formats and storage locations.
func (g *Genesis) Validate() error {
	if err := g.FactoryAccount.Validate(); err != nil {
		return fmt.Errorf("%w: factory_account: %v", ErrInvalidConfig, err)
	}
	if err := g.Administrator.Validate(); err != nil {
		return fmt.Errorf("%w: administrator: %v", ErrInvalidConfig, err)
	}

	if err := validateKeys(g.FactoryKeys); err != nil {
		return fmt.Errorf("%w: factory_keys: %v", ErrInvalidConfig, err)
	}

	seen := map[interfaces.AccountID]bool{g.FactoryAccount: true}
	for i, account := range g.Accounts {
		if err := account.ID.Validate(); err != nil {
			return fmt.Errorf("%w: accounts[%d]: %v", ErrInvalidConfig, i, err)
		}
		if seen[account.ID] {
			return fmt.Errorf("%w: accounts[%d]: duplicate account %s", ErrInvalidConfig, i, account.ID)
		}
		seen[account.ID] = true

		if err := validateKeys(account.Keys); err != nil {
			return fmt.Errorf("%w: accounts[%d]: %v", ErrInvalidConfig, i, err)
		}
	}

	for _, uri := range g.Storage {
		if _, err := interfaces.NewStorageBackendLocation(uri); err != nil {
			return fmt.Errorf("%w: storage %q: %v", ErrInvalidConfig, uri, err)
		}
	}
	return nil
}

func validateKeys(keys []string) error {
	for _, key := range keys {
		if !common.IsHexAddress(key) {
			return fmt.Errorf("invalid key %q", key)
		}
	}
	return nil
}

func keyAddresses(keys []string) []common.Address {
	addrs := make([]common.Address, 0, len(keys))
	for _, key := range keys {
		addrs = append(addrs, common.HexToAddress(key))
	}
	return addrs
}

// KeyAddresses returns the parsed access keys of an account.
func (a Account) KeyAddresses() []common.Address {
	return keyAddresses(a.Keys)
}

// FactoryKeyAddresses returns the access keys of the factory account, used
// for privileged self-calls such as image updates.
func (g *Genesis) FactoryKeyAddresses() []common.Address {
	return keyAddresses(g.FactoryKeys)
}

// StorageLocations returns the parsed storage URIs. Relative file locations
// are resolved against the genesis directory.
func (g *Genesis) StorageLocations() ([]interfaces.StorageBackendLocation, error) {
	locations := make([]interfaces.StorageBackendLocation, 0, len(g.Storage))
	for _, uri := range g.Storage {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, err
		}
		if location.Scheme == "file" {
			path := location.Path
			if location.Host != "" {
				path = filepath.Join(location.Host, path)
			}
			location.Host = ""
			location.Path = g.resolve(path)
		}
		locations = append(locations, location)
	}
	return locations, nil
}

// Image reads the initial program image. It returns nil when none is configured.
func (g *Genesis) Image() ([]byte, error) {
	if g.ImagePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(g.resolve(g.ImagePath))
	if err != nil {
		return nil, fmt.Errorf("reading program image: %w", err)
	}
	return data, nil
}

// Journal returns the resolved receipt journal path, empty for in-memory receipts.
func (g *Genesis) Journal() string {
	if g.JournalPath == "" {
		return ""
	}
	return g.resolve(g.JournalPath)
}

func (g *Genesis) resolve(path string) string {
	if filepath.IsAbs(path) || g.dir == "" {
		return path
	}
	return filepath.Join(g.dir, path)
}
