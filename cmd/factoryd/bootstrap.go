package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ruteri/subaccount-factory/config"
	"github.com/ruteri/subaccount-factory/factory"
	"github.com/ruteri/subaccount-factory/interfaces"
	"github.com/ruteri/subaccount-factory/journal"
	"github.com/ruteri/subaccount-factory/ledger"
	"github.com/ruteri/subaccount-factory/storage"
)

// node is a bootstrapped ledger with the factory deployed.
type node struct {
	runtime  *ledger.Runtime
	contract *factory.Contract
	closers  []io.Closer
}

func (n *node) Close() error {
	var errs []error
	for _, c := range n.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// bootstrap builds the ledger described by genesis. Factory state found in
// the configured storage takes precedence over the genesis fee and image.
func bootstrap(ctx context.Context, genesis *config.Genesis, logger *slog.Logger, tlsAuth func() (tls.Certificate, error)) (*node, error) {
	n := &node{}

	var opts []ledger.Option
	if genesis.StoragePricePerByte != nil {
		opts = append(opts, ledger.WithStoragePricePerByte(*genesis.StoragePricePerByte))
	}

	if path := genesis.Journal(); path != "" {
		store, err := journal.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening receipt journal: %w", err)
		}
		n.closers = append(n.closers, store)
		opts = append(opts, ledger.WithReceiptStore(store))
		logger.Info("Receipt journal opened", "path", path)
	}

	var stateStore *factory.StateStore
	if len(genesis.Storage) > 0 {
		locations, err := genesis.StorageLocations()
		if err != nil {
			n.Close()
			return nil, err
		}

		var backendFactory interfaces.BlobStoreFactory = storage.NewStorageBackendFactory(logger)
		if tlsAuth != nil {
			backendFactory = backendFactory.WithTLSAuth(tlsAuth)
		}

		blobs, err := backendFactory.CreateMultiBackend(locations)
		if err != nil {
			n.Close()
			return nil, fmt.Errorf("creating storage backends: %w", err)
		}
		stateStore = factory.NewStateStore(blobs, logger)
		logger.Info("Factory state storage configured", "location", blobs.LocationURI())
	}

	n.runtime = ledger.New(logger, opts...)
	rt := n.runtime

	if err := rt.CreateAccount(genesis.FactoryAccount, genesis.FactoryBalance, genesis.FactoryKeyAddresses()...); err != nil {
		n.Close()
		return nil, err
	}
	for _, account := range genesis.Accounts {
		if err := rt.CreateAccount(account.ID, account.Balance, account.KeyAddresses()...); err != nil {
			n.Close()
			return nil, err
		}
	}

	n.contract = factory.NewContract(logger, stateStore)
	restored, err := n.contract.Restore(ctx)
	if err != nil {
		n.Close()
		return nil, fmt.Errorf("restoring factory state: %w", err)
	}
	if err := rt.DeployNative(genesis.FactoryAccount, n.contract); err != nil {
		n.Close()
		return nil, err
	}

	if restored {
		return n, nil
	}

	if err := initializeFactory(ctx, rt, genesis); err != nil {
		n.Close()
		return nil, err
	}
	return n, nil
}

// initializeFactory runs the initializer and installs the genesis image as
// self-calls of the factory account.
func initializeFactory(ctx context.Context, rt *ledger.Runtime, genesis *config.Genesis) error {
	initArgs, err := json.Marshal(factory.InitArgs{
		Administrator:   genesis.Administrator,
		RegistrationFee: genesis.RegistrationFee,
	})
	if err != nil {
		return err
	}

	if _, err := rt.Execute(ctx, interfaces.Transaction{
		Signer:   genesis.FactoryAccount,
		Receiver: genesis.FactoryAccount,
		Method:   factory.MethodInitialize,
		Args:     initArgs,
	}); err != nil {
		return fmt.Errorf("initializing factory: %w", err)
	}

	image, err := genesis.Image()
	if err != nil {
		return err
	}
	if len(image) == 0 {
		return nil
	}

	if _, err := rt.Execute(ctx, interfaces.Transaction{
		Signer:   genesis.FactoryAccount,
		Receiver: genesis.FactoryAccount,
		Method:   factory.MethodSetProgramImage,
		Args:     image,
	}); err != nil {
		return fmt.Errorf("installing program image: %w", err)
	}
	return nil
}
