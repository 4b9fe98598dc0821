package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/subaccount-factory/api/handlers"
	"github.com/ruteri/subaccount-factory/api/servers"
	"github.com/ruteri/subaccount-factory/cmd/flags"
	"github.com/ruteri/subaccount-factory/config"
	"github.com/ruteri/subaccount-factory/cryptoutils"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "factoryd",
		Usage: "Run the factory ledger and serve its API",
		Flags: append([]cli.Flag{
			flags.GenesisFlag,
			flags.ListenAddrFlag,
			flags.RPCFlag,
			flags.VaultClientCertFlag,
			flags.VaultClientKeyFlag,
		}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			genesis, err := config.Load(cCtx.String(flags.GenesisFlag.Name))
			if err != nil {
				logger.Error("Failed to load genesis", "err", err)
				return err
			}

			var tlsAuth func() (tls.Certificate, error)
			certPath := cCtx.String(flags.VaultClientCertFlag.Name)
			keyPath := cCtx.String(flags.VaultClientKeyFlag.Name)
			switch {
			case certPath != "" && keyPath != "":
				tlsAuth = cryptoutils.LoadClientCertificate(certPath, keyPath)
			case certPath != "" || keyPath != "":
				return errors.New("vault-client-cert and vault-client-key must be set together")
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			n, err := bootstrap(ctx, genesis, logger, tlsAuth)
			if err != nil {
				logger.Error("Bootstrap failed", "err", err)
				return err
			}
			defer n.Close()

			n.runtime.Start(ctx)
			defer n.runtime.Stop()

			rpcServer, err := handlers.NewRPCServer(n.runtime, genesis.FactoryAccount, logger)
			if err != nil {
				return err
			}

			cfg := flags.ConfigureServer(cCtx, logger)
			handler := handlers.NewHandler(n.runtime, genesis.FactoryAccount, logger)
			server := servers.New(cfg, handler, rpcServer)

			logger.Info("Starting server",
				"factory", genesis.FactoryAccount,
				"administrator", genesis.Administrator)
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			if err := n.runtime.WaitIdle(ctx); err != nil {
				logger.Warn("Ledger queue not drained", "err", err)
			}
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
