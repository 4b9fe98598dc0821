package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/subaccount-factory/api/servers"
	"github.com/ruteri/subaccount-factory/common"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *servers.Config {
	return &servers.Config{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              cCtx.Bool(PprofFlag.Name),
		EnableRPC:                cCtx.Bool(RPCFlag.Name),
		DrainDuration:            time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"LISTEN_ADDR"},
}

var GenesisFlag = &cli.StringFlag{
	Name:     "genesis",
	Required: true,
	Usage:    "path to the genesis YAML describing the factory deployment",
	EnvVars:  []string{"GENESIS_FILE"},
}

var RPCFlag = &cli.BoolFlag{
	Name:  "rpc",
	Value: true,
	Usage: "serve JSON-RPC on /rpc",
}

var VaultClientCertFlag = &cli.StringFlag{
	Name:    "vault-client-cert",
	Usage:   "PEM client certificate for Vault TLS auth",
	EnvVars: []string{"VAULT_CLIENT_CERT"},
}

var VaultClientKeyFlag = &cli.StringFlag{
	Name:    "vault-client-key",
	Usage:   "PEM client key for Vault TLS auth",
	EnvVars: []string{"VAULT_CLIENT_KEY"},
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:8080",
	Usage:   "ledger API address",
	EnvVars: []string{"LEDGER_SERVER"},
}

var SignerFlag = &cli.StringFlag{
	Name:    "signer",
	Usage:   "account id signing transactions",
	EnvVars: []string{"LEDGER_SIGNER"},
}

var KeyFileFlag = &cli.StringFlag{
	Name:    "key-file",
	Usage:   "file with the hex secp256k1 key of the signer",
	EnvVars: []string{"LEDGER_KEY_FILE"},
}

var FactoryFlag = &cli.StringFlag{
	Name:    "factory",
	Value:   "factory.near",
	Usage:   "factory account id",
	EnvVars: []string{"FACTORY_ACCOUNT"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait before shutdown after marking the server not ready",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
	PprofFlag,
	DrainSecondsFlag,
}
