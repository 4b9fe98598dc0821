/*
Package servers runs the HTTP front of the factory ledger.

The Server routes the public REST API, the optional JSON-RPC endpoint,
health probes and the pprof debug API through a chi router with request
logging from flashbots/go-utils.

# Server Lifecycle

  - /livez always answers while the process runs
  - /readyz answers 503 after /drain until /undrain
  - Shutdown drains for DrainDuration, then stops accepting requests and
    waits up to GracefulShutdownDuration for in-flight ones

# Example Usage

	cfg := &servers.Config{
	    ListenAddr:               ":8080",
	    Log:                      logger,
	    EnableRPC:                true,
	    DrainDuration:            10 * time.Second,
	    GracefulShutdownDuration: 30 * time.Second,
	}

	server := servers.New(cfg, handlers.NewHandler(rt, "factory.near", logger), rpcServer)
	server.RunInBackground()
	defer server.Shutdown()
*/
package servers
