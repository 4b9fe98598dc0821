/*
Command factoryd runs the sub-account factory ledger.

It loads a genesis file, creates the prefunded accounts, deploys the
factory contract (restoring persisted state from the configured storage
when present) and serves the REST and JSON-RPC API.

	factoryd --genesis genesis.yaml --listen-addr 0.0.0.0:8080 --log-json

Receipts are journaled to SQLite when journal_path is set in the genesis.
Vault backends authenticate with VAULT_TOKEN or, when both
--vault-client-cert and --vault-client-key are set, a TLS client
certificate.
*/
package main
