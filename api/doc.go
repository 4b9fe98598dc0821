/*
Package api exposes the factory ledger over HTTP.

It is organized into three subpackages:

 1. handlers - REST and JSON-RPC request processing against the ledger
 2. servers - HTTP server lifecycle, routing, health and drain endpoints
 3. clients - a signing client for the REST API

# Endpoints

	GET  /api/public/registration_fee        current factory fee
	GET  /api/public/accounts/{account_id}   balance and code hash
	GET  /api/public/receipts/{receipt_id}   receipt, logs and spawned receipts
	POST /api/tx                             signed transaction
	POST /rpc                                JSON-RPC 2.0 (ledger_*, factory_*)

Transactions are JSON encoded interfaces.Transaction values. The
X-Ledger-Signature header carries a recoverable secp256k1 signature over
keccak256 of the exact request body; the recovered address must be an
access key of the signer account.

Registration settles asynchronously: the POST returns the call receipt,
and the provisioning and settlement receipts appear as its children once
the ledger worker has processed them.
*/
package api
