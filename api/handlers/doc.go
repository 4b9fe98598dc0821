/*
Package handlers implements request processing for the factory ledger API.

Handler serves the REST endpoints: registration fee and account queries,
receipt lookup and signed transaction submission. NewRPCServer exposes the
same operations as go-ethereum JSON-RPC services under the "ledger" and
"factory" namespaces.

Errors are mapped to HTTP status codes by StatusCode:

  - invalid or unknown signature keys: 401
  - administrator-only or self-only entry points: 403
  - unknown accounts, receipts and methods: 404
  - validation failures (payment, gas, arguments, nonce): 400
  - everything else: 500

A call that fails after authorization still produced a receipt; it is
returned alongside the error so clients can inspect the logs.
*/
package handlers
