/*
Package clients provides a client library for the factory ledger REST API.

LedgerClient signs every transaction with the caller's secp256k1 key and
sends it with the X-Ledger-Signature header. Nonces default to the current
time in nanoseconds, which keeps them increasing for a single key without
querying the ledger.

	key, _ := cryptoutils.LoadPrivateKey("alice.key")
	client := clients.NewLedgerClient("http://localhost:8080", "alice.near", key)

	fee, _ := client.RegistrationFee(ctx)
	resp, err := client.Register(ctx, "factory.near", 7, "referrer.near", fee)
	receipt, _ := client.WaitForSettlement(ctx, resp.Receipt.ID, time.Second)
*/
package clients
