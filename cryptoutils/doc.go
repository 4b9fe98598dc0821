// Package cryptoutils provides the key handling used by the factory ledger.
//
// Transactions submitted over HTTP are authenticated with a recoverable
// secp256k1 signature over the keccak256 digest of the raw request body.
// The recovered address must be a registered access key of the signer
// account. Signatures travel hex encoded in the X-Ledger-Signature header.
//
//	sig, _ := cryptoutils.SignPayload(body, key)
//	req.Header.Set("X-Ledger-Signature", cryptoutils.EncodeSignature(sig))
//
// The package also carries the TLS helpers used for Vault client
// certificate authentication and self-signed development servers.
package cryptoutils
