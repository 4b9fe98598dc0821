// Package storage provides label-addressed blob storage with pluggable backends.
//
// The factory persists its state as a "state" record plus program images keyed
// "code-<keccak256>". This package stores those blobs across several backends:
//
//   - File system storage for local development and testing
//   - S3-compatible storage for cloud deployments
//   - IPFS storage on the node's mutable file system
//   - Vault storage with optional TLS client certificate authentication
//
// # Storage URI Format
//
// Storage backends are specified using URI format:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported URI schemes:
//
//   - file:///var/lib/factory/
//   - s3://bucket-name/prefix/?region=us-west-2
//   - ipfs://ipfs.example.com:5001/factory?timeout=30s
//   - vault://vault.example.com:8200/secret/factory
//
// # Labels
//
// Labels are short lowercase names validated by interfaces.ValidateLabel. Each
// backend maps a label to one object: a file under the base directory, an S3 key
// under the prefix, an MFS file under the root directory, or a KV v2 secret.
// Put always overwrites.
//
// # Vault Storage
//
// Blobs are stored base64 encoded at {mount}/data/{path}/{label}. Authentication
// uses a TLS client certificate when the factory was configured WithTLSAuth,
// otherwise the VAULT_TOKEN environment variable.
//
// # Multi-Backend Example
//
//	factory := storage.NewStorageBackendFactory(logger)
//	var locations []interfaces.StorageBackendLocation
//	for _, uri := range []string{"file:///var/lib/factory/", "s3://bucket/factory/?region=eu-west-1"} {
//	    loc, err := interfaces.NewStorageBackendLocation(uri)
//	    if err != nil {
//	        return err
//	    }
//	    locations = append(locations, loc)
//	}
//	store, err := factory.CreateMultiBackend(locations)
package storage
