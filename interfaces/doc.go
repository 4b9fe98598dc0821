// Package interfaces defines the core interfaces and types for the deployment factory.
//
// This package provides the contracts between different components of the system
// without including implementation details:
//
//   - Clear separation between the factory contract and the ledger hosting it
//   - Multiple implementations of the same interface (blob stores, receipt stores)
//   - Better testability through mock implementations
//
// # Ledger Types
//
//   - AccountID: hierarchical account name, validated against the ledger naming rules
//   - Amount: 128-bit monetary quantity whose arithmetic fails closed on overflow
//   - Gas, TGas: execution-fee budget units
//   - TenantID: caller-supplied tenant identifier
//
// # Runtime Interfaces
//
//   - Env: execution context handed to a contract entry point
//   - Contract: natively hosted program addressed by method name
//   - ComposedAction: ordered all-or-nothing actions plus an optional continuation
//   - Ledger: transaction submission and queries used by the API layer
//   - ReceiptStore: durable receipts for re-querying asynchronous outcomes
//
// # Storage Interfaces
//
//   - BlobStore: label-addressed blob storage for the persisted state layout
//   - BlobStoreFactory: creates blob stores from location URIs
//
// Components should depend on interfaces rather than concrete implementations:
//
//	func NewHandler(ledger interfaces.Ledger, factoryAccount interfaces.AccountID, log *slog.Logger) *Handler {
//	    // ...
//	}
package interfaces
