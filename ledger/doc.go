// Package ledger provides an in-process account ledger that hosts the deployment factory.
//
// The Runtime keeps named accounts with balances, access keys and either a natively
// hosted contract or a deployed program image. It executes:
//
//   - Transactions: synchronous calls signed by an access key of the signer account
//   - Composed actions: ordered create/transfer/deploy/call steps emitted by a contract,
//     applied all-or-nothing by a background worker
//   - Continuations: completion handlers invoked with the outcome of a composed action
//
// Every unit of work produces a Receipt stored in an interfaces.ReceiptStore, linked to
// the receipt that spawned it, so asynchronous outcomes can be re-queried.
//
// Usage:
//
//	rt := ledger.New(logger, ledger.WithReceiptStore(store))
//	rt.CreateAccount("factory.near", balance, key)
//	rt.DeployNative("factory.near", contract)
//	rt.Start(ctx)
//	defer rt.Stop()
//
//	receipt, err := rt.Submit(ctx, tx, key)
package ledger
