package api

import (
	"github.com/ruteri/subaccount-factory/interfaces"
)

// SignatureHeader carries the hex secp256k1 signature over keccak256 of the
// transaction body.
const SignatureHeader = "X-Ledger-Signature"

// FeeResponse is returned by the registration fee query.
type FeeResponse struct {
	RegistrationFee interfaces.Amount `json:"registration_fee"`
}

// AccountResponse is the public state of a ledger account.
type AccountResponse struct {
	interfaces.AccountView
	Exists bool `json:"exists"`
}

// ReceiptResponse is a receipt together with the receipts it spawned.
type ReceiptResponse struct {
	Receipt  *interfaces.Receipt   `json:"receipt"`
	Children []*interfaces.Receipt `json:"children"`
}

// TransactionResponse is returned for a submitted transaction. Receipt is set
// whenever the transaction executed, including failed calls.
type TransactionResponse struct {
	Receipt *interfaces.Receipt `json:"receipt,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx response without a receipt.
type ErrorResponse struct {
	Error string `json:"error"`
}
