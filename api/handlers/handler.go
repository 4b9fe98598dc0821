package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/subaccount-factory/api"
	"github.com/ruteri/subaccount-factory/cryptoutils"
	"github.com/ruteri/subaccount-factory/factory"
	"github.com/ruteri/subaccount-factory/interfaces"
	"github.com/ruteri/subaccount-factory/ledger"
)

// maxBodySize bounds transaction bodies. Program images travel as call args.
const maxBodySize = 4 * 1024 * 1024

// RequestError carries the HTTP status for a failed request.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Handler serves the public REST API of the factory ledger.
type Handler struct {
	ledger  interfaces.Ledger
	factory interfaces.AccountID
	log     *slog.Logger
}

// NewHandler creates a handler for the factory deployed at factoryAccount.
func NewHandler(l interfaces.Ledger, factoryAccount interfaces.AccountID, log *slog.Logger) *Handler {
	return &Handler{
		ledger:  l,
		factory: factoryAccount,
		log:     log,
	}
}

// HandleRegistrationFee returns the factory's current registration fee.
//
// URL format: GET /api/public/registration_fee
func (h *Handler) HandleRegistrationFee(w http.ResponseWriter, r *http.Request) {
	raw, err := h.ledger.View(r.Context(), h.factory, factory.MethodGetRegistrationFee, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var fee interfaces.Amount
	if err := json.Unmarshal(raw, &fee); err != nil {
		h.writeError(w, fmt.Errorf("decoding registration fee: %w", err))
		return
	}

	h.writeJSON(w, http.StatusOK, api.FeeResponse{RegistrationFee: fee})
}

// HandleAccount returns the balance and code hash of an account. Unknown
// accounts are reported with exists=false rather than an error.
//
// URL format: GET /api/public/accounts/{account_id}
func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	id := interfaces.AccountID(chi.URLParam(r, "account_id"))
	if err := id.Validate(); err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.ledger.Account(r.Context(), id)
	if errors.Is(err, interfaces.ErrAccountNotFound) {
		h.writeJSON(w, http.StatusOK, api.AccountResponse{AccountView: interfaces.AccountView{ID: id}})
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.AccountResponse{AccountView: view, Exists: true})
}

// HandleReceipt returns a receipt with its logs and the receipts it spawned.
//
// URL format: GET /api/public/receipts/{receipt_id}
func (h *Handler) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "receipt_id")
	receipt, children, err := h.ledger.Receipt(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if children == nil {
		children = []*interfaces.Receipt{}
	}

	h.writeJSON(w, http.StatusOK, api.ReceiptResponse{Receipt: receipt, Children: children})
}

// HandleTransaction verifies and submits a signed transaction.
//
// URL format: POST /api/tx
// Headers: X-Ledger-Signature: 0x<65 byte signature over keccak256(body)>
//
// A call that fails after authorization still returns its receipt with the
// error status of the failure.
func (h *Handler) HandleTransaction(w http.ResponseWriter, r *http.Request) {
	sigHex := r.Header.Get(api.SignatureHeader)
	if sigHex == "" {
		h.writeError(w, &RequestError{StatusCode: http.StatusUnauthorized, Err: errors.New("missing signature header")})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to read request body: %w", err)})
		return
	}
	if len(body) > maxBodySize {
		h.writeError(w, &RequestError{StatusCode: http.StatusRequestEntityTooLarge, Err: errors.New("request body too large")})
		return
	}

	sig, err := cryptoutils.DecodeSignature(sigHex)
	if err != nil {
		h.writeError(w, err)
		return
	}
	key, err := cryptoutils.RecoverSigner(body, sig)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var tx interfaces.Transaction
	if err := json.Unmarshal(body, &tx); err != nil {
		h.writeError(w, &RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid transaction: %w", err)})
		return
	}

	receipt, err := h.ledger.Submit(r.Context(), tx, key)
	if err != nil {
		h.log.Info("Transaction rejected",
			"signer", tx.Signer,
			"receiver", tx.Receiver,
			"method", tx.Method,
			"key", key.Hex(),
			"err", err)
		if receipt != nil {
			h.writeJSON(w, StatusCode(err), api.TransactionResponse{Receipt: receipt, Error: err.Error()})
			return
		}
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, api.TransactionResponse{Receipt: receipt})
}

// StatusCode maps ledger and factory errors to HTTP status codes.
func StatusCode(err error) int {
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.StatusCode

	case errors.Is(err, cryptoutils.ErrInvalidSignature),
		errors.Is(err, ledger.ErrAccessKeyNotFound):
		return http.StatusUnauthorized

	case errors.Is(err, factory.ErrUnauthorized),
		errors.Is(err, ledger.ErrNotSubAccount):
		return http.StatusForbidden

	case errors.Is(err, interfaces.ErrAccountNotFound),
		errors.Is(err, interfaces.ErrReceiptNotFound),
		errors.Is(err, ledger.ErrNoContract),
		errors.Is(err, ledger.ErrMethodNotFound),
		errors.Is(err, factory.ErrUnknownMethod):
		return http.StatusNotFound

	case errors.Is(err, factory.ErrInvalidPayment),
		errors.Is(err, factory.ErrImageNotConfigured),
		errors.Is(err, factory.ErrInsufficientEscrow),
		errors.Is(err, factory.ErrInvalidSubaccount),
		errors.Is(err, factory.ErrInsufficientGas),
		errors.Is(err, factory.ErrAlreadyInitialized),
		errors.Is(err, factory.ErrNotInitialized),
		errors.Is(err, factory.ErrEmptyImage),
		errors.Is(err, factory.ErrInvalidArguments),
		errors.Is(err, interfaces.ErrInvalidAccountID),
		errors.Is(err, interfaces.ErrInvalidAmount),
		errors.Is(err, interfaces.ErrAmountOverflow),
		errors.Is(err, interfaces.ErrInsufficientBalance),
		errors.Is(err, interfaces.ErrGasExceeded),
		errors.Is(err, ledger.ErrGasLimit),
		errors.Is(err, ledger.ErrInvalidNonce),
		errors.Is(err, ledger.ErrInvalidAction),
		errors.Is(err, ledger.ErrAccountExists),
		errors.Is(err, ledger.ErrReadOnly),
		errors.Is(err, ledger.ErrInsufficientStake):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "err", err)
	}
	h.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}
