package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/subaccount-factory/api"
	"github.com/ruteri/subaccount-factory/cryptoutils"
	"github.com/ruteri/subaccount-factory/factory"
	"github.com/ruteri/subaccount-factory/interfaces"
)

// Application error codes returned by the JSON-RPC services. They mirror the
// HTTP classes of StatusCode.
const (
	rpcCodeInvalidRequest = -32000
	rpcCodeUnauthorized   = -32001
	rpcCodeForbidden      = -32003
	rpcCodeNotFound       = -32004
	rpcCodeInternal       = -32603
)

// rpcError attaches an error code and, for executed calls, the receipt.
type rpcError struct {
	err     error
	receipt *interfaces.Receipt
}

func (e *rpcError) Error() string { return e.err.Error() }

func (e *rpcError) Unwrap() error { return e.err }

func (e *rpcError) ErrorCode() int {
	switch StatusCode(e.err) {
	case http.StatusBadRequest:
		return rpcCodeInvalidRequest
	case http.StatusUnauthorized:
		return rpcCodeUnauthorized
	case http.StatusForbidden:
		return rpcCodeForbidden
	case http.StatusNotFound:
		return rpcCodeNotFound
	default:
		return rpcCodeInternal
	}
}

func (e *rpcError) ErrorData() interface{} {
	if e.receipt == nil {
		return nil
	}
	return e.receipt
}

func wrapRPCError(err error, receipt *interfaces.Receipt) error {
	if err == nil {
		return nil
	}
	return &rpcError{err: err, receipt: receipt}
}

// LedgerService is registered under the "ledger" namespace.
type LedgerService struct {
	ledger interfaces.Ledger
	log    *slog.Logger
}

// SendTransaction submits a JSON encoded transaction signed over keccak256(payload).
// Exposed as ledger_sendTransaction.
func (s *LedgerService) SendTransaction(ctx context.Context, payload hexutil.Bytes, signature hexutil.Bytes) (*interfaces.Receipt, error) {
	key, err := cryptoutils.RecoverSigner(payload, signature)
	if err != nil {
		return nil, wrapRPCError(err, nil)
	}

	var tx interfaces.Transaction
	if err := json.Unmarshal(payload, &tx); err != nil {
		return nil, wrapRPCError(&RequestError{StatusCode: http.StatusBadRequest, Err: fmt.Errorf("invalid transaction: %w", err)}, nil)
	}

	receipt, err := s.ledger.Submit(ctx, tx, key)
	if err != nil {
		s.log.Info("Transaction rejected",
			"signer", tx.Signer,
			"method", tx.Method,
			"err", err)
		return nil, wrapRPCError(err, receipt)
	}
	return receipt, nil
}

// GetReceipt is exposed as ledger_getReceipt.
func (s *LedgerService) GetReceipt(ctx context.Context, id string) (*api.ReceiptResponse, error) {
	receipt, children, err := s.ledger.Receipt(ctx, id)
	if err != nil {
		return nil, wrapRPCError(err, nil)
	}
	if children == nil {
		children = []*interfaces.Receipt{}
	}
	return &api.ReceiptResponse{Receipt: receipt, Children: children}, nil
}

// ViewAccount is exposed as ledger_viewAccount.
func (s *LedgerService) ViewAccount(ctx context.Context, id interfaces.AccountID) (*api.AccountResponse, error) {
	if err := id.Validate(); err != nil {
		return nil, wrapRPCError(err, nil)
	}
	view, err := s.ledger.Account(ctx, id)
	if errors.Is(err, interfaces.ErrAccountNotFound) {
		return &api.AccountResponse{AccountView: interfaces.AccountView{ID: id}}, nil
	}
	if err != nil {
		return nil, wrapRPCError(err, nil)
	}
	return &api.AccountResponse{AccountView: view, Exists: true}, nil
}

// FactoryService is registered under the "factory" namespace.
type FactoryService struct {
	ledger  interfaces.Ledger
	factory interfaces.AccountID
}

// GetRegistrationFee is exposed as factory_getRegistrationFee.
func (s *FactoryService) GetRegistrationFee(ctx context.Context) (interfaces.Amount, error) {
	raw, err := s.ledger.View(ctx, s.factory, factory.MethodGetRegistrationFee, nil)
	if err != nil {
		return interfaces.Amount{}, wrapRPCError(err, nil)
	}
	var fee interfaces.Amount
	if err := json.Unmarshal(raw, &fee); err != nil {
		return interfaces.Amount{}, wrapRPCError(err, nil)
	}
	return fee, nil
}

// NewRPCServer creates a JSON-RPC server exposing the ledger and factory services.
func NewRPCServer(l interfaces.Ledger, factoryAccount interfaces.AccountID, log *slog.Logger) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName("ledger", &LedgerService{ledger: l, log: log}); err != nil {
		return nil, fmt.Errorf("registering ledger service: %w", err)
	}
	if err := server.RegisterName("factory", &FactoryService{ledger: l, factory: factoryAccount}); err != nil {
		return nil, fmt.Errorf("registering factory service: %w", err)
	}
	return server, nil
}
