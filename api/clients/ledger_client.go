package clients

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ruteri/subaccount-factory/api"
	"github.com/ruteri/subaccount-factory/cryptoutils"
	"github.com/ruteri/subaccount-factory/factory"
	"github.com/ruteri/subaccount-factory/interfaces"
	"go.uber.org/atomic"
)

// LedgerClient provides methods for interacting with the ledger REST API.
type LedgerClient struct {
	baseURL    string
	signer     interfaces.AccountID
	privateKey *ecdsa.PrivateKey
	httpClient *http.Client

	// Nonce returns the nonce of the next transaction.
	Nonce func() uint64
}

// NewLedgerClient creates a client that signs transactions as signer.
// privateKey may be nil for read-only use.
func NewLedgerClient(baseURL string, signer interfaces.AccountID, privateKey *ecdsa.PrivateKey, timeout ...time.Duration) *LedgerClient {
	clientTimeout := 30 * time.Second
	if len(timeout) > 0 {
		clientTimeout = timeout[0]
	}

	return &LedgerClient{
		baseURL:    baseURL,
		signer:     signer,
		privateKey: privateKey,
		httpClient: &http.Client{
			Timeout: clientTimeout,
		},
		Nonce: timeNonce(),
	}
}

// timeNonce returns nonces from the wall clock in nanoseconds, bumped past
// the previous value when the clock has not advanced.
func timeNonce() func() uint64 {
	var last atomic.Uint64
	return func() uint64 {
		for {
			prev := last.Load()
			next := uint64(time.Now().UnixNano())
			if next <= prev {
				next = prev + 1
			}
			if last.CompareAndSwap(prev, next) {
				return next
			}
		}
	}
}

// ResponseError is returned for non-2xx responses.
type ResponseError struct {
	StatusCode int
	Message    string

	// Receipt is set when a signed call executed and failed.
	Receipt *interfaces.Receipt
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("request failed with code %d: %s", e.StatusCode, e.Message)
}

// RegistrationFee queries the factory's registration fee.
func (c *LedgerClient) RegistrationFee(ctx context.Context) (interfaces.Amount, error) {
	var result api.FeeResponse
	if err := c.get(ctx, "/api/public/registration_fee", &result); err != nil {
		return interfaces.Amount{}, err
	}
	return result.RegistrationFee, nil
}

// Account queries the public state of an account.
func (c *LedgerClient) Account(ctx context.Context, id interfaces.AccountID) (*api.AccountResponse, error) {
	var result api.AccountResponse
	if err := c.get(ctx, "/api/public/accounts/"+url.PathEscape(id.String()), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Receipt fetches a receipt and the receipts it spawned.
func (c *LedgerClient) Receipt(ctx context.Context, id string) (*api.ReceiptResponse, error) {
	var result api.ReceiptResponse
	if err := c.get(ctx, "/api/public/receipts/"+url.PathEscape(id), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Call signs and submits a function call on receiver.
func (c *LedgerClient) Call(ctx context.Context, receiver interfaces.AccountID, method string, args []byte, deposit interfaces.Amount, gas interfaces.Gas) (*api.TransactionResponse, error) {
	tx := interfaces.Transaction{
		Signer:   c.signer,
		Receiver: receiver,
		Method:   method,
		Args:     args,
		Deposit:  deposit,
		Gas:      gas,
		Nonce:    c.Nonce(),
	}
	return c.Submit(ctx, tx)
}

// Register pays fee to the factory to provision the tenant's sub-account.
func (c *LedgerClient) Register(ctx context.Context, factoryAccount interfaces.AccountID, tenantID interfaces.TenantID, referral interfaces.AccountID, fee interfaces.Amount) (*api.TransactionResponse, error) {
	args, err := json.Marshal(factory.RegisterArgs{TenantID: tenantID, ReferralAddress: referral})
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, factoryAccount, factory.MethodRegister, args, fee, 0)
}

// SetRegistrationFee updates the fee. The signer must be the administrator.
func (c *LedgerClient) SetRegistrationFee(ctx context.Context, factoryAccount interfaces.AccountID, fee interfaces.Amount) (*api.TransactionResponse, error) {
	args, err := json.Marshal(factory.SetFeeArgs{RegistrationFee: fee})
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, factoryAccount, factory.MethodSetRegistrationFee, args, interfaces.Amount{}, 0)
}

// SetProgramImage uploads a new image. The signer must be the factory account.
func (c *LedgerClient) SetProgramImage(ctx context.Context, factoryAccount interfaces.AccountID, image []byte) (*api.TransactionResponse, error) {
	return c.Call(ctx, factoryAccount, factory.MethodSetProgramImage, image, interfaces.Amount{}, 0)
}

// Submit signs and posts a transaction.
func (c *LedgerClient) Submit(ctx context.Context, tx interfaces.Transaction) (*api.TransactionResponse, error) {
	if c.privateKey == nil {
		return nil, fmt.Errorf("client has no signing key")
	}

	body, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}
	sig, err := cryptoutils.SignPayload(body, c.privateKey)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tx", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(api.SignatureHeader, cryptoutils.EncodeSignature(sig))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transaction request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction response: %w", err)
	}

	var result api.TransactionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ResponseError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		msg := result.Error
		if msg == "" {
			msg = string(respBody)
		}
		return &result, &ResponseError{StatusCode: resp.StatusCode, Message: msg, Receipt: result.Receipt}
	}
	return &result, nil
}

// WaitForSettlement polls a registration receipt until its settlement
// continuation has resolved, and returns the final receipt tree.
func (c *LedgerClient) WaitForSettlement(ctx context.Context, receiptID string, interval time.Duration) (*api.ReceiptResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, err := c.Receipt(ctx, receiptID)
		if err != nil {
			return nil, err
		}
		if settled, err := c.settled(ctx, resp); err != nil {
			return nil, err
		} else if settled {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// settled reports whether no receipt below resp is still pending. Receipts
// spawned by a unit of work are recorded when that unit finishes, so a tree
// without pending receipts is final.
func (c *LedgerClient) settled(ctx context.Context, resp *api.ReceiptResponse) (bool, error) {
	if resp.Receipt.Status == interfaces.ReceiptPending {
		return false, nil
	}
	for _, child := range resp.Children {
		if child.Status == interfaces.ReceiptPending {
			return false, nil
		}
		sub, err := c.Receipt(ctx, child.ID)
		if err != nil {
			return false, err
		}
		if ok, err := c.settled(ctx, sub); err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (c *LedgerClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errResp api.ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return &ResponseError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &ResponseError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
