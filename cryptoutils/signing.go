package cryptoutils

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of a recoverable secp256k1 signature [R || S || V].
const SignatureLength = crypto.SignatureLength

var (
	// ErrInvalidSignature is returned when a signature is malformed or does not recover.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidKey is returned when a private key cannot be parsed.
	ErrInvalidKey = errors.New("invalid private key")
)

// PayloadHash is the keccak256 digest signed over a transaction body.
func PayloadHash(payload []byte) common.Hash {
	return crypto.Keccak256Hash(payload)
}

// SignPayload signs the keccak256 digest of payload with key.
func SignPayload(payload []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}
	sig, err := crypto.Sign(PayloadHash(payload).Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("signing payload: %w", err)
	}
	return sig, nil
}

// RecoverSigner returns the address whose key produced sig over payload.
// V may be 0/1 or 27/28.
func RecoverSigner(payload []byte, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pubkey, err := crypto.SigToPub(PayloadHash(payload).Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}

// EncodeSignature renders a signature for the X-Ledger-Signature header.
func EncodeSignature(sig []byte) string {
	return "0x" + hex.EncodeToString(sig)
}

// DecodeSignature parses a hex signature with or without the 0x prefix.
func DecodeSignature(s string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureLength, len(sig))
	}
	return sig, nil
}

// ParsePrivateKey parses a hex encoded secp256k1 private key.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}

// LoadPrivateKey reads a hex encoded private key from path.
func LoadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return ParsePrivateKey(string(data))
}

// GenerateKey creates a fresh secp256k1 key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// KeyAddress is the access-key address of key.
func KeyAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// EncodePrivateKey renders key as hex without prefix.
func EncodePrivateKey(key *ecdsa.PrivateKey) string {
	return hex.EncodeToString(crypto.FromECDSA(key))
}
