package interfaces

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// ContentID is a 32-byte keccak256 hash identifying a blob such as a program image.
type ContentID [32]byte

// ComputeID calculates content ID from data.
func ComputeID(data []byte) ContentID {
	return ContentID(crypto.Keccak256Hash(data))
}

// NewContentIDFromHex parses a 64 character hex string, with or without 0x prefix.
func NewContentIDFromHex(source string) (ContentID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return ContentID{}, errors.New("invalid content ID length: hex string must be 64 characters")
	}

	hashBytes, err := hex.DecodeString(clean)
	if err != nil {
		return ContentID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var id ContentID
	copy(id[:], hashBytes)
	return id, nil
}

// String returns hex representation.
func (id ContentID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether the id is unset.
func (id ContentID) IsZero() bool {
	return id == ContentID{}
}

// Fixed labels of the persisted factory state layout.
const (
	// StateLabel keys the factory state record.
	StateLabel = "state"
	// CodeLabel prefixes stored program images, see CodeLabelFor.
	CodeLabel = "code"
)

// CodeLabelFor is the label of the program image with content id id.
func CodeLabelFor(id ContentID) string {
	return CodeLabel + "-" + id.String()
}

var labelRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,127}$`)

// ValidateLabel checks that a blob label is safe to use as a path component or object key.
func ValidateLabel(label string) error {
	if !labelRegex.MatchString(label) {
		return fmt.Errorf("invalid blob label %q", label)
	}
	return nil
}

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string with validation.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "file", "s3", "ipfs", "vault":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

var (
	// ErrContentNotFound is returned when requested content cannot be found in the storage backend.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a storage backend is not accessible.
	// This could be due to network issues, authentication failures, or service outages.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned when a storage location URI is malformed or unsupported.
	// URIs must follow the format: [scheme]://[auth@]host[:port][/path][?params]
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// BlobStore persists opaque byte blobs under fixed labels.
type BlobStore interface {
	// Get retrieves the blob stored under label. Returns ErrContentNotFound if absent.
	Get(ctx context.Context, label string) ([]byte, error)

	// Put overwrites the blob stored under label.
	Put(ctx context.Context, label string, data []byte) error

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// BlobStoreFactory creates blob stores.
type BlobStoreFactory interface {
	// BlobStoreFor creates a backend from a location.
	// Supports file://, s3://, ipfs://, vault://
	BlobStoreFor(location StorageBackendLocation) (BlobStore, error)

	// CreateMultiBackend creates an aggregated store writing to every backend.
	CreateMultiBackend(locations []StorageBackendLocation) (BlobStore, error)

	// WithTLSAuth configures TLS client authentication for backends that need it.
	WithTLSAuth(func() (tls.Certificate, error)) BlobStoreFactory
}
