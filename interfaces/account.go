package interfaces

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

const (
	// MinAccountIDLen is the shortest valid account id.
	MinAccountIDLen = 2
	// MaxAccountIDLen is the longest valid account id.
	MaxAccountIDLen = 64
)

// ErrInvalidAccountID is returned when an account id does not satisfy the ledger naming rules.
var ErrInvalidAccountID = errors.New("invalid account id")

// AccountID is a human readable ledger account name such as "factory.testnet".
// Accounts form a hierarchy through dot-separated labels.
type AccountID string

// String returns the account id as a string.
func (id AccountID) String() string {
	return string(id)
}

// Validate checks the account id against the ledger naming rules:
//   - length between 2 and 64 characters
//   - only lowercase alphanumerics and the separators '-', '_' and '.'
//   - separators are never adjacent, leading or trailing
func (id AccountID) Validate() error {
	s := string(id)
	if len(s) < MinAccountIDLen || len(s) > MaxAccountIDLen {
		return fmt.Errorf("%w %q: length must be between %d and %d", ErrInvalidAccountID, s, MinAccountIDLen, MaxAccountIDLen)
	}

	lastWasSeparator := true // a leading separator is rejected
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			lastWasSeparator = false
		case c == '-' || c == '_' || c == '.':
			if lastWasSeparator {
				return fmt.Errorf("%w %q: misplaced separator at %d", ErrInvalidAccountID, s, i)
			}
			lastWasSeparator = true
		default:
			return fmt.Errorf("%w %q: disallowed character %q", ErrInvalidAccountID, s, c)
		}
	}
	if lastWasSeparator {
		return fmt.Errorf("%w %q: trailing separator", ErrInvalidAccountID, s)
	}
	return nil
}

// IsValid reports whether the account id satisfies the naming rules.
func (id AccountID) IsValid() bool {
	return id.Validate() == nil
}

// Labels splits the account id into its dot-separated labels.
func (id AccountID) Labels() []string {
	return dns.SplitDomainName(string(id))
}

// Parent returns the account one level up the hierarchy,
// or false for a top-level account.
func (id AccountID) Parent() (AccountID, bool) {
	labels := id.Labels()
	if len(labels) < 2 {
		return "", false
	}
	return AccountID(strings.Join(labels[1:], ".")), true
}

// IsDirectSubAccountOf reports whether id is exactly one label below parent.
func (id AccountID) IsDirectSubAccountOf(parent AccountID) bool {
	p, ok := id.Parent()
	return ok && p == parent
}

// SubAccount derives the account id "<prefix>.<id>". The result is not validated.
func (id AccountID) SubAccount(prefix string) AccountID {
	return AccountID(prefix + "." + string(id))
}
