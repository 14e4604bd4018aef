// Package identity resolves verified bearer-token claims into the identity
// used for authorization decisions. It is pure: no I/O, no side effects.
package identity

import (
	"errors"
	"strings"
)

// AdminGroup is the group whose membership gates admin-only operations.
const AdminGroup = "admins"

// ErrUnauthenticated indicates the claim set carries no subject.
var ErrUnauthenticated = errors.New("unauthenticated")

// Claims is the verified claim set extracted from a bearer token.
type Claims struct {
	Subject string
	Email   string
	Groups  []string
}

// Identity is what handlers use to authorize a request. Whether the identity
// may perform an admin operation is decided by callers, not here.
type Identity struct {
	SubjectID string
	Email     string
	IsAdmin   bool
}

// Resolve derives an Identity from claims. Fails with ErrUnauthenticated
// when no subject is present.
func Resolve(c Claims) (Identity, error) {
	subject := strings.TrimSpace(c.Subject)
	if subject == "" {
		return Identity{}, ErrUnauthenticated
	}
	ident := Identity{
		SubjectID: subject,
		Email:     strings.TrimSpace(c.Email),
	}
	for _, g := range c.Groups {
		if strings.TrimSpace(g) == AdminGroup {
			ident.IsAdmin = true
			break
		}
	}
	return ident, nil
}
