package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidToken = errors.New("invalid token")

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleKitchen Role = "kitchen"
	RoleCounter Role = "counter"
)

// Claims is the role set carried by an authenticated session. Roles are
// boolean claims; absence means denied.
type Claims struct {
	Subject string
	Roles   map[Role]bool
}

func (c Claims) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if c.Roles[r] {
			return true
		}
	}
	return false
}

// Verifier resolves a bearer token to claims. Production deployments
// plug in their identity provider; demo mode uses the static table.
type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// StaticVerifier maps fixed tokens to claims. It backs demo mode and
// tests.
type StaticVerifier map[string]Claims

func (v StaticVerifier) Verify(_ context.Context, token string) (Claims, error) {
	c, ok := v[token]
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// ParseStaticTokens parses the STAFF_TOKENS format:
// "token=role|role,token=role". Unknown role names are rejected so a
// typo cannot silently grant nothing.
func ParseStaticTokens(s string) (StaticVerifier, error) {
	v := StaticVerifier{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, roleList, ok := strings.Cut(entry, "=")
		if !ok || token == "" {
			return nil, fmt.Errorf("malformed token entry %q", entry)
		}
		claims := Claims{Subject: "staff:" + token, Roles: map[Role]bool{}}
		for _, name := range strings.Split(roleList, "|") {
			switch Role(strings.TrimSpace(name)) {
			case RoleAdmin:
				claims.Roles[RoleAdmin] = true
			case RoleKitchen:
				claims.Roles[RoleKitchen] = true
			case RoleCounter:
				claims.Roles[RoleCounter] = true
			default:
				return nil, fmt.Errorf("unknown role %q in %q", name, entry)
			}
		}
		v[token] = claims
	}
	return v, nil
}
