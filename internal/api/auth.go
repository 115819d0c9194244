package api

import (
	"net/http"
	"strings"
)

type Principal struct {
	Role string // admin, user
}

// getPrincipal extracts the caller's role from a bearer token or, for dev
// setups, the X-Role header.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Role: pr.Role}
		}
	}
	role := r.Header.Get("X-Role")
	if role == "" {
		role = "user"
	}
	return Principal{Role: strings.ToLower(role)}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }
