// Package auth verifies bearer tokens for the admin API surface.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// Verifier validates admin tokens. Modes: dev (token is the role string,
// unverified) and hmac (HS256 JWT with a role claim).
type Verifier struct {
	Mode       string
	HMACSecret []byte
	RoleClaim  string
}

type Principal struct {
	Role string
}

func NewVerifierFromEnv() *Verifier {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" {
		mode = "dev"
	}
	roleClaim := os.Getenv("AUTH_ROLE_CLAIM")
	if roleClaim == "" {
		roleClaim = "role"
	}
	return &Verifier{
		Mode:       mode,
		HMACSecret: []byte(os.Getenv("AUTH_HMAC_SECRET")),
		RoleClaim:  roleClaim,
	}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		if token == "" {
			return Principal{}, errors.New("empty dev token")
		}
		return Principal{Role: strings.ToLower(token)}, nil
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return Principal{}, err
	}
	var hdr map[string]any
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, err
	}
	if alg, _ := hdr["alg"].(string); alg != "HS256" {
		return Principal{}, errors.New("unsupported alg")
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Principal{}, errors.New("bad signature")
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	role, _ := claims[v.RoleClaim].(string)
	if role == "" {
		role = "user"
	}
	return Principal{Role: strings.ToLower(role)}, nil
}
