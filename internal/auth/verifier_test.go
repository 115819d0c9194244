package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func signJWT(secret []byte, header, payload string) string {
	h := base64.RawURLEncoding.EncodeToString([]byte(header))
	p := base64.RawURLEncoding.EncodeToString([]byte(payload))
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(h + "." + p))
	return h + "." + p + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyDevMode(t *testing.T) {
	v := &Verifier{Mode: "dev"}
	pr, err := v.Verify("Admin")
	if err != nil {
		t.Fatal(err)
	}
	if pr.Role != "admin" {
		t.Fatalf("role = %q", pr.Role)
	}
	if _, err := v.Verify(""); err == nil {
		t.Fatal("empty dev token must fail")
	}
}

func TestVerifyHMAC(t *testing.T) {
	secret := []byte("s3cret")
	v := &Verifier{Mode: "hmac", HMACSecret: secret, RoleClaim: "role"}

	tok := signJWT(secret, `{"alg":"HS256","typ":"JWT"}`, `{"role":"Admin"}`)
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if pr.Role != "admin" {
		t.Fatalf("role = %q", pr.Role)
	}

	bad := signJWT([]byte("other"), `{"alg":"HS256"}`, `{"role":"admin"}`)
	if _, err := v.Verify(bad); err == nil {
		t.Fatal("wrong secret must fail")
	}
	none := signJWT(secret, `{"alg":"none"}`, `{"role":"admin"}`)
	if _, err := v.Verify(none); err == nil {
		t.Fatal("non-HS256 alg must fail")
	}
	if _, err := v.Verify("not.a"); err == nil {
		t.Fatal("malformed token must fail")
	}
}

func TestVerifyHMACDefaultRole(t *testing.T) {
	secret := []byte("s3cret")
	v := &Verifier{Mode: "hmac", HMACSecret: secret, RoleClaim: "role"}
	tok := signJWT(secret, `{"alg":"HS256"}`, `{}`)
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatal(err)
	}
	if pr.Role != "user" {
		t.Fatalf("role = %q", pr.Role)
	}
}
