// Package webhooks handles inbound provider webhook deliveries: signature
// verification and trigger record construction.
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader is the header carrying the provider's delivery signature.
const SignatureHeader = "Stripe-Signature"

var (
	ErrMissingHeader    = errors.New("missing signature header")
	ErrInvalidSignature = errors.New("invalid signature")
)

// VerifySignature checks a "t=<unix>,v1=<hex>" signature header against the
// raw body. The signed payload is "<t>.<body>" with HMAC-SHA256 over the
// shared secret. tolerance bounds the age of the signed timestamp.
func VerifySignature(secret string, body []byte, header string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return ErrMissingHeader
	}
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	expected := mac.Sum(nil)
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// SignPayload produces a signature header value for body at ts. Used by the
// tests and dev tooling; the provider does the signing in production.
func SignPayload(secret string, body []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%x", ts.Unix(), mac.Sum(nil))
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var ts int64 = -1
	var sigs [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
			}
			ts = n
		case "v1":
			b, err := hex.DecodeString(v)
			if err != nil {
				continue
			}
			sigs = append(sigs, b)
		}
	}
	if ts < 0 || len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}
	return ts, sigs, nil
}
