// Package webhook authenticates inbound bank-transfer notifications and
// decodes their payload.
//
// Signed deliveries carry a header of the form
//
//	t=<unix seconds>,v1=<lowercase hex HMAC-SHA512>
//
// where the MAC covers "<t>.<canonical JSON>" and the canonical JSON is the
// payload with object keys sorted at every depth.
package webhook

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingSecret     = errors.New("webhook: signing secret not configured")
	ErrMalformedHeader   = errors.New("webhook: malformed signature header")
	ErrSignatureMismatch = errors.New("webhook: signature mismatch")
	ErrTimestampSkew     = errors.New("webhook: signature timestamp outside allowed skew")
)

var headerPattern = regexp.MustCompile(`^t=(\d+),v1=([0-9a-fA-F]+)$`)

// Signature is a parsed signature header.
type Signature struct {
	Timestamp string
	Digest    string
}

// ParseHeader parses "t=<ts>,v1=<hex>".
func ParseHeader(header string) (Signature, error) {
	m := headerPattern.FindStringSubmatch(strings.TrimSpace(header))
	if m == nil {
		return Signature{}, ErrMalformedHeader
	}
	return Signature{Timestamp: m[1], Digest: m[2]}, nil
}

// ComputeSignature returns the lowercase hex HMAC-SHA512 of
// "<timestamp>.<canonical payload>".
func ComputeSignature(secret []byte, timestamp string, payload []byte) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha512.New, secret)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Sign produces a header value for payload signed at ts.
func Sign(secret []byte, ts time.Time, payload []byte) (string, error) {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	digest, err := ComputeSignature(secret, timestamp, payload)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("t=%s,v1=%s", timestamp, digest), nil
}

// Verifier checks signature headers against a shared secret.
// Build a new Verifier to rotate the secret.
type Verifier struct {
	secret  []byte
	maxSkew time.Duration
	now     func() time.Time
}

// NewVerifier creates a Verifier. maxSkew <= 0 disables the timestamp age check.
func NewVerifier(secret string, maxSkew time.Duration) *Verifier {
	return &Verifier{
		secret:  []byte(secret),
		maxSkew: maxSkew,
		now:     time.Now,
	}
}

// Verify authenticates payload against a signature header.
//
// The digest comparison is plain ordinal string equality, matching the
// provider's reference implementation.
func (v *Verifier) Verify(header string, payload []byte) error {
	if len(v.secret) == 0 {
		return ErrMissingSecret
	}
	sig, err := ParseHeader(header)
	if err != nil {
		return err
	}

	if v.maxSkew > 0 {
		ts, err := strconv.ParseInt(sig.Timestamp, 10, 64)
		if err != nil {
			return ErrMalformedHeader
		}
		skew := v.now().Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			return ErrTimestampSkew
		}
	}

	expected, err := ComputeSignature(v.secret, sig.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if expected != sig.Digest {
		return ErrSignatureMismatch
	}
	return nil
}

// LegacyTokenMatches checks the static shared-secret header used by older
// webhook deliveries. An unconfigured token never matches.
func LegacyTokenMatches(expected, got string) bool {
	return expected != "" && got == expected
}
