// Package paycode embeds a (creditor, debtor, period) token in bank-transfer
// descriptions and recovers it from whatever text the bank hands back.
//
// Wire format:
//
//	{prefix}{base64url(base64url(int32le(creditor)) "-" debtor "-" year "-" month)}{suffix}
//
// Both base64url encodings are unpadded. The suffix is optional and left
// unencoded. Decoding locates the payload by prefix/suffix position only and
// keeps just the base64url alphabet, so spaces, punctuation and other noise
// injected by intermediary banks are ignored.
package paycode

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPrefix is used when Config.Prefix is empty.
const DefaultPrefix = "ThanToan"

const (
	minYear = 2000
	maxYear = 2100

	// encodedCreditorLen is the length of base64url(4 bytes) without padding.
	encodedCreditorLen = 6
)

// Strict decoding rejects payloads whose trailing bits are not zero, which is
// how most truncated tokens show up.
var enc = base64.RawURLEncoding.Strict()

// ErrAmbiguousSuffix is returned by Config.Validate for a suffix made only of
// base64url characters, which may occur inside an encoded payload.
var ErrAmbiguousSuffix = errors.New("paycode: suffix must contain a character outside the base64url alphabet")

// Config holds the literal markers around the encoded payload.
// A suffix must contain a character outside the base64url alphabet
// (e.g. ".END") so that it can never occur inside the payload.
type Config struct {
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
}

// Validate reports a suffix that could be found inside a payload.
func (c Config) Validate() error {
	suffix := strings.TrimSpace(c.Suffix)
	if suffix != "" && filterAlphabet(suffix) == suffix {
		return fmt.Errorf("%w: %q", ErrAmbiguousSuffix, suffix)
	}
	return nil
}

// Token identifies who pays whom for which period.
type Token struct {
	CreditorID int64
	DebtorID   int64
	Year       int
	Month      int
}

func (t Token) String() string {
	return fmt.Sprintf("creditor=%d debtor=%d period=%04d-%02d", t.CreditorID, t.DebtorID, t.Year, t.Month)
}

// Codec encodes and decodes payment descriptions.
// A Codec is immutable; build a new one to change the markers.
type Codec struct {
	prefix string
	suffix string
}

// New creates a Codec. An empty prefix falls back to DefaultPrefix.
// Run cfg.Validate first: with an ambiguous suffix some tokens do not round-trip.
func New(cfg Config) *Codec {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Codec{prefix: prefix, suffix: strings.TrimSpace(cfg.Suffix)}
}

// Prefix returns the configured prefix.
func (c *Codec) Prefix() string {
	return c.prefix
}

// Encode builds the description text for a token.
// The creditor id is truncated to 32 bits, as the wire format requires.
func (c *Codec) Encode(t Token) string {
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], uint32(int32(t.CreditorID)))

	data := fmt.Sprintf("%s-%d-%d-%d", enc.EncodeToString(raw[:]), t.DebtorID, t.Year, t.Month)
	return c.prefix + enc.EncodeToString([]byte(data)) + c.suffix
}

// Decode extracts a token from free text. It never panics; ok is false when
// the text carries no valid token, so callers can fall back to other matching.
func (c *Codec) Decode(text string) (t Token, ok bool) {
	start := indexFold(text, c.prefix)
	if start < 0 {
		return Token{}, false
	}
	region := text[start+len(c.prefix):]
	if c.suffix != "" {
		if end := indexFold(region, c.suffix); end >= 0 {
			region = region[:end]
		}
	}

	payload := filterAlphabet(region)
	if payload == "" {
		return Token{}, false
	}
	decoded, err := enc.DecodeString(payload)
	if err != nil || len(decoded) == 0 {
		return Token{}, false
	}

	creditorPart, rest, ok := splitPayload(string(decoded))
	if !ok {
		return Token{}, false
	}

	creditorID, ok := decodeCreditor(creditorPart)
	if !ok {
		return Token{}, false
	}
	debtorID, ok := leadingInt(rest[0])
	if !ok {
		return Token{}, false
	}
	year, ok := leadingInt(rest[1])
	if !ok || year < minYear || year > maxYear {
		return Token{}, false
	}
	month, ok := leadingInt(rest[2])
	if !ok || month < 1 || month > 12 {
		return Token{}, false
	}

	return Token{
		CreditorID: creditorID,
		DebtorID:   debtorID,
		Year:       int(year),
		Month:      int(month),
	}, true
}

// splitPayload separates the encoded creditor from the debtor/year/month segments.
// The encoded creditor is fixed width and may itself contain '-', so the
// fixed layout is tried before a plain split.
func splitPayload(data string) (string, []string, bool) {
	if len(data) > encodedCreditorLen && data[encodedCreditorLen] == '-' {
		rest := strings.Split(data[encodedCreditorLen+1:], "-")
		if len(rest) >= 3 {
			return data[:encodedCreditorLen], rest, true
		}
	}
	parts := strings.Split(data, "-")
	if len(parts) < 4 {
		return "", nil, false
	}
	return parts[0], parts[1:], true
}

func decodeCreditor(s string) (int64, bool) {
	raw, err := enc.DecodeString(s)
	if err != nil || len(raw) != 4 {
		return 0, false
	}
	return int64(int32(binary.LittleEndian.Uint32(raw))), true
}

// leadingInt parses the leading run of ASCII digits, ignoring anything after it.
func leadingInt(s string) (int64, bool) {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(s[:n], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// filterAlphabet keeps only base64url characters.
func filterAlphabet(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// indexFold is strings.Index with ASCII case folding. Byte offsets refer to s.
func indexFold(s, substr string) int {
	if substr == "" {
		return 0
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(substr)], substr) {
			return i
		}
	}
	return -1
}
