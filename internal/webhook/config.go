package webhook

import "time"

const (
	DefaultSignatureHeader = "X-Webhook-Signature"
	DefaultLegacyHeader    = "Secure-Token"
)

// Config describes how inbound deliveries are authenticated.
type Config struct {
	// Secret signs "t=..,v1=.." headers. Empty disables signed deliveries.
	Secret string `yaml:"secret"`

	// LegacyToken is the static value expected in LegacyHeader.
	LegacyToken string `yaml:"legacy_token"`

	SignatureHeader string `yaml:"signature_header"`
	LegacyHeader    string `yaml:"legacy_header"`

	// MaxSkew bounds the signature timestamp age. Zero disables the check.
	MaxSkew time.Duration `yaml:"max_skew"`
}

// WithDefaults fills unset header names.
func (c Config) WithDefaults() Config {
	if c.SignatureHeader == "" {
		c.SignatureHeader = DefaultSignatureHeader
	}
	if c.LegacyHeader == "" {
		c.LegacyHeader = DefaultLegacyHeader
	}
	return c
}

// Verifier builds a Verifier for the configured secret.
func (c Config) Verifier() *Verifier {
	return NewVerifier(c.Secret, c.MaxSkew)
}
