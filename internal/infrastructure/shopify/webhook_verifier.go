package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"taxvault-webhook-layer/internal/domain"
)

// Verify reports whether signature is the base64 HMAC-SHA256 of rawBody under secret.
// rawBody must be the exact bytes received; an empty body is valid input.
func Verify(rawBody []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if len(expected) != len(signature) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign returns the signature Shopify would send for rawBody
func Sign(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// WebhookVerifier verifies inbound webhooks against the app's shared secret
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for secret
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Verify returns domain.ErrMissingSignature or domain.ErrInvalidSignature on failure
func (v *WebhookVerifier) Verify(payload []byte, hmacHeader string) error {
	if hmacHeader == "" {
		return domain.ErrMissingSignature
	}
	if !Verify(payload, hmacHeader, v.secret) {
		return domain.ErrInvalidSignature
	}
	return nil
}
