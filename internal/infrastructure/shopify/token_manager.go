package shopify

import (
	"fmt"

	"taxvault-webhook-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Cipher is the symmetric encryption used for tokens at rest
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// TokenManager encrypts Shopify access tokens for storage and decrypts them right
// before a platform call
type TokenManager struct {
	cipher Cipher
	logger zerolog.Logger
}

var _ ports.TokenCipher = (*TokenManager)(nil)

// NewTokenManager creates a new token manager
func NewTokenManager(cipher Cipher, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		cipher: cipher,
		logger: logger,
	}
}

// EncryptToken encrypts an access token before storage
func (tm *TokenManager) EncryptToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	return tm.cipher.Encrypt(token)
}

// DecryptToken decrypts an access token after retrieval
func (tm *TokenManager) DecryptToken(encryptedToken string) (string, error) {
	if encryptedToken == "" {
		return "", fmt.Errorf("encrypted token cannot be empty")
	}
	token, err := tm.cipher.Decrypt(encryptedToken)
	if err != nil {
		tm.logger.Error().Err(err).Msg("Failed to decrypt access token")
		return "", err
	}
	return token, nil
}
