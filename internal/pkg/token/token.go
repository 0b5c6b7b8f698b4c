// Package token generates random secrets.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewSecret returns n random bytes hex encoded.
func NewSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
