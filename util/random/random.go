// Package random generates unguessable tokens and passwords.
package random

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Hex reads n random bytes and returns them hex encoded (2n characters).
func Hex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto/rand failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
