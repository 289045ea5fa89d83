package idgen

import (
	"crypto/rand"
	"fmt"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateSecureID returns an opaque identifier of the form "<prefix>_<random>"
// where the random part is drawn from crypto/rand over [0-9a-z].
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("idgen: length must be positive, got %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = idAlphabet[int(b)%len(idAlphabet)]
	}

	return prefix + "_" + string(buf), nil
}

// ValidateIDFormat reports whether id looks like an identifier produced by
// GenerateSecureID with the given prefix.
func ValidateIDFormat(id, prefix string) bool {
	lead := prefix + "_"
	if len(id) <= len(lead) || id[:len(lead)] != lead {
		return false
	}
	for _, r := range id[len(lead):] {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// NewMessageID returns a fresh public message identifier.
func NewMessageID() (string, error) {
	return GenerateSecureID("msg", 16)
}
