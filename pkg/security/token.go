package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// RandomToken returns a URL-safe token carrying n random bytes.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// RandomString draws length characters uniformly from alphabet.
func RandomString(alphabet string, length int) (string, error) {
	if alphabet == "" || length <= 0 {
		return "", fmt.Errorf("invalid alphabet or length")
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random index: %w", err)
		}
		out[i] = alphabet[n.Int64()]
	}
	return string(out), nil
}
