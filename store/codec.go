package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20"
)

// Codec obfuscates persisted values. It keeps casual readers of the backing
// store from seeing plaintext; it does not authenticate and is not meant to
// withstand a determined attacker.
type Codec struct {
	key [chacha20.KeySize]byte
}

// NewCodec derives the stream key from secret.
func NewCodec(secret string) *Codec {
	return &Codec{key: sha256.Sum256([]byte(secret))}
}

// Encode returns base64(nonce || ciphertext).
func (c *Codec) Encode(plain string) (string, error) {
	nonce := make([]byte, chacha20.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("codec nonce: %w", err)
	}
	stream, err := chacha20.NewUnauthenticatedCipher(c.key[:], nonce)
	if err != nil {
		return "", fmt.Errorf("codec cipher: %w", err)
	}
	out := make([]byte, len(nonce)+len(plain))
	copy(out, nonce)
	stream.XORKeyStream(out[len(nonce):], []byte(plain))
	return base64.StdEncoding.EncodeToString(out), nil
}

// Decode reverses Encode. Values that look like JSON (a leading '{' or '[')
// were written before obfuscation existed and are returned unchanged.
func (c *Codec) Decode(stored string) (string, error) {
	if LooksPlain(stored) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(stored))
	if err != nil {
		return "", fmt.Errorf("codec decode: %w", err)
	}
	if len(raw) < chacha20.NonceSize {
		return "", fmt.Errorf("codec decode: value too short")
	}
	stream, err := chacha20.NewUnauthenticatedCipher(c.key[:], raw[:chacha20.NonceSize])
	if err != nil {
		return "", fmt.Errorf("codec cipher: %w", err)
	}
	body := raw[chacha20.NonceSize:]
	plain := make([]byte, len(body))
	stream.XORKeyStream(plain, body)
	return string(plain), nil
}

// LooksPlain is the legacy-plaintext heuristic.
func LooksPlain(v string) bool {
	t := strings.TrimSpace(v)
	return strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[")
}
