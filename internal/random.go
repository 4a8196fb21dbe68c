package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// RefreshSecretSize is the default number of random bytes in a refresh secret.
	RefreshSecretSize = 48

	minRefreshSecretHex = 32
	maxRefreshSecretHex = 256
	lockNonceSize       = 16
)

// ErrMalformedRefresh is returned by DecodeRefreshToken.
var ErrMalformedRefresh = errors.New("malformed refresh token")

// NewRowID returns a monotonic-in-time ULID used for refresh rows and log entries.
func NewRowID(now time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewRefreshSecret returns size random bytes, hex encoded.
func NewRefreshSecret(size int) (string, error) {
	if size <= 0 {
		size = RefreshSecretSize
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashRefreshSecret returns the hex SHA-256 digest persisted in place of the secret.
func HashRefreshSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// RefreshSecretMatches compares the digest of secret with storedHash in constant time.
func RefreshSecretMatches(secret, storedHash string) bool {
	computed := HashRefreshSecret(secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

func EncodeRefreshToken(rowID, secret string) string {
	return rowID + "." + secret
}

// DecodeRefreshToken splits "<rowId>.<secret>". It performs no I/O.
func DecodeRefreshToken(token string) (string, string, error) {
	rowID, secret, ok := strings.Cut(token, ".")
	if !ok || rowID == "" || secret == "" {
		return "", "", ErrMalformedRefresh
	}
	if _, err := ulid.ParseStrict(rowID); err != nil {
		return "", "", ErrMalformedRefresh
	}
	if len(secret) < minRefreshSecretHex || len(secret) > maxRefreshSecretHex {
		return "", "", ErrMalformedRefresh
	}
	if _, err := hex.DecodeString(secret); err != nil {
		return "", "", ErrMalformedRefresh
	}
	return rowID, secret, nil
}

// NewLockNonce returns an opaque owner value for distributed locks.
func NewLockNonce() (string, error) {
	buf := make([]byte, lockNonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
