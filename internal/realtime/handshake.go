package realtime

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSecretMissing is returned when no handshake secret is configured.
	ErrSecretMissing = errors.New("handshake secret not configured")
	// ErrHandshakeIncomplete is returned when user id or token is blank.
	ErrHandshakeIncomplete = errors.New("missing user id or token")
	// ErrTokenFormat is returned for tokens that do not parse.
	ErrTokenFormat = errors.New("invalid token format")
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature is returned for signature mismatches.
	ErrTokenSignature = errors.New("invalid token signature")
)

// HandshakeToken is a parsed connection token: issued-at and expires-at in
// epoch milliseconds plus a hex-encoded HMAC-SHA256 signature.
type HandshakeToken struct {
	IssuedAt  int64
	ExpiresAt int64
	Signature string
}

// HandshakeResult carries the timestamps of an accepted token.
type HandshakeResult struct {
	IssuedAt  int64
	ExpiresAt int64
}

// ParseHandshakeToken splits a token of the form
// "{issuedAtMillis}.{expiresAtMillis}.{hexSignature}". It returns nil unless
// the token has exactly three non-empty dot-separated fields and both
// timestamps parse as integers.
func ParseHandshakeToken(token string) *HandshakeToken {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil
	}
	for _, p := range parts {
		if p == "" {
			return nil
		}
	}
	issuedAt, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil
	}
	expiresAt, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	return &HandshakeToken{IssuedAt: issuedAt, ExpiresAt: expiresAt, Signature: parts[2]}
}

// SignHandshake computes the hex HMAC-SHA256 signature the web application
// embeds in connection tokens: the digest of "userID:issuedAt:expiresAt"
// keyed by the shared secret.
func SignHandshake(secret, userID string, issuedAt, expiresAt int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%d:%d", userID, issuedAt, expiresAt)
	return hex.EncodeToString(mac.Sum(nil))
}

// MintHandshakeToken builds a complete token string for the given validity
// window. Used by tests and smoke tooling; production tokens are minted by
// the web application with the same algorithm.
func MintHandshakeToken(secret, userID string, issuedAt, expiresAt int64) string {
	return fmt.Sprintf("%d.%d.%s", issuedAt, expiresAt, SignHandshake(secret, userID, issuedAt, expiresAt))
}

// VerifyHandshake validates a connection attempt. It must be called before
// any session state is created; a non-nil error means the connection is
// refused with no side effects.
func VerifyHandshake(secret, userID, token string, now time.Time) (HandshakeResult, error) {
	if secret == "" {
		return HandshakeResult{}, ErrSecretMissing
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(token) == "" {
		return HandshakeResult{}, ErrHandshakeIncomplete
	}
	parsed := ParseHandshakeToken(token)
	if parsed == nil {
		return HandshakeResult{}, ErrTokenFormat
	}
	if parsed.ExpiresAt < now.UnixMilli() {
		return HandshakeResult{}, ErrTokenExpired
	}
	expected := SignHandshake(secret, userID, parsed.IssuedAt, parsed.ExpiresAt)
	if !signatureEqual(parsed.Signature, expected) {
		return HandshakeResult{}, ErrTokenSignature
	}
	return HandshakeResult{IssuedAt: parsed.IssuedAt, ExpiresAt: parsed.ExpiresAt}, nil
}

// signatureEqual compares two hex signatures in constant time. Decoding
// failures count as a mismatch.
func signatureEqual(got, want string) bool {
	gotBytes, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return false
	}
	return hmac.Equal(gotBytes, wantBytes)
}
