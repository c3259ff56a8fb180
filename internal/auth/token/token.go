// Package token mints opaque secrets and signed access tokens.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TypeAccess is the "type" claim of access tokens; the auth middleware
// rejects any other value.
const TypeAccess = "access"

// GenerateRandomToken returns size random bytes, URL-safe encoded.
func GenerateRandomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSHA256 is the form in which opaque tokens are persisted.
func HashSHA256(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SignAccess issues an HS256 access token for userID valid until now+ttl.
func SignAccess(userID uuid.UUID, roles []string, now time.Time, ttl time.Duration, secret string) (string, time.Time, error) {
	expiresAt := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":   userID.String(),
		"type":  TypeAccess,
		"roles": roles,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
