package util

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	sessionSecretValue = getEnv("SESSIONSECRET", "")
	sessionSecretByte  = []byte(sessionSecretValue)
	sessionMutex       sync.RWMutex
)

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}

// SetSessionSecret updates the secret used to sign session cookies. It is
// thread-safe and intended for startup wiring and tests.
func SetSessionSecret(secret string) {
	sessionMutex.Lock()
	defer sessionMutex.Unlock()
	sessionSecretValue = secret
	sessionSecretByte = []byte(secret)
}

// GetSessionSecretByte returns the session signing secret as bytes.
func GetSessionSecretByte() []byte {
	sessionMutex.RLock()
	defer sessionMutex.RUnlock()
	return sessionSecretByte
}

// SignSessionCookie wraps an opaque session ID in a signed token so a
// tampered cookie never reaches the session store.
func SignSessionCookie(sessionID string, expires time.Time) (string, error) {
	secret := GetSessionSecretByte()
	if len(secret) == 0 {
		return "", fmt.Errorf("session secret is not configured")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": sessionID,
		"exp": expires.Unix(),
	})
	return token.SignedString(secret)
}

// ParseSessionCookie validates a signed session cookie and returns the
// embedded session ID.
func ParseSessionCookie(value string) (string, error) {
	token, err := jwt.Parse(value, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return GetSessionSecretByte(), nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid session cookie")
	}
	sid, ok := claims["sid"].(string)
	if !ok || sid == "" {
		return "", fmt.Errorf("session cookie missing sid claim")
	}
	return sid, nil
}
