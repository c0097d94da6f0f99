package auth

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"
)

const (
	// OpaqueTokenLength is the number of random bytes behind each opaque
	// token value; the hex encoding doubles it on the wire.
	OpaqueTokenLength = 32

	// ResetTokenTTL bounds password reset tokens. The portal mails these,
	// so the window is deliberately wider than impersonation.
	ResetTokenTTL = time.Hour

	// ImpersonationTokenTTL bounds admin "open as user" tokens. They are
	// redeemed by the admin's own browser within seconds, so the window
	// stays short.
	ImpersonationTokenTTL = 5 * time.Minute
)

// GenerateOpaqueToken returns a cryptographically random hex token.
func GenerateOpaqueToken() (string, error) {
	return generateToken(OpaqueTokenLength)
}

func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
