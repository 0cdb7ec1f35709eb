package lockmgr

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

const (
	clientIDBytes = 16
)

type clientIDKey struct{}

// NewClientID creates a new random client ID (hex encoded, 128 bit).
func NewClientID() (string, error) {
	randomBytes := make([]byte, clientIDBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(randomBytes), nil
}

// WithClientID returns a context that tags lock requests with the given client ID.
// Lock managers report it as LockInfo.ClientID.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, clientID)
}

// ClientIDFromContext returns the client ID set with WithClientID, if any.
func ClientIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey{}).(string)
	return id, ok && id != ""
}
