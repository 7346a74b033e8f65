package utils

import (
	"context"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

type contextKey string

const ContextClientIDKey contextKey = "clientID"

func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ContextClientIDKey, id)
}

func GetClientIDFromContext(ctx context.Context) (string, bool) {
	clientID := ctx.Value(ContextClientIDKey)
	clientIDStr, ok := clientID.(string)
	return clientIDStr, ok && clientIDStr != ""
}

// HashClientID returns the hex blake2b-256 digest stored in place of a raw
// client token.
func HashClientID(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
