package repository

import "context"

// Well-known state keys. These are the only entries the session layer
// reads or writes; anything else found in the store is ignored.
const (
	KeyToken    = "token"
	KeyUser     = "user" // JSON-serialized model.User
	KeyLanguage = "language"
)

// StateRepository is the durable key-value store for client state — the
// Go stand-in for the browser's localStorage. Values survive restarts.
//
// Get reports found=false (not an error) for a missing key, so callers
// can distinguish "never logged in" from "storage is broken".
type StateRepository interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
