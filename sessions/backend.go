package sessions

import (
	"context"
	"time"
)

// Backend persists session data under an opaque key
type Backend interface {
	// Load returns the data stored under key. found is false when the key is
	// missing or expired.
	Load(ctx context.Context, key string) (data map[string]string, found bool, err error)
	// Save replaces the data stored under key and sets its time to live
	Save(ctx context.Context, key string, data map[string]string, ttl time.Duration) error
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// Touch pushes the expiry of an existing key to now+ttl
	Touch(ctx context.Context, key string, ttl time.Duration) error
}

func copyData(data map[string]string) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
