// Package kvstore is a small durable key/value layer. Values are
// JSON-encoded; callers own the schema of what they put in.
package kvstore

// Store persists JSON-encodable values under string keys.
type Store interface {
	// Get decodes the value stored under key into out. The boolean
	// reports whether the key existed.
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
	Delete(key string) error
	Close() error
}
