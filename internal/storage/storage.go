// Package storage provides the durable client-side key/value store used for
// optimistic UI hints. It is never the source of truth for authorization;
// the backend's "who am I" endpoint is.
package storage

// Well-known keys. These match what the web client stores in localStorage
// so the cached data stays interchangeable across clients.
const (
	UserKey      = "fitted-user"
	ReturnURLKey = "fitted-return-url"
)

// Store is a minimal durable key/value store. Get reports whether the key
// was present; a missing key is not an error.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
