package secret

import (
	"os"
	"strings"
	"sync"
)

// EnvStore reads secrets from environment variables. A key like
// "tablestore-db" maps to TABLESTORE_SECRET_TABLESTORE_DB. Set and Delete
// only affect an in-process overlay; the real environment is never touched.
type EnvStore struct {
	mu      sync.RWMutex
	overlay map[string][]byte
}

// NewEnvStore creates a new EnvStore.
func NewEnvStore() *EnvStore {
	return &EnvStore{overlay: make(map[string][]byte)}
}

// EnvName returns the variable consulted for key.
func EnvName(key string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_")
	return "TABLESTORE_SECRET_" + strings.ToUpper(r.Replace(key))
}

func (e *EnvStore) Set(key string, value []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overlay[key] = append([]byte(nil), value...)
	return nil
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	e.mu.RLock()
	v, ok := e.overlay[key]
	e.mu.RUnlock()
	if ok {
		return v, nil
	}
	if s := os.Getenv(EnvName(key)); s != "" {
		return []byte(s), nil
	}
	return nil, nil
}

func (e *EnvStore) Delete(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.overlay, key)
	return nil
}
