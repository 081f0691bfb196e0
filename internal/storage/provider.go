// Package storage persists event snapshots under string keys.
package storage

import "errors"

// ErrNotExist is returned by Load when no snapshot has been saved under key.
var ErrNotExist = errors.New("storage: snapshot does not exist")

// Provider stores whole snapshots. Save replaces the previous snapshot
// atomically; readers never observe a partial write.
type Provider interface {
	// Load returns the bytes last saved under key, or ErrNotExist.
	Load(key string) ([]byte, error)
	// Save replaces the snapshot under key.
	Save(key string, data []byte) error
	// Close releases any resources held by the provider.
	Close() error
}

// Checksummer is implemented by providers that record the checksum of each
// snapshot and can report it without reading the data. An absent key has an
// empty checksum.
type Checksummer interface {
	Checksum(key string) (string, error)
}

// Backend names accepted by Open.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
)
