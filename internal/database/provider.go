package database

import (
	"context"
	"errors"
)

// IndexRebuilder is an interface for repositories that keep in-memory indexes
type IndexRebuilder interface {
	// RebuildIndexes rebuilds the in-memory indexes from the database
	RebuildIndexes(ctx context.Context) error
	// IndexedCount returns the number of posts in the in-memory indexes
	IndexedCount() int
	// SaveIndexes saves the current indexes to disk (if paths configured)
	SaveIndexes() error
}

var (
	postgresSignatureReader func() SignatureReader
	postgresSignatureWriter func() SignatureWriter
	postgresIndexes         IndexRebuilder // Singleton for index rebuilding
	postgresInitialized     bool
)

var errNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	reader func() SignatureReader,
	writer func() SignatureWriter,
) {
	postgresSignatureReader = reader
	postgresSignatureWriter = writer
	postgresInitialized = true
}

// RegisterIndexRebuilder registers the in-memory index owner.
func RegisterIndexRebuilder(rebuilder IndexRebuilder) {
	postgresIndexes = rebuilder
}

// GetIndexRebuilder returns the registered index rebuilder, or nil if not registered.
func GetIndexRebuilder() IndexRebuilder {
	return postgresIndexes
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetSignatureReader returns a SignatureReader from the PostgreSQL backend
func GetSignatureReader(ctx context.Context) (SignatureReader, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresSignatureReader == nil {
		return nil, errors.New("PostgreSQL signature reader not registered")
	}
	return postgresSignatureReader(), nil
}

// GetSignatureWriter returns a SignatureWriter from the PostgreSQL backend
func GetSignatureWriter(ctx context.Context) (SignatureWriter, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresSignatureWriter == nil {
		return nil, errors.New("PostgreSQL signature writer not registered")
	}
	return postgresSignatureWriter(), nil
}
