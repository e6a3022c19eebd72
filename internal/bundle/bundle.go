// Package bundle stores ingested benchmark data. A bundle is a flat
// key space of CSV files; the ingest command writes into it and the
// benchmark loader reads from it.
package bundle

import (
	"context"
	"strings"
)

// Storage is a bundle backend.
type Storage interface {
	// Write stores data under the given key, replacing any previous value.
	Write(ctx context.Context, key string, data []byte) error

	// Read returns the data stored under the given key.
	Read(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether the key holds data.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the key.
	Delete(ctx context.Context, key string) error
}

// BenchmarkKey is the canonical bundle key for a benchmark symbol's
// daily return series.
func BenchmarkKey(symbol string) string {
	return "benchmark/" + strings.ToUpper(symbol) + ".csv"
}
