// Package kv provides the generic string key/value store the repository
// persists into, with memory, sqlite, and postgres drivers. The interface
// mirrors browser local-storage semantics: synchronous writes, string
// values, enumerable keys.
package kv

import (
	"context"
	"fmt"
	"os"
)

// Driver identifies a concrete store implementation.
type Driver string

const (
	// DriverMemory is the in-memory driver (tests / ephemeral).
	DriverMemory Driver = "memory"
	// DriverSQLite is the embedded sqlite file driver.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is the PostgreSQL server driver.
	DriverPostgres Driver = "postgres"
)

// Store is a synchronous string key/value store. Writes are immediately
// visible to subsequent reads.
type Store interface {
	// Get returns the value for key; the bool is false when absent.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes or replaces the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys enumerates every stored key in lexical order.
	Keys(ctx context.Context) ([]string, error)
}

// Closer is implemented by drivers holding external resources.
type Closer interface {
	Close() error
}

// Open selects a store backend using environment variables. Defaults to
// sqlite when unset.
//
//	FLOCKCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	FLOCKCORE_SQLITE_PATH: path to sqlite file (default ./flockcore.db)
//	FLOCKCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open() (Store, error) {
	driver := os.Getenv("FLOCKCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return NewSQLite(os.Getenv("FLOCKCORE_SQLITE_PATH"))
	case DriverPostgres:
		return NewPostgres(os.Getenv("FLOCKCORE_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
