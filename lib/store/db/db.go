// Package db implements the opening and graceful closing of database connections.
package db

import (
	"fmt"

	"github.com/tarancss/cryptowallet/lib/store"
	"github.com/tarancss/cryptowallet/lib/store/mongo"
	"github.com/tarancss/cryptowallet/lib/store/postgres"
	"github.com/tarancss/cryptowallet/lib/store/sqlite"
)

const (
	MEMORY   string = "memory"
	MONGODB  string = "mongodb"
	POSTGRES string = "postgresql"
	SQLITE   string = "sqlite"
)

// New returns a new database connection according to the options (database type). The memory type has no database
// and returns a nil store.DB.
func New(options, connection string) (store.DB, error) {
	switch options {
	case MEMORY, "":
		return nil, nil
	case MONGODB:
		return mongo.New(connection)
	case POSTGRES:
		return postgres.New(connection)
	case SQLITE:
		return sqlite.New(connection)
	}

	return nil, fmt.Errorf("unknown database type %q", options)
}

// Close gracefully closes the database connection.
func Close(options string, dh store.DB) error {
	if dh == nil {
		return nil
	}

	switch options {
	case MONGODB:
		return dh.(*mongo.Mongo).CloseMongo()
	case POSTGRES:
		return dh.(*postgres.Postgres).ClosePostgres()
	case SQLITE:
		return dh.(*sqlite.SQLite).CloseSQLite()
	}

	return nil
}
