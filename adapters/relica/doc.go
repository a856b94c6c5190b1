// Package relica provides a RecordRepository using the Relica query builder.
//
// Relica (github.com/coregx/relica) is a lightweight, type-safe database query builder
// for Go with zero production dependencies. The repository works with MySQL,
// PostgreSQL and SQLite; the schema is embedded in pickup.MigrationFiles.
//
// Example usage:
//
//	import (
//	    "database/sql"
//	    "github.com/coregx/pickup"
//	    "github.com/coregx/pickup/adapters/relica"
//	    _ "github.com/go-sql-driver/mysql"
//	)
//
//	// Open database connection
//	db, err := sql.Open("mysql", "user:pass@tcp(localhost:3306)/pickup_db?parseTime=true")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create repositories (driverName should be "mysql", "postgres", or "sqlite3")
//	repos := relica.NewRepositories(db, "mysql")
//
//	manager, err := pickup.NewManager(
//	    pickup.WithRecordRepository(repos.Records),
//	    pickup.WithManagerLogger(logger),
//	)
package relica
