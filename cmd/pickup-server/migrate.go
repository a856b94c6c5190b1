package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/coregx/pickup"
	"github.com/coregx/pickup/cmd/pickup-server/internal/config"
	"github.com/coregx/pickup/cmd/pickup-server/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the record table in the configured SQL database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		zl, err := logging.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		defer func() { _ = zl.Sync() }()
		logger := logging.NewAdapter(zl)

		db, err := openDatabase(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		applied, skipped, err := migrate(cmd.Context(), db, cfg.Database.Prefix)
		if err != nil {
			return err
		}
		logger.Infof("✅ Applied %d migration statements, %d already present (prefix=%s)",
			applied, skipped, cfg.Database.Prefix)
		return nil
	},
}

// migrate runs the embedded migration statements in order. A statement
// whose object already exists is counted as skipped, so running migrate
// again against a migrated schema succeeds.
//
// Statements run one by one: MySQL commits DDL implicitly and PostgreSQL
// aborts a transaction after the first failing statement.
func migrate(ctx context.Context, db *sql.DB, prefix string) (applied, skipped int, err error) {
	statements, err := pickup.MigrationStatements(prefix)
	if err != nil {
		return 0, 0, fmt.Errorf("read migrations: %w", err)
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			if alreadyExists(err) {
				skipped++
				continue
			}
			return applied, skipped, fmt.Errorf("apply migration %q: %w", stmt, err)
		}
		applied++
	}
	return applied, skipped, nil
}

// alreadyExists reports whether err is a driver's duplicate table or
// index error.
func alreadyExists(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		// ER_TABLE_EXISTS_ERROR, ER_DUP_KEYNAME
		return mysqlErr.Number == 1050 || mysqlErr.Number == 1061
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P07" // duplicate_table, also raised for indexes
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrError && strings.Contains(sqliteErr.Error(), "already exists")
	}
	return false
}

// openDatabase opens and pings the configured SQL database.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}
