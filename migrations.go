package pickup

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

// MigrationFiles contains the SQL schema for the relica record store.
// The statements are written for the default "pickup_" table prefix and
// run unchanged on MySQL, PostgreSQL and SQLite.
//
// Example with goose:
//
//	goose.SetBaseFS(pickup.MigrationFiles)
//	if err := goose.Up(db, "migrations"); err != nil {
//	    log.Fatal(err)
//	}
//
// The pickup-server binary applies them itself with "pickup-server migrate".
//
//go:embed migrations/*.sql
var MigrationFiles embed.FS

// MigrationStatements returns the statements of every embedded migration,
// in file order, with the "pickup_" table prefix replaced by prefix.
func MigrationStatements(prefix string) ([]string, error) {
	names, err := fs.Glob(MigrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	var statements []string
	for _, name := range names {
		data, err := MigrationFiles.ReadFile(name)
		if err != nil {
			return nil, err
		}
		for _, stmt := range strings.Split(string(data), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if prefix != "" && prefix != "pickup_" {
				stmt = strings.ReplaceAll(stmt, "pickup_", prefix)
			}
			statements = append(statements, stmt)
		}
	}
	return statements, nil
}
