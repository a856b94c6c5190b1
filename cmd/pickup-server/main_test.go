package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pickup/cmd/pickup-server/internal/config"
	"github.com/coregx/pickup/cmd/pickup-server/internal/metrics"
)

func TestMigrate_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	applied, skipped, err := migrate(context.Background(), db, "pickup_")
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 0, skipped)

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'pickup_message'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "pickup_message", name)

	applied, skipped, err = migrate(context.Background(), db, "pickup_")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, skipped)
}

func TestAlreadyExists(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "MySQLDuplicateIndex", err: &mysql.MySQLError{Number: 1061}, want: true},
		{name: "MySQLDuplicateTable", err: &mysql.MySQLError{Number: 1050}, want: true},
		{name: "MySQLOther", err: &mysql.MySQLError{Number: 1064}, want: false},
		{name: "PostgresDuplicate", err: fmt.Errorf("exec: %w", &pq.Error{Code: "42P07"}), want: true},
		{name: "PostgresOther", err: &pq.Error{Code: "42601"}, want: false},
		{name: "Plain", err: errors.New("already exists"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, alreadyExists(tt.err))
		})
	}
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Backend: config.BackendMemory}}

	repo, closeStore, err := openStore(context.Background(), cfg, nopLogger{})
	require.NoError(t, err)
	defer closeStore()
	assert.NotNil(t, repo)
}

func TestNewEmitter(t *testing.T) {
	emitter, err := newEmitter(config.WebhookConfig{
		URL: "http://hooks.local", QueueSize: 4, Workers: 1, MaxAttempts: 3,
	}, nopLogger{}, metrics.New())
	require.NoError(t, err)
	assert.Equal(t, 0, emitter.Pending())

	_, err = newEmitter(config.WebhookConfig{URL: "http://hooks.local", QueueSize: 0, Workers: 1, MaxAttempts: 3},
		nopLogger{}, metrics.New())
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "pickup-server v"+version)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Info(string)                   {}
