// Copyright (c) 2026 ecgscan. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/ecgscan/internal/platform/migration"
	"github.com/taibuivan/ecgscan/internal/platform/sqlite"
)

func TestRunSQLite_UpDownUp(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "ecgscan.db"), logger)
	require.NoError(t, err)
	defer db.Close()

	count := func(name string) int {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n))
		return n
	}

	require.NoError(t, migration.RunSQLite(db, migration.Up, logger))
	assert.Equal(t, 1, count("account"))
	assert.Equal(t, 1, count("passwordreset"))

	// Idempotent.
	require.NoError(t, migration.RunSQLite(db, migration.Up, logger))

	// Down reverts one step only.
	require.NoError(t, migration.RunSQLite(db, migration.Down, logger))
	assert.Equal(t, 1, count("account"))
	assert.Equal(t, 0, count("passwordreset"))

	require.NoError(t, migration.RunSQLite(db, migration.Up, logger))
	assert.Equal(t, 1, count("passwordreset"))

	// The caller's handle is still open.
	assert.NoError(t, db.Ping())
}
