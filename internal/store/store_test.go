package store

import (
	"context"
	"path/filepath"
	"testing"

	"socialflow/internal/database"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

var ctx = context.Background()
