package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"socialflow/internal/database"
	"socialflow/internal/models"
	"socialflow/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportFlows(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	ctx := context.Background()
	repo := store.NewFlowRepository(db)

	n, err := importFlows(ctx, db, "t1", strings.NewReader(`[
		{"name":"Greeter","status":"active","trigger":{"type":"keyword","keywords":["hi"]},"actions":[{"type":"send_dm","config":{"message":"hey"}}]},
		{"name":"Daily","trigger":{"type":"schedule","scheduleTime":"0 9 * * *"}}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	active, err := repo.ActiveFlows(ctx, "t1", models.TriggerKeyword)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Greeter", active[0].Name)

	all, err := repo.List(ctx, "t1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImportFlowsIsAllOrNothing(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	_, err = importFlows(context.Background(), db, "t1", strings.NewReader(`[
		{"name":"Good","trigger":{"type":"keyword"}},
		{"name":"Bad","trigger":{"type":"keyword"},"actions":[{"type":"add_to_sequence","config":{}}]}
	]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flow 1 (Bad)")

	all, err := store.NewFlowRepository(db).List(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cli.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", dbPath)

	file := filepath.Join(dir, "flows.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"name":"Greeter","trigger":{"type":"keyword"}}]`), 0o600))

	err := newCommand().Run(context.Background(), []string{"import_flows", "--tenant", "t1", "--file", file})
	require.NoError(t, err)

	db, err := database.OpenSQLite(dbPath, nil)
	require.NoError(t, err)
	all, err := store.NewFlowRepository(db).List(context.Background(), "t1", "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Greeter", all[0].Name)
}

func TestImportCommandErrors(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", filepath.Join(t.TempDir(), "cli.db"))

	err := newCommand().Run(context.Background(), []string{"import_flows", "--tenant", "t1", "--file", filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open flow file")

	err = newCommand().Run(context.Background(), []string{"import_flows", "--file", "flows.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant")
}
