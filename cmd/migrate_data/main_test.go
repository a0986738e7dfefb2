package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateRejectsNonPositiveBatch(t *testing.T) {
	err := newCommand().Run(context.Background(), []string{"migrate_data", "--batch", "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch must be positive")
}

func TestMigrateDefaultBatch(t *testing.T) {
	cmd := newCommand()
	require.Len(t, cmd.Flags, 1)
	assert.Equal(t, "batch", cmd.Flags[0].Names()[0])
}
