package stage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/airup-project/airup/internal/stage"
)

func TestRunPrestartSerialRunsInOrder(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "marker")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "01-first"), []byte("#!/bin/sh\necho one >> "+marker+"\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02-second"), []byte("#!/bin/sh\necho two >> "+marker+"\n"), 0o755))

	stage.RunPrestart(context.Background(), dir, false, zap.NewNop())

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestRunPrestartMissingDirIsNotFatal(t *testing.T) {
	assert.NotPanics(t, func() {
		stage.RunPrestart(context.Background(), filepath.Join(t.TempDir(), "missing"), false, zap.NewNop())
	})
}

func TestRunPrestartParalDoesNotBlock(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "slow"), []byte("#!/bin/sh\nsleep 2\n"), 0o755))

	start := time.Now()
	stage.RunPrestart(context.Background(), dir, true, zap.NewNop())

	assert.Less(t, time.Since(start), time.Second, "paral=true must not block on a slow entry")
}
