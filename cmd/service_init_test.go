package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/consensus-cli/internal/resilience"
	"github.com/sells-group/consensus-cli/internal/store"
)

// flakyMigrator returns err from the first `failures` Migrate calls.
type flakyMigrator struct {
	store.Store
	failures int
	err      error
	calls    int
}

func (f *flakyMigrator) Migrate(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	return nil
}

func withConfig(t *testing.T, attempts int) {
	t.Helper()
	c := testServerConfig()
	c.Store.RetryAttempts = attempts
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
}

func TestMigrateStore_RetriesTransient(t *testing.T) {
	withConfig(t, 3)
	st := &flakyMigrator{failures: 2, err: resilience.NewTransientError(errors.New("starting up"))}

	require.NoError(t, migrateStore(context.Background(), st))
	assert.Equal(t, 3, st.calls)
}

func TestMigrateStore_PermanentFailsFast(t *testing.T) {
	withConfig(t, 3)
	st := &flakyMigrator{failures: 5, err: errors.New("permission denied")}

	err := migrateStore(context.Background(), st)
	require.Error(t, err)
	assert.Equal(t, 1, st.calls)
}

func TestStoreRetry_Attempts(t *testing.T) {
	c := testServerConfig()
	c.Store.RetryAttempts = 5
	assert.Equal(t, 5, storeRetry(c).MaxAttempts)

	c.Store.RetryAttempts = 0
	assert.Equal(t, resilience.DefaultRetryConfig().MaxAttempts, storeRetry(c).MaxAttempts)
}
