package main

import (
	"testing"

	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/docsigner/docsigner-go/pkg/persistence/badger"
	"github.com/docsigner/docsigner-go/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_newReceiptStore(t *testing.T) {
	logger := zaptest.NewLogger(t)

	store, err := newReceiptStore(&config.RelayServerConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &memory.MemoryPersistence{}, store)
	require.NoError(t, store.Close())

	store, err = newReceiptStore(&config.RelayServerConfig{
		Persistence: config.PersistenceType_Badger,
		BadgerPath:  t.TempDir(),
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &badger.BadgerPersistence{}, store)
	require.NoError(t, store.HealthCheck())
	require.NoError(t, store.Close())
}
