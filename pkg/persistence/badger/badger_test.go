package badger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docsigner/docsigner-go/pkg/logger"
	"github.com/docsigner/docsigner-go/pkg/persistence"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ persistence.IReceiptStore = (*BadgerPersistence)(nil)

func newTestPersistence(t *testing.T, dir string) *BadgerPersistence {
	t.Helper()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(dir, testLogger)
	require.NoError(t, err)
	return bp
}

func newReceipt(id, documentHash string, createdAt time.Time) *types.RelayReceipt {
	return &types.RelayReceipt{
		ID:              id,
		RequestID:       "req-" + id,
		Operation:       types.Operation_SignDocument,
		DocumentHash:    documentHash,
		SignerAddress:   "0x00000000000000000000000000000000000000A1",
		TransactionHash: "0x01",
		BlockNumber:     10,
		GasUsed:         21000,
		Status:          types.TransactionStatus_Success,
		CreatedAt:       createdAt.UTC(),
	}
}

func TestBadgerPersistence_SaveAndLoadReceipt(t *testing.T) {
	bp := newTestPersistence(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	receipt := newReceipt("r1", "0xab", time.Unix(1700000000, 0))
	require.NoError(t, bp.SaveReceipt(receipt))

	loaded, err := bp.LoadReceipt("r1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, receipt, loaded)
}

func TestBadgerPersistence_LoadReceipt_NotFound(t *testing.T) {
	bp := newTestPersistence(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	loaded, err := bp.LoadReceipt("missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestBadgerPersistence_SaveReceipt_Nil(t *testing.T) {
	bp := newTestPersistence(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	err := bp.SaveReceipt(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil RelayReceipt")
}

func TestBadgerPersistence_ListReceiptsForDocument(t *testing.T) {
	bp := newTestPersistence(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	base := time.Unix(1700000000, 0)
	require.NoError(t, bp.SaveReceipt(newReceipt("second", "0xAB", base.Add(time.Minute))))
	require.NoError(t, bp.SaveReceipt(newReceipt("first", "0xab", base)))
	require.NoError(t, bp.SaveReceipt(newReceipt("unrelated", "0xabc", base)))

	receipts, err := bp.ListReceiptsForDocument("0xAb")
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "first", receipts[0].ID)
	assert.Equal(t, "second", receipts[1].ID)

	// overwriting a receipt moves its index entry
	moved := newReceipt("second", "0xabc", base.Add(time.Minute))
	require.NoError(t, bp.SaveReceipt(moved))

	receipts, err = bp.ListReceiptsForDocument("0xab")
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "first", receipts[0].ID)

	receipts, err = bp.ListReceiptsForDocument("0xabc")
	require.NoError(t, err)
	assert.Len(t, receipts, 2)

	receipts, err = bp.ListReceiptsForDocument("0xdead")
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestBadgerPersistence_Restart(t *testing.T) {
	dir := t.TempDir()

	bp := newTestPersistence(t, dir)
	require.NoError(t, bp.SaveReceipt(newReceipt("r1", "0xab", time.Unix(1700000000, 0))))
	require.NoError(t, bp.Close())

	bp = newTestPersistence(t, dir)
	defer func() { _ = bp.Close() }()

	loaded, err := bp.LoadReceipt("r1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "0xab", loaded.DocumentHash)

	receipts, err := bp.ListReceiptsForDocument("0xab")
	require.NoError(t, err)
	assert.Len(t, receipts, 1)
}

func TestBadgerPersistence_Closed(t *testing.T) {
	bp := newTestPersistence(t, t.TempDir())
	require.NoError(t, bp.HealthCheck())

	require.NoError(t, bp.Close())
	require.NoError(t, bp.Close())

	require.ErrorIs(t, bp.HealthCheck(), persistence.ErrClosed)
	require.ErrorIs(t, bp.SaveReceipt(newReceipt("r1", "0xab", time.Now())), persistence.ErrClosed)
	_, err := bp.LoadReceipt("r1")
	require.ErrorIs(t, err, persistence.ErrClosed)
	_, err = bp.ListReceiptsForDocument("0xab")
	require.ErrorIs(t, err, persistence.ErrClosed)
}

func TestBadgerPersistence_ConcurrentWrites(t *testing.T) {
	bp := newTestPersistence(t, t.TempDir())
	defer func() { _ = bp.Close() }()

	base := time.Unix(1700000000, 0)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, bp.SaveReceipt(newReceipt(fmt.Sprintf("r%02d", i), "0xab", base.Add(time.Duration(i)*time.Second))))
		}(i)
	}
	wg.Wait()

	receipts, err := bp.ListReceiptsForDocument("0xab")
	require.NoError(t, err)
	require.Len(t, receipts, 20)
	for i, receipt := range receipts {
		assert.Equal(t, fmt.Sprintf("r%02d", i), receipt.ID)
	}
}
