package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docsigner/docsigner-go/pkg/persistence"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var _ persistence.IReceiptStore = (*MemoryPersistence)(nil)

func newReceipt(id, documentHash string, createdAt time.Time) *types.RelayReceipt {
	return &types.RelayReceipt{
		ID:              id,
		Operation:       types.Operation_SignDocument,
		DocumentHash:    documentHash,
		SignerAddress:   "0x00000000000000000000000000000000000000A1",
		TransactionHash: "0x01",
		Status:          types.TransactionStatus_Success,
		CreatedAt:       createdAt,
	}
}

func TestMemoryPersistence_SaveAndLoadReceipt(t *testing.T) {
	mp := NewMemoryPersistence(zaptest.NewLogger(t))
	defer func() { _ = mp.Close() }()

	receipt := newReceipt("r1", "0xAB", time.Unix(100, 0))
	require.NoError(t, mp.SaveReceipt(receipt))

	loaded, err := mp.LoadReceipt("r1")
	require.NoError(t, err)
	assert.Equal(t, receipt, loaded)

	// stored copy is not shared with the caller
	loaded.Status = types.TransactionStatus_Failed
	again, err := mp.LoadReceipt("r1")
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatus_Success, again.Status)
}

func TestMemoryPersistence_LoadReceipt_NotFound(t *testing.T) {
	mp := NewMemoryPersistence(nil)
	loaded, err := mp.LoadReceipt("missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMemoryPersistence_SaveReceipt_Invalid(t *testing.T) {
	mp := NewMemoryPersistence(nil)
	require.Error(t, mp.SaveReceipt(nil))
	require.Error(t, mp.SaveReceipt(&types.RelayReceipt{}))
}

func TestMemoryPersistence_ListReceiptsForDocument(t *testing.T) {
	mp := NewMemoryPersistence(nil)

	require.NoError(t, mp.SaveReceipt(newReceipt("late", "0xAB", time.Unix(300, 0))))
	require.NoError(t, mp.SaveReceipt(newReceipt("early", "0xab", time.Unix(100, 0))))
	require.NoError(t, mp.SaveReceipt(newReceipt("other", "0xcd", time.Unix(200, 0))))

	receipts, err := mp.ListReceiptsForDocument("0xAb")
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "early", receipts[0].ID)
	assert.Equal(t, "late", receipts[1].ID)

	// overwrite moves the receipt to its new document
	require.NoError(t, mp.SaveReceipt(newReceipt("late", "0xcd", time.Unix(300, 0))))
	receipts, err = mp.ListReceiptsForDocument("0xab")
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	receipts, err = mp.ListReceiptsForDocument("0xcd")
	require.NoError(t, err)
	assert.Len(t, receipts, 2)

	receipts, err = mp.ListReceiptsForDocument("0xef")
	require.NoError(t, err)
	assert.Empty(t, receipts)
}

func TestMemoryPersistence_Closed(t *testing.T) {
	mp := NewMemoryPersistence(nil)
	require.NoError(t, mp.HealthCheck())
	require.NoError(t, mp.Close())
	require.NoError(t, mp.Close())

	require.ErrorIs(t, mp.HealthCheck(), persistence.ErrClosed)
	require.ErrorIs(t, mp.SaveReceipt(newReceipt("r1", "0xab", time.Now())), persistence.ErrClosed)
	_, err := mp.LoadReceipt("r1")
	require.ErrorIs(t, err, persistence.ErrClosed)
	_, err = mp.ListReceiptsForDocument("0xab")
	require.ErrorIs(t, err, persistence.ErrClosed)
}

func TestMemoryPersistence_ConcurrentWrites(t *testing.T) {
	mp := NewMemoryPersistence(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, mp.SaveReceipt(newReceipt(fmt.Sprintf("r%d", i), "0xab", time.Unix(int64(i), 0))))
		}(i)
	}
	wg.Wait()

	receipts, err := mp.ListReceiptsForDocument("0xab")
	require.NoError(t, err)
	assert.Len(t, receipts, 50)
	for i := 1; i < len(receipts); i++ {
		assert.False(t, receipts[i].CreatedAt.Before(receipts[i-1].CreatedAt))
	}
}
