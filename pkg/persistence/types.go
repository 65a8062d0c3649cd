package persistence

import (
	"errors"
	"sort"

	"github.com/docsigner/docsigner-go/pkg/types"
)

// ErrClosed is returned by every operation on a closed store
var ErrClosed = errors.New("persistence layer is closed")

// SortReceipts orders receipts by CreatedAt, then ID
func SortReceipts(receipts []*types.RelayReceipt) {
	sort.SliceStable(receipts, func(i, j int) bool {
		if receipts[i].CreatedAt.Equal(receipts[j].CreatedAt) {
			return receipts[i].ID < receipts[j].ID
		}
		return receipts[i].CreatedAt.Before(receipts[j].CreatedAt)
	})
}
