package mongodb

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nguyentranbao-ct/storefront/internal/models"
)

// memoryReceiptRepo keeps the most recent receipts of this process when no
// database is configured.
type memoryReceiptRepo struct {
	mu       sync.Mutex
	receipts []*models.CheckoutReceipt
}

const memoryReceiptCap = 100

func NewMemoryReceiptRepository() ReceiptRepository {
	return &memoryReceiptRepo{}
}

func (r *memoryReceiptRepo) Create(_ context.Context, receipt *models.CheckoutReceipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if receipt.ID.IsZero() {
		receipt.ID = models.NewObjectID()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now()
	}
	cp := *receipt
	r.receipts = append(r.receipts, &cp)
	if len(r.receipts) > memoryReceiptCap {
		r.receipts = slices.Delete(r.receipts, 0, len(r.receipts)-memoryReceiptCap)
	}
	return nil
}

func (r *memoryReceiptRepo) ListRecent(_ context.Context, username string, limit int64) ([]*models.CheckoutReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ret []*models.CheckoutReceipt
	for i := len(r.receipts) - 1; i >= 0 && (limit <= 0 || int64(len(ret)) < limit); i-- {
		if r.receipts[i].Username == username {
			cp := *r.receipts[i]
			ret = append(ret, &cp)
		}
	}
	return ret, nil
}
