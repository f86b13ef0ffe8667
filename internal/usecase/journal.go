package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/storefront/internal/config"
	"github.com/nguyentranbao-ct/storefront/internal/kafka"
	"github.com/nguyentranbao-ct/storefront/internal/models"
	"github.com/nguyentranbao-ct/storefront/internal/repo/mongodb"
	"github.com/nguyentranbao-ct/storefront/pkg/async"
	"github.com/nguyentranbao-ct/storefront/pkg/crypto"
	"github.com/nguyentranbao-ct/storefront/pkg/logger/logctx"
	"github.com/nguyentranbao-ct/storefront/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
)

// Journal records finished checkout attempts. Record never blocks the
// caller; the returned task completes once the receipt is stored and
// published.
type Journal interface {
	Record(ctx context.Context, receipt *models.CheckoutReceipt, txn string) *async.Task[*models.CheckoutReceipt]
	Recent(ctx context.Context, limit int64) ([]*models.CheckoutReceipt, error)
}

type checkoutJournal struct {
	username  string
	repo      mongodb.ReceiptRepository
	publisher kafka.Publisher
	sealer    crypto.Sealer
	exec      async.Executor
	counter   *prometheus.CounterVec
}

func NewJournal(
	conf *config.Config,
	repo mongodb.ReceiptRepository,
	publisher kafka.Publisher,
	exec async.Executor,
) (Journal, error) {
	var sealer crypto.Sealer
	if conf.Journal.TokenKey != "" {
		s, err := crypto.NewSealer(conf.Journal.TokenKey)
		if err != nil {
			return nil, fmt.Errorf("journal token key: %w", err)
		}
		sealer = s
	}
	return newJournal(conf.Session.Username, repo, publisher, sealer, exec)
}

func newJournal(
	username string,
	repo mongodb.ReceiptRepository,
	publisher kafka.Publisher,
	sealer crypto.Sealer,
	exec async.Executor,
) (*checkoutJournal, error) {
	counter, err := util.GetCounterVec("store_checkouts_total", "method", "outcome")
	if err != nil {
		return nil, fmt.Errorf("get counter vec: %w", err)
	}
	return &checkoutJournal{
		username:  username,
		repo:      repo,
		publisher: publisher,
		sealer:    sealer,
		exec:      exec,
		counter:   counter,
	}, nil
}

func (j *checkoutJournal) Record(ctx context.Context, receipt *models.CheckoutReceipt, txn string) *async.Task[*models.CheckoutReceipt] {
	receipt.Username = j.username
	if receipt.ID.IsZero() {
		receipt.ID = models.NewObjectID()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now()
	}
	j.counter.WithLabelValues(string(receipt.Method), string(receipt.Outcome)).Inc()

	return async.Submit(ctx, j.exec, func(ctx context.Context) (*models.CheckoutReceipt, error) {
		if txn != "" && j.sealer != nil {
			sealed, err := j.sealer.Seal(txn, receipt.ID.String())
			if err != nil {
				return nil, fmt.Errorf("seal token: %w", err)
			}
			receipt.SealedToken = sealed
		}
		if err := j.repo.Create(ctx, receipt); err != nil {
			logctx.Errorw(ctx, "failed to journal checkout", "receipt_id", receipt.ID, "error", err)
			return nil, err
		}
		if err := j.publisher.PublishCheckout(ctx, receipt); err != nil {
			logctx.Warnw(ctx, "failed to publish checkout", "receipt_id", receipt.ID, "error", err)
		}
		logctx.Infow(ctx, "checkout journaled",
			"receipt_id", receipt.ID,
			"method", receipt.Method,
			"outcome", receipt.Outcome,
			"total", receipt.Total,
		)
		return receipt, nil
	})
}

func (j *checkoutJournal) Recent(ctx context.Context, limit int64) ([]*models.CheckoutReceipt, error) {
	return j.repo.ListRecent(ctx, j.username, limit)
}
