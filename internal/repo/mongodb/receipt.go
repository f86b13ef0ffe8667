package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/nguyentranbao-ct/storefront/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
)

// ReceiptRepository journals finished checkout attempts.
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *models.CheckoutReceipt) error
	ListRecent(ctx context.Context, username string, limit int64) ([]*models.CheckoutReceipt, error)
}

type receiptRepo struct {
	collection *mongo.Collection
}

func NewReceiptRepository(db *DB) ReceiptRepository {
	if db == nil {
		return NewMemoryReceiptRepository()
	}
	return &receiptRepo{
		collection: db.Database.Collection(models.CheckoutReceipt{}.CollectionName()),
	}
}

func (r *receiptRepo) Create(ctx context.Context, receipt *models.CheckoutReceipt) error {
	if receipt.ID.IsZero() {
		receipt.ID = models.NewObjectID()
	}
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now()
	}
	if _, err := r.collection.InsertOne(ctx, receipt); err != nil {
		return fmt.Errorf("insert checkout receipt: %w", err)
	}
	return nil
}

func (r *receiptRepo) ListRecent(ctx context.Context, username string, limit int64) ([]*models.CheckoutReceipt, error) {
	filter := bson.M{"username": username}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find checkout receipts: %w", err)
	}
	defer cursor.Close(ctx)

	var receipts []*models.CheckoutReceipt
	if err := cursor.All(ctx, &receipts); err != nil {
		return nil, fmt.Errorf("decode checkout receipts: %w", err)
	}
	return receipts, nil
}

var receiptIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: "username", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("username_created_at"),
	},
}

// EnsureReceiptIndexes creates the journal indexes once the database is
// reachable.
func EnsureReceiptIndexes(lc fx.Lifecycle, db *DB) {
	if db == nil {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			coll := db.Database.Collection(models.CheckoutReceipt{}.CollectionName())
			if _, err := coll.Indexes().CreateMany(ctx, receiptIndexes); err != nil {
				return fmt.Errorf("create receipt indexes: %w", err)
			}
			return nil
		},
	})
}
