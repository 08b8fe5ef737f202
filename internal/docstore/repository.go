package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"financas/internal/core"
	"financas/internal/store"
)

type transactionDoc struct {
	ID          string               `bson:"_id"`
	UserID      string               `bson:"userId"`
	Type        string               `bson:"type"`
	Amount      primitive.Decimal128 `bson:"amount"`
	Description string               `bson:"description"`
	Category    string               `bson:"category"`
	Date        time.Time            `bson:"date"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash []byte    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// MongoRepository implements the store ports on top of MongoDB.
type MongoRepository struct {
	provider CollectionProvider
	now      func() time.Time
}

func NewMongoRepository(provider CollectionProvider) *MongoRepository {
	return &MongoRepository{
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *MongoRepository) transactions() DataStore { return r.provider.Collection(TransactionsCollection) }
func (r *MongoRepository) users() DataStore        { return r.provider.Collection(UsersCollection) }

func (r *MongoRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "createdAt", Value: -1}})
	cur, err := r.transactions().Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	return decodeTransactions(ctx, cur)
}

func (r *MongoRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	var doc transactionDoc
	err := r.transactions().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("find transaction: %w", err)
	}
	return doc.toCore()
}

func (r *MongoRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := r.now()
	tx.CreatedAt, tx.UpdatedAt = now, now

	doc, err := fromTransaction(tx)
	if err != nil {
		return core.Transaction{}, err
	}
	if _, err := r.transactions().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrDuplicate)
		}
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tx, nil
}

func (r *MongoRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	prev, err := r.GetTransaction(ctx, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.UserID = prev.UserID
	tx.CreatedAt = prev.CreatedAt
	tx.UpdatedAt = r.now()

	doc, err := fromTransaction(tx)
	if err != nil {
		return core.Transaction{}, err
	}
	res, err := r.transactions().ReplaceOne(ctx, bson.M{"_id": tx.ID}, doc)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("replace transaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, store.ErrNotFound)
	}
	return tx, nil
}

func (r *MongoRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.transactions().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// ScanTransactions pages through the collection by _id.
func (r *MongoRepository) ScanTransactions(ctx context.Context, batchSize int, fn func([]core.Transaction) error) error {
	if batchSize < 1 {
		batchSize = 100
	}
	after := ""
	for {
		opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(batchSize))
		cur, err := r.transactions().Find(ctx, bson.M{"_id": bson.M{"$gt": after}}, opts)
		if err != nil {
			return fmt.Errorf("scan transactions: %w", err)
		}
		batch, err := decodeTransactions(ctx, cur)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1].ID
	}
}

func (r *MongoRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = r.now()

	doc := userDoc{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, CreatedAt: u.CreatedAt}
	if _, err := r.users().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return core.User{}, fmt.Errorf("user %s: %w", u.Email, store.ErrDuplicate)
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *MongoRepository) UserByEmail(ctx context.Context, email string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.findUser(ctx, bson.M{"email": email}, email)
}

func (r *MongoRepository) UserByID(ctx context.Context, id string) (core.User, error) {
	return r.findUser(ctx, bson.M{"_id": id}, id)
}

func (r *MongoRepository) findUser(ctx context.Context, filter bson.M, key string) (core.User, error) {
	var doc userDoc
	err := r.users().FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.User{}, fmt.Errorf("user %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("find user: %w", err)
	}
	return core.User{ID: doc.ID, Email: doc.Email, PasswordHash: doc.PasswordHash, CreatedAt: doc.CreatedAt}, nil
}

func fromTransaction(tx core.Transaction) (transactionDoc, error) {
	amount, err := primitive.ParseDecimal128(tx.Amount.String())
	if err != nil {
		return transactionDoc{}, fmt.Errorf("encode amount %s: %w", tx.Amount, err)
	}
	return transactionDoc{
		ID:          tx.ID,
		UserID:      tx.UserID,
		Type:        string(tx.Type),
		Amount:      amount,
		Description: tx.Description,
		Category:    tx.Category,
		Date:        tx.Date.UTC(),
		CreatedAt:   tx.CreatedAt.UTC(),
		UpdatedAt:   tx.UpdatedAt.UTC(),
	}, nil
}

func (d transactionDoc) toCore() (core.Transaction, error) {
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode amount of %s: %w", d.ID, err)
	}
	return core.Transaction{
		ID:          d.ID,
		UserID:      d.UserID,
		Type:        core.TransactionType(d.Type),
		Amount:      amount,
		Description: d.Description,
		Category:    d.Category,
		Date:        d.Date,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func decodeTransactions(ctx context.Context, cur *mongo.Cursor) ([]core.Transaction, error) {
	defer cur.Close(ctx)
	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(docs))
	for _, d := range docs {
		tx, err := d.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}
