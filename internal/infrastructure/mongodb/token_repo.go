package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ErlanBelekov/magic-auth/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type tokenDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	TokenHash string        `bson:"token_hash"`
	ExpiresAt time.Time     `bson:"expires_at"`
	UsedAt    *time.Time    `bson:"used_at"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d *tokenDoc) toDomain() *domain.MagicToken {
	return &domain.MagicToken{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		TokenHash: d.TokenHash,
		ExpiresAt: d.ExpiresAt,
		UsedAt:    d.UsedAt,
		CreatedAt: d.CreatedAt,
	}
}

type TokenRepository struct {
	coll *mongo.Collection
}

func NewTokenRepository(db *mongo.Database) *TokenRepository {
	return &TokenRepository{coll: db.Collection(tokensCollection)}
}

func (r *TokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*domain.MagicToken, error) {
	doc := tokenDoc{
		ID:        bson.NewObjectID(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("insert magic token: %w", err)
	}
	return doc.toDomain(), nil
}

// Claim relies on FindOneAndUpdate being atomic per document: the filter
// only matches while used_at is null, so a second caller matches nothing.
func (r *TokenRepository) Claim(ctx context.Context, tokenHash string, now time.Time) (*domain.MagicToken, error) {
	now = now.UTC()
	filter := bson.M{
		"token_hash": tokenHash,
		"used_at":    nil,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"used_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc tokenDoc
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("claim magic token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *TokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.MagicToken, error) {
	var doc tokenDoc
	if err := r.coll.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find magic token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *TokenRepository) CountPending(ctx context.Context, userID string, now time.Time) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"used_at":    nil,
		"expires_at": bson.M{"$gt": now.UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("count pending tokens: %w", err)
	}
	return n, nil
}

func (r *TokenRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	res, err := r.coll.DeleteMany(ctx, bson.M{
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lt": cutoff}},
			bson.M{"used_at": bson.M{"$lt": cutoff}},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("purge magic tokens: %w", err)
	}
	return res.DeletedCount, nil
}

func (r *TokenRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("delete magic tokens: %w", err)
	}
	return res.DeletedCount, nil
}
