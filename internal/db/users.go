package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fenwick-labs/gatehouse/internal/models"
)

var (
	ErrUserNotFound = errors.New("db: user not found")
	ErrEmailTaken   = errors.New("db: email already registered")
)

// UserStore is the persistence surface the auth handlers consume. The mongo
// implementation below is the production one; tests inject an in-memory one.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByResetTokenHash(ctx context.Context, hash string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, id string) error
}

// MongoUsers implements UserStore over the users collection.
type MongoUsers struct {
	col *mongo.Collection
}

func NewMongoUsers(store *Mongo) *MongoUsers {
	return &MongoUsers{col: store.Users}
}

var _ UserStore = (*MongoUsers)(nil)

func (s *MongoUsers) Create(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)

	if _, err := s.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("mongo: insert user: %w", err)
	}
	return nil
}

func (s *MongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *MongoUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoUsers) FindByResetTokenHash(ctx context.Context, hash string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"reset_token_hash": hash})
}

// UpdatePassword stores a new password hash, stamps password_changed_at and
// clears any pending reset token in the same document update.
func (s *MongoUsers) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"password_hash":       passwordHash,
			"password_changed_at": now,
			"updated_at":          now,
		},
		"$unset": bson.M{
			"reset_token_hash":       "",
			"reset_token_expires_at": "",
		},
	}
	return s.updateOne(ctx, id, update)
}

func (s *MongoUsers) SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"reset_token_hash":       hash,
			"reset_token_expires_at": expiresAt.UTC(),
			"updated_at":             time.Now().UTC(),
		},
	}
	return s.updateOne(ctx, id, update)
}

func (s *MongoUsers) ClearResetToken(ctx context.Context, id string) error {
	update := bson.M{
		"$set": bson.M{"updated_at": time.Now().UTC()},
		"$unset": bson.M{
			"reset_token_hash":       "",
			"reset_token_expires_at": "",
		},
	}
	return s.updateOne(ctx, id, update)
}

func (s *MongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := s.col.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("mongo: query user: %w", err)
	}
	return &user, nil
}

func (s *MongoUsers) updateOne(ctx context.Context, id string, update bson.M) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("mongo: update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// NormalizeEmail lowercases and trims an email so lookups and the unique
// index agree on a single representation.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
