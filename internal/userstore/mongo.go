// Package userstore persists user credentials in MongoDB, separate from
// the relational application data.
package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"todo-server/internal/models"
)

var (
	// ErrDuplicateEmail is returned when the email address is already
	// registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound is returned when no user matches the query.
	ErrNotFound = errors.New("user not found")
)

const usersCollection = "users"

// Store is a MongoDB-backed credential store.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
}

// New connects to MongoDB, verifies the connection and ensures the unique
// email index exists.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	users := client.Database(database).Collection(usersCollection)
	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create email index: %w", err)
	}

	return &Store{client: client, users: users}, nil
}

// Create inserts a new user. The password must already be hashed.
func (s *Store) Create(ctx context.Context, user *models.User) error {
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByEmail looks up a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// Ping verifies the MongoDB connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
