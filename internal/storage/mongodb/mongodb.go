// Package mongodb implements the checkout repositories on MongoDB.
//
// Multi-document checkout requires a replica set or sharded cluster, since
// transactions are not available on a standalone server.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	booksCollection        = "books"
	usersCollection        = "users"
	paymentTypesCollection = "payment_types"
	cartLinesCollection    = "cart_lines"
	ordersCollection       = "orders"
)

// Connect opens a client for uri, verifies it with a ping and returns the
// named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return client.Database(database), nil
}

// EnsureIndexes creates the indexes the repositories rely on, including the
// unique (user, book) constraint on cart lines. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		cartLinesCollection: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "book_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("user_book_unique"),
			},
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
			},
		},
		ordersCollection: {
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			},
			{
				Keys: bson.D{{Key: "created_at", Value: 1}},
			},
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "checkout_key", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("user_checkout_key_unique").
					SetPartialFilterExpression(bson.M{"checkout_key": bson.M{"$exists": true}}),
			},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", coll, err)
		}
	}
	return nil
}
