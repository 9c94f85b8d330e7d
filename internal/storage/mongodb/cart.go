package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
)

type lineDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	BookID    string    `bson:"book_id"`
	Count     int       `bson:"count"`
	CreatedAt time.Time `bson:"created_at"`
}

func (d lineDoc) line() cart.Line {
	return cart.Line{ID: d.ID, UserID: d.UserID, BookID: d.BookID, Count: d.Count, CreatedAt: d.CreatedAt}
}

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by MongoDB. The
// (user_id, book_id) unique index created by EnsureIndexes enforces one line
// per book.
type CartRepository struct {
	coll *mongo.Collection
}

// NewCartRepository returns a CartRepository on the cart_lines collection of db.
func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{coll: db.Collection(cartLinesCollection)}
}

func (r *CartRepository) Create(ctx context.Context, l *cart.Line) error {
	doc := lineDoc{ID: l.ID, UserID: l.UserID, BookID: l.BookID, Count: l.Count, CreatedAt: l.CreatedAt}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return &cart.DuplicateLineError{UserID: l.UserID, BookID: l.BookID}
		}
		return fmt.Errorf("creating cart line %q: %w", l.ID, err)
	}
	return nil
}

func (r *CartRepository) UpdateCount(ctx context.Context, userID, id string, count int) (*cart.Line, error) {
	var doc lineDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"count": count}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrLineNotFound
		}
		return nil, fmt.Errorf("updating cart line %q: %w", id, err)
	}
	l := doc.line()
	return &l, nil
}

func (r *CartRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("deleting cart line %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

func (r *CartRepository) ListByUser(ctx context.Context, userID string) ([]cart.Line, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines of %q: %w", userID, err)
	}
	var docs []lineDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("listing cart lines of %q: %w", userID, err)
	}

	lines := make([]cart.Line, len(docs))
	for i, doc := range docs {
		lines[i] = doc.line()
	}
	return lines, nil
}

func (r *CartRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("clearing cart of %q: %w", userID, err)
	}
	return res.DeletedCount, nil
}
