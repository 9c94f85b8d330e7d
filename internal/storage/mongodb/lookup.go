package mongodb

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/bookstore-checkout/internal/domain/catalog"
	"github.com/xenking/bookstore-checkout/internal/domain/payment"
	"github.com/xenking/bookstore-checkout/internal/domain/user"
)

type bookDoc struct {
	ID       string               `bson:"_id"`
	Title    string               `bson:"title"`
	Price    primitive.Decimal128 `bson:"price"`
	Discount primitive.Decimal128 `bson:"discount"`
}

func (d bookDoc) book() (catalog.Book, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return catalog.Book{}, err
	}
	discount, err := fromDecimal128(d.Discount)
	if err != nil {
		return catalog.Book{}, err
	}
	return catalog.Book{ID: d.ID, Title: d.Title, Price: price, Discount: discount}, nil
}

var _ catalog.Repository = (*BookRepository)(nil)

// BookRepository implements catalog.Repository backed by MongoDB.
type BookRepository struct {
	coll *mongo.Collection
}

// NewBookRepository returns a BookRepository on the books collection of db.
func NewBookRepository(db *mongo.Database) *BookRepository {
	return &BookRepository{coll: db.Collection(booksCollection)}
}

// GetByID returns a single book by its identifier.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*catalog.Book, error) {
	var doc bookDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting book %q: %w", id, err)
	}
	b, err := doc.book()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByIDs returns books matching any of the given IDs.
func (r *BookRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Book, error) {
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("getting books by ids: %w", err)
	}
	var docs []bookDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("getting books by ids: %w", err)
	}

	books := make([]catalog.Book, 0, len(docs))
	for _, doc := range docs {
		b, err := doc.book()
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}

// Upsert inserts a book or replaces the existing document with the same id.
func (r *BookRepository) Upsert(ctx context.Context, b catalog.Book) error {
	vals, err := decimals(b.Price, b.Discount)
	if err != nil {
		return err
	}
	doc := bookDoc{ID: b.ID, Title: b.Title, Price: vals[0], Discount: vals[1]}
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": b.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("upserting book %q: %w", b.ID, err)
	}
	return nil
}

type userDoc struct {
	ID       string               `bson:"_id"`
	Name     string               `bson:"name"`
	Email    string               `bson:"email"`
	Discount primitive.Decimal128 `bson:"discount"`
}

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by MongoDB.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository returns a UserRepository on the users collection of db.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

// GetByID returns the user with the given id or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	discount, err := fromDecimal128(doc.Discount)
	if err != nil {
		return nil, err
	}
	return &user.User{ID: doc.ID, Name: doc.Name, Email: doc.Email, DiscountPercent: discount}, nil
}

// Upsert inserts a user or replaces the existing document with the same id.
func (r *UserRepository) Upsert(ctx context.Context, u user.User) error {
	discount, err := toDecimal128(u.DiscountPercent)
	if err != nil {
		return err
	}
	doc := userDoc{ID: u.ID, Name: u.Name, Email: u.Email, Discount: discount}
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}

type paymentTypeDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

var _ payment.Repository = (*PaymentTypeRepository)(nil)

// PaymentTypeRepository implements payment.Repository backed by MongoDB.
type PaymentTypeRepository struct {
	coll *mongo.Collection
}

// NewPaymentTypeRepository returns a PaymentTypeRepository on the
// payment_types collection of db.
func NewPaymentTypeRepository(db *mongo.Database) *PaymentTypeRepository {
	return &PaymentTypeRepository{coll: db.Collection(paymentTypesCollection)}
}

// Exists reports whether a payment type with the given id exists.
func (r *PaymentTypeRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("checking payment type %q: %w", id, err)
	}
	return n > 0, nil
}

// Upsert inserts a payment type or renames the existing one.
func (r *PaymentTypeRepository) Upsert(ctx context.Context, t payment.Type) error {
	doc := paymentTypeDoc{ID: t.ID, Name: t.Name}
	if _, err := r.coll.ReplaceOne(ctx, bson.M{"_id": t.ID}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("upserting payment type %q: %w", t.ID, err)
	}
	return nil
}
