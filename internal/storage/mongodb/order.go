package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/bookstore-checkout/internal/domain/order"
)

type orderDoc struct {
	ID            string               `bson:"_id"`
	Status        string               `bson:"status"`
	TotalPrice    primitive.Decimal128 `bson:"total_price"`
	TotalDiscount primitive.Decimal128 `bson:"total_discount"`
	UserID        string               `bson:"user_id"`
	PaymentTypeID string               `bson:"payment_type_id"`
	Details       detailsDoc           `bson:"details"`
	CheckoutKey   string               `bson:"checkout_key,omitempty"`
	CreatedAt     time.Time            `bson:"created_at"`
}

type detailsDoc struct {
	User  userSnapshotDoc   `bson:"user"`
	Books []bookSnapshotDoc `bson:"books"`
}

type userSnapshotDoc struct {
	Name     string               `bson:"name"`
	Email    string               `bson:"email"`
	Discount primitive.Decimal128 `bson:"discount"`
}

type bookSnapshotDoc struct {
	Title    string               `bson:"title"`
	Price    primitive.Decimal128 `bson:"price"`
	Discount primitive.Decimal128 `bson:"discount"`
	Count    int                  `bson:"count"`
}

func newOrderDoc(o *order.Order) (orderDoc, error) {
	vals, err := decimals(o.TotalPrice, o.TotalDiscount, o.Details.User.Discount)
	if err != nil {
		return orderDoc{}, err
	}
	doc := orderDoc{
		ID:            o.ID,
		Status:        string(o.Status),
		TotalPrice:    vals[0],
		TotalDiscount: vals[1],
		UserID:        o.UserID,
		PaymentTypeID: o.PaymentTypeID,
		Details: detailsDoc{
			User: userSnapshotDoc{
				Name:     o.Details.User.Name,
				Email:    o.Details.User.Email,
				Discount: vals[2],
			},
			Books: make([]bookSnapshotDoc, len(o.Details.Books)),
		},
		CheckoutKey: o.CheckoutKey,
		CreatedAt:   o.CreatedAt,
	}
	for i, b := range o.Details.Books {
		bv, err := decimals(b.Price, b.Discount)
		if err != nil {
			return orderDoc{}, err
		}
		doc.Details.Books[i] = bookSnapshotDoc{Title: b.Title, Price: bv[0], Discount: bv[1], Count: b.Count}
	}
	return doc, nil
}

func (d orderDoc) order() (order.Order, error) {
	o := order.Order{
		ID:            d.ID,
		Status:        order.Status(d.Status),
		UserID:        d.UserID,
		PaymentTypeID: d.PaymentTypeID,
		CheckoutKey:   d.CheckoutKey,
		CreatedAt:     d.CreatedAt,
		Details: order.Details{
			User:  order.UserSnapshot{Name: d.Details.User.Name, Email: d.Details.User.Email},
			Books: make([]order.BookSnapshot, len(d.Details.Books)),
		},
	}

	var err error
	if o.TotalPrice, err = fromDecimal128(d.TotalPrice); err != nil {
		return o, err
	}
	if o.TotalDiscount, err = fromDecimal128(d.TotalDiscount); err != nil {
		return o, err
	}
	if o.Details.User.Discount, err = fromDecimal128(d.Details.User.Discount); err != nil {
		return o, err
	}
	for i, b := range d.Details.Books {
		snap := order.BookSnapshot{Title: b.Title, Count: b.Count}
		if snap.Price, err = fromDecimal128(b.Price); err != nil {
			return o, err
		}
		if snap.Discount, err = fromDecimal128(b.Discount); err != nil {
			return o, err
		}
		o.Details.Books[i] = snap
	}
	return o, nil
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by MongoDB. Monetary
// values are stored as Decimal128.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository returns an OrderRepository on the orders collection of db.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(ordersCollection)}
}

// Create persists a new order. A reused checkout key fails with
// order.ErrCheckoutConflict.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) && o.CheckoutKey != "" {
			return order.ErrCheckoutConflict
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, bson.M{"_id": id})
}

func (r *OrderRepository) FindByCheckoutKey(ctx context.Context, userID, key string) (*order.Order, error) {
	return r.one(ctx, bson.M{"user_id": userID, "checkout_key": key})
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}

	orders := make([]order.Order, len(docs))
	for i, doc := range docs {
		if orders[i], err = doc.order(); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// Stream calls fn for every order created in [from, to), oldest first. A
// non-nil error from fn stops the iteration and is returned as is.
func (r *OrderRepository) Stream(ctx context.Context, from, to time.Time, fn func(*order.Order) error) error {
	filter := bson.M{"created_at": bson.M{"$gte": from, "$lt": to}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return fmt.Errorf("streaming orders: %w", err)
	}
	defer func() { _ = cur.Close(context.Background()) }()

	for cur.Next(ctx) {
		var doc orderDoc
		if err := cur.Decode(&doc); err != nil {
			return fmt.Errorf("decoding order: %w", err)
		}
		o, err := doc.order()
		if err != nil {
			return err
		}
		if err := fn(&o); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("streaming orders: %w", err)
	}
	return nil
}

func (r *OrderRepository) one(ctx context.Context, filter bson.M) (*order.Order, error) {
	var doc orderDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := doc.order()
	if err != nil {
		return nil, err
	}
	return &o, nil
}
