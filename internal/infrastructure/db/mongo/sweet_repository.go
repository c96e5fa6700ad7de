package mongo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/core/ports"
)

const collectionSweets = "sweets"

// newestFirst is the listing order: creation time, then insertion order.
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

type SweetRepository struct {
	col *mongo.Collection
	now func() time.Time
}

var _ ports.SweetRepository = (*SweetRepository)(nil)

func NewSweetRepository(db *mongo.Database) *SweetRepository {
	return &SweetRepository{col: db.Collection(collectionSweets), now: time.Now}
}

// mongoSweet is the stored document. Price is kept as Decimal128 so range
// queries compare exact values.
type mongoSweet struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	Name      string               `bson:"name"`
	Category  string               `bson:"category"`
	Price     primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"quantity"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

// Create inserts a new sweet document.
func (r *SweetRepository) Create(ctx context.Context, s *domain.Sweet) (*domain.Sweet, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	price, err := toDecimal128(s.Price)
	if err != nil {
		return nil, err
	}
	doc := mongoSweet{
		ID:        primitive.NewObjectID(),
		Name:      s.Name,
		Category:  s.Category,
		Price:     price,
		Quantity:  s.Quantity,
		CreatedAt: s.CreatedAt.UTC().Truncate(time.Millisecond),
		UpdatedAt: s.UpdatedAt.UTC().Truncate(time.Millisecond),
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert sweet: %w", err)
	}
	return doc.toDomain(), nil
}

// FindByID retrieves a sweet. Malformed ids are reported as not found.
func (r *SweetRepository) FindByID(ctx context.Context, id string) (*domain.Sweet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrSweetNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoSweet
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSweetNotFound
		}
		return nil, fmt.Errorf("find sweet: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns the sweets matching filter, newest first.
func (r *SweetRepository) List(ctx context.Context, filter domain.SweetFilter) ([]*domain.Sweet, error) {
	query, err := buildFilter(filter)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, query, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, fmt.Errorf("list sweets: %w", err)
	}
	var docs []mongoSweet
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sweets: %w", err)
	}

	out := make([]*domain.Sweet, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, nil
}

// Update sets the touched fields and returns the resulting document.
func (r *SweetRepository) Update(ctx context.Context, id string, patch domain.SweetPatch) (*domain.Sweet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrSweetNotFound
	}

	set := bson.M{"updated_at": r.now().UTC().Truncate(time.Millisecond)}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Price != nil {
		price, err := toDecimal128(*patch.Price)
		if err != nil {
			return nil, err
		}
		set["price"] = price
	}
	if patch.Quantity != nil {
		set["quantity"] = *patch.Quantity
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoSweet
	err = r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSweetNotFound
		}
		return nil, fmt.Errorf("update sweet: %w", err)
	}
	return doc.toDomain(), nil
}

// Delete removes a sweet permanently.
func (r *SweetRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrSweetNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete sweet: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrSweetNotFound
	}
	return nil
}

// AdjustQuantity applies delta with a single conditional FindOneAndUpdate.
// For decrements the filter requires quantity >= -delta, for increments
// quantity <= MaxInt-delta, so the guard and the write are evaluated
// atomically by the server.
func (r *SweetRepository) AdjustQuantity(ctx context.Context, id string, delta int) (*domain.Sweet, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrSweetNotFound
	}

	filter := bson.M{"_id": oid}
	switch {
	case delta < 0:
		filter["quantity"] = bson.M{"$gte": -delta}
	case delta > 0:
		filter["quantity"] = bson.M{"$lte": math.MaxInt - delta}
	}
	update := bson.M{
		"$inc": bson.M{"quantity": delta},
		"$set": bson.M{"updated_at": r.now().UTC().Truncate(time.Millisecond)},
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc mongoSweet
	err = r.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("adjust quantity: %w", err)
	}

	// No match: either the sweet is gone or the guard rejected the change.
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("adjust quantity: %w", err)
	}
	if n == 0 {
		return nil, domain.ErrSweetNotFound
	}
	if delta > 0 {
		return nil, domain.ErrStockOverflow
	}
	return nil, domain.ErrInsufficientStock
}

// DeleteAll wipes the collection. Used by the seed command.
func (r *SweetRepository) DeleteAll(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("delete sweets: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates necessary indexes on the sweets collection.
func (r *SweetRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: newestFirst},
		{Keys: bson.D{{Key: "price", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// buildFilter translates a domain filter into a query document. Text filters
// are escaped so user input is matched literally.
func buildFilter(f domain.SweetFilter) (bson.M, error) {
	query := bson.M{}
	if f.Name != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Name), Options: "i"}
	}
	if f.Category != "" {
		query["category"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Category), Options: "i"}
	}
	if f.PriceMin != nil || f.PriceMax != nil {
		price := bson.M{}
		if f.PriceMin != nil {
			v, err := toDecimal128(*f.PriceMin)
			if err != nil {
				return nil, err
			}
			price["$gte"] = v
		}
		if f.PriceMax != nil {
			v, err := toDecimal128(*f.PriceMax)
			if err != nil {
				return nil, err
			}
			price["$lte"] = v
		}
		query["price"] = price
	}
	return query, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("%w: price is out of range", domain.ErrValidation)
	}
	return v, nil
}

func (d mongoSweet) toDomain() *domain.Sweet {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		price = decimal.Zero
	}
	return &domain.Sweet{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Category:  d.Category,
		Price:     price,
		Quantity:  d.Quantity,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}
