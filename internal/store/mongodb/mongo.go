package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/store"
	"kasapos/backend/internal/xid"
)

const (
	productsCollection     = "products"
	transactionsCollection = "transactions"
)

// Store is the remote document store holding the catalog and the
// append-only transaction log.
type Store struct {
	products     *mongo.Collection
	transactions *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		products:     db.Collection(productsCollection),
		transactions: db.Collection(transactionsCollection),
	}
}

func (s *Store) CreateIndexes(ctx context.Context) error {
	_, err := s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "barcode", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}

	_, err = s.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "branch", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.products.Database().Client().Disconnect(ctx)
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "barcode", Value: 1}})
	cursor, err := s.products.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, nil
}

func (s *Store) ImportProducts(ctx context.Context, products []domain.Product) error {
	count, err := s.products.EstimatedDocumentCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return store.ErrCatalogNotEmpty
	}

	docs := make([]interface{}, 0, len(products))
	for _, p := range products {
		if err := store.ValidateProduct(p); err != nil {
			return err
		}
		if p.ID == "" {
			p.ID = xid.New("prd")
		}
		doc, err := toProductDocument(p)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil
	}

	if _, err := s.products.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to import products: %w", err)
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx domain.Transaction) error {
	doc, err := toTransactionDocument(tx)
	if err != nil {
		return err
	}

	_, err = s.transactions.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// replayed record already landed
			return nil
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, branch string, from time.Time, to time.Time) ([]domain.Transaction, error) {
	filter := bson.M{"created_at": bson.M{"$gte": from.UTC(), "$lt": to.UTC()}}
	if branch != "" {
		filter["branch"] = branch
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := s.transactions.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]domain.Transaction, 0, 64)
	for cursor.Next(ctx) {
		var doc transactionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		tx, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
