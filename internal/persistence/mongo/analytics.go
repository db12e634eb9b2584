// Package mongo holds the analytics store for canonical deal documents.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tripdeck/concierge/internal/persistence"
)

type analyticsStore struct {
	deals   *mongo.Collection
	timeout time.Duration
}

// Connect dials the analytics store and returns the deal-document
// collection handle.
func Connect(ctx context.Context, uri, database string, timeout time.Duration) (persistence.AnalyticsStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to analytics store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("analytics store unreachable: %w", err)
	}

	return &analyticsStore{
		deals:   client.Database(database).Collection("deals"),
		timeout: timeout,
	}, nil
}

// NewAnalyticsStore wraps an existing collection, used by tests.
func NewAnalyticsStore(coll *mongo.Collection, timeout time.Duration) persistence.AnalyticsStore {
	return &analyticsStore{deals: coll, timeout: timeout}
}

func (s *analyticsStore) UpsertDocument(ctx context.Context, doc persistence.DealDocument) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{"referenceId": doc.ReferenceID, "type": doc.Type}
	update := bson.M{"$set": doc}

	_, err := s.deals.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert deal document %s/%s: %w", doc.ReferenceID, doc.Type, err)
	}

	return nil
}
