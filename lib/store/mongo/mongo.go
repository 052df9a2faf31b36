// Package mongo implements the store interface for MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mgo "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarancss/cryptowallet/lib/price/types"
	"github.com/tarancss/cryptowallet/lib/store"
)

const (
	database   = "cryptowallet"
	collection = "quotes"
)

// Mongo implements a connection to a MongoDB database.
type Mongo struct {
	c *mgo.Client
}

// quoteDoc is the document layout of a snapshot.
type quoteDoc struct {
	Key        string         `bson:"_id"`
	Quotes     types.QuoteSet `bson:"quotes"`
	Source     string         `bson:"source"`
	CapturedAt int64          `bson:"capturedAt"` // unix nanoseconds, bson dates only keep milliseconds
}

// New returns a Mongo client connection to the specified MongoDB database uri.
func New(uri string) (*Mongo, error) {
	// get a client
	c, err := mgo.NewClient(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo DB in %s: %w", uri, err)
	}
	// connect client
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	err = c.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to mongo DB: %w", err)
	}

	return &Mongo{c: c}, nil
}

// CloseMongo will close a database connection. Must be called at termination time.
func (m *Mongo) CloseMongo() error {
	return m.c.Disconnect(context.Background())
}

func (m *Mongo) col() *mgo.Collection {
	return m.c.Database(database).Collection(collection)
}

// LoadQuotes loads from db the snapshot stored under key.
func (m *Mongo) LoadQuotes(ctx context.Context, key string) (types.Snapshot, error) {
	var doc quoteDoc

	err := m.col().FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mgo.ErrNoDocuments) {
		return types.Snapshot{}, store.ErrDataNotFound
	}

	if err != nil {
		return types.Snapshot{}, fmt.Errorf("loading quotes %s: %w", key, err)
	}

	return types.Snapshot{
		Quotes:     doc.Quotes,
		Source:     types.Source(doc.Source),
		CapturedAt: time.Unix(0, doc.CapturedAt),
	}, nil
}

// SaveQuotes saves to db the snapshot under key, replacing any previous one.
func (m *Mongo) SaveQuotes(ctx context.Context, key string, s types.Snapshot) error {
	_, err := m.col().UpdateOne(ctx,
		bson.M{"_id": key}, // filter
		bson.D{ // update
			{
				Key: "$set", Value: bson.D{
					{Key: "quotes", Value: s.Quotes},
					{Key: "source", Value: string(s.Source)},
					{Key: "capturedAt", Value: s.CapturedAt.UnixNano()},
				},
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving quotes %s: %w", key, err)
	}

	return nil
}

// DeleteQuotes deletes from db the snapshot stored under key.
func (m *Mongo) DeleteQuotes(ctx context.Context, key string) error {
	_, err := m.col().DeleteOne(ctx, bson.M{"_id": key}, options.Delete())

	return err
}
