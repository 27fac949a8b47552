package database

import (
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"time"
)

const (
	DefaultName                = "coin_market_db"
	CollectionMembers          = "members"
	CollectionMarketItems      = "marketItems"
	CollectionPurchaseRequests = "purchaseRequests"
	CollectionCoinPriceHistory = "coinPriceHistory"
	CollectionCoin             = "coin"
	CollectionSellLogs         = "sellLogs"

	currentPriceID = "currentPrice"
)

// Database is the MongoDB document store.
// Transactions need a replica set, without them every write still carries its own guard.
type Database struct {
	*mongo.Database
	Transactions  bool
	ChangeStreams bool
	PollInterval  time.Duration
}

var (
	ErrNoDocumentsModified = errors.New("no documents modified")
	ErrVersionConflict     = errors.New("document version conflict")
	ErrDuplicateKey        = errors.New("duplicate key")
)

func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || mongo.IsDuplicateKeyError(err)
}

func ConnectDB(ctx context.Context, dbURI string, name string) (*mongo.Client, error) {
	c, err := mongo.Connect(ctx, options.Client().ApplyURI(dbURI))
	if err != nil {
		return nil, err
	}
	db := c.Database(name)

	_, err = db.Collection(CollectionMembers).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating index on collection: %s", CollectionMembers)
	}

	_, err = db.Collection(CollectionPurchaseRequests).Indexes().CreateMany(
		ctx,
		[]mongo.IndexModel{
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "user_email", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating indexes on collection: %s", CollectionPurchaseRequests)
	}

	_, err = db.Collection(CollectionCoinPriceHistory).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: 1}}},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating index on collection: %s", CollectionCoinPriceHistory)
	}

	_, err = db.Collection(CollectionSellLogs).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}, {Key: "timestamp", Value: -1}}},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating index on collection: %s", CollectionSellLogs)
	}

	return c, nil
}

// WithTransaction runs fn inside a client session transaction.
// fn may be called more than once when the server reports a transient error.
func (db Database) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !db.Transactions {
		return fn(ctx)
	}
	sess, err := db.Client().StartSession()
	if err != nil {
		return errors.Wrap(err, "error starting session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

// versionFilter matches a document only while it still has the version it was read with.
// Documents written without a version field count as version 0.
func versionFilter(id primitive.ObjectID, version int64) bson.M {
	if version == 0 {
		return bson.M{"_id": id, "version": bson.M{"$in": bson.A{0, nil}}}
	}
	return bson.M{"_id": id, "version": version}
}

var (
	sortTimestampAsc  = bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}
	sortTimestampDesc = bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}
)
