package database

import (
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db Database) ItemInsert(ctx context.Context, i model.MarketItem) (primitive.ObjectID, error) {
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	_, err := db.Collection(CollectionMarketItems).InsertOne(ctx, i)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting MarketItem: %+v", i)
	}
	return i.ID, nil
}

func (db Database) ItemFindOne(ctx context.Context, itemID primitive.ObjectID) (model.MarketItem, error) {
	var i model.MarketItem
	err := db.Collection(CollectionMarketItems).FindOne(ctx, bson.M{"_id": itemID}).Decode(&i)
	return i, errors.Wrapf(err, "error finding MarketItem with ID: %s", itemID.Hex())
}

func (db Database) ItemsFindAll(ctx context.Context) ([]model.MarketItem, error) {
	is := []model.MarketItem{}
	c, err := db.Collection(CollectionMarketItems).Find(ctx, bson.M{}, options.Find().SetSort(sortTimestampAsc))
	if err != nil {
		return is, errors.Wrap(err, "error finding MarketItems")
	}
	err = c.All(ctx, &is)
	return is, errors.Wrap(err, "error decoding MarketItems")
}

// ItemUpdate replaces the catalog fields of i, guarded by i.Version.
func (db Database) ItemUpdate(ctx context.Context, i model.MarketItem) error {
	res, err := db.Collection(CollectionMarketItems).UpdateOne(
		ctx,
		versionFilter(i.ID, i.Version),
		bson.M{
			"$set": bson.M{
				"name":      i.Name,
				"price":     i.Price,
				"stock":     i.Stock,
				"timestamp": i.Timestamp,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return errors.Wrapf(err, "error updating MarketItem, ID: %s", i.ID.Hex())
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrVersionConflict, "MarketItem not updated, ID: %s, version: %d", i.ID.Hex(), i.Version)
	}
	return nil
}

func (db Database) ItemDelete(ctx context.Context, itemID primitive.ObjectID) error {
	res, err := db.Collection(CollectionMarketItems).DeleteOne(ctx, bson.M{"_id": itemID})
	if err != nil {
		return errors.Wrapf(err, "error deleting MarketItem, ID: %s", itemID.Hex())
	}
	if res.DeletedCount == 0 {
		return errors.Wrapf(mongo.ErrNoDocuments, "MarketItem not deleted, ID: %s", itemID.Hex())
	}
	return nil
}
