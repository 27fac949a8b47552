package database

import (
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db Database) CoinPriceHistoryInsert(ctx context.Context, p model.CoinPrice) (primitive.ObjectID, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := db.Collection(CollectionCoinPriceHistory).InsertOne(ctx, p)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting CoinPrice: %+v", p)
	}
	return p.ID, nil
}

func (db Database) CoinPriceHistoryFindAll(ctx context.Context) ([]model.CoinPrice, error) {
	ps := []model.CoinPrice{}
	c, err := db.Collection(CollectionCoinPriceHistory).Find(ctx, bson.M{}, options.Find().SetSort(sortTimestampAsc))
	if err != nil {
		return ps, errors.Wrap(err, "error finding CoinPrice history")
	}
	err = c.All(ctx, &ps)
	return ps, errors.Wrap(err, "error decoding CoinPrice history")
}

func (db Database) CurrentPriceUpsert(ctx context.Context, p model.CoinPrice) error {
	_, err := db.Collection(CollectionCoin).UpdateOne(
		ctx,
		bson.M{"_id": currentPriceID},
		bson.M{"$set": bson.M{"price": p.Price, "timestamp": p.Timestamp}},
		options.Update().SetUpsert(true),
	)
	return errors.Wrapf(err, "error upserting current price: %d", p.Price)
}

func (db Database) CurrentPriceFind(ctx context.Context) (model.CoinPrice, error) {
	var p model.CoinPrice
	err := db.Collection(CollectionCoin).FindOne(
		ctx,
		bson.M{"_id": currentPriceID},
		options.FindOne().SetProjection(bson.M{"_id": 0}),
	).Decode(&p)
	return p, errors.Wrap(err, "error finding current price")
}
