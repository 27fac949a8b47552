package database

import (
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db Database) SellLogInsert(ctx context.Context, l model.SellLog) (primitive.ObjectID, error) {
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	_, err := db.Collection(CollectionSellLogs).InsertOne(ctx, l)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting SellLog: %+v", l)
	}
	return l.ID, nil
}

func (db Database) SellLogsFindByEmail(ctx context.Context, email string) ([]model.SellLog, error) {
	ls := []model.SellLog{}
	c, err := db.Collection(CollectionSellLogs).Find(
		ctx,
		bson.M{"email": email},
		options.Find().SetSort(sortTimestampDesc),
	)
	if err != nil {
		return ls, errors.Wrapf(err, "error finding SellLogs with email: %s", email)
	}
	err = c.All(ctx, &ls)
	return ls, errors.Wrapf(err, "error decoding SellLogs with email: %s", email)
}
