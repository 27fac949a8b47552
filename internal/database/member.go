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

// prefixUpperBound sorts after every character an email can hold, so [p, p+prefixUpperBound) is a prefix range.
const prefixUpperBound = "\uf8ff"

func (db Database) MemberInsert(ctx context.Context, m model.Member) (primitive.ObjectID, error) {
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	_, err := db.Collection(CollectionMembers).InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, errors.Wrapf(ErrDuplicateKey, "Member already exists, email: %s", m.Email)
		}
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting Member: %+v", m)
	}
	return m.ID, nil
}

func (db Database) MemberFindByEmail(ctx context.Context, email string) (model.Member, error) {
	var m model.Member
	err := db.Collection(CollectionMembers).FindOne(ctx, bson.M{"email": email}).Decode(&m)
	return m, errors.Wrapf(err, "error finding Member with email: %s", email)
}

// MembersFindByEmailPrefix returns every member whose email starts with prefix, ordered by email.
func (db Database) MembersFindByEmailPrefix(ctx context.Context, prefix string) ([]model.Member, error) {
	ms := []model.Member{}
	c, err := db.Collection(CollectionMembers).Find(
		ctx,
		bson.M{"email": bson.M{"$gte": prefix, "$lt": prefix + prefixUpperBound}},
		options.Find().SetSort(bson.D{{Key: "email", Value: 1}}),
	)
	if err != nil {
		return ms, errors.Wrapf(err, "error finding Members with email prefix: %s", prefix)
	}
	err = c.All(ctx, &ms)
	return ms, errors.Wrapf(err, "error decoding Members with email prefix: %s", prefix)
}

// MemberUpdateHoldings writes coins, balance and last_modified of m,
// as long as the stored member still has m.Version.
func (db Database) MemberUpdateHoldings(ctx context.Context, m model.Member) error {
	res, err := db.Collection(CollectionMembers).UpdateOne(
		ctx,
		versionFilter(m.ID, m.Version),
		bson.M{
			"$set": bson.M{
				"coins":         m.Coins,
				"balance":       m.Balance,
				"last_modified": m.LastModified,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return errors.Wrapf(err, "error updating Member holdings, email: %s", m.Email)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrVersionConflict, "Member not updated, email: %s, version: %d", m.Email, m.Version)
	}
	return nil
}
