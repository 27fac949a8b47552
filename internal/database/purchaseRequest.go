package database

import (
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db Database) PurchaseRequestInsert(ctx context.Context, r model.PurchaseRequest) (primitive.ObjectID, error) {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := db.Collection(CollectionPurchaseRequests).InsertOne(ctx, r)
	if err != nil {
		return primitive.NilObjectID, errors.Wrapf(err, "error inserting PurchaseRequest: %+v", r)
	}
	return r.ID, nil
}

func (db Database) PurchaseRequestFindOne(ctx context.Context, requestID primitive.ObjectID) (model.PurchaseRequest, error) {
	var r model.PurchaseRequest
	err := db.Collection(CollectionPurchaseRequests).FindOne(ctx, bson.M{"_id": requestID}).Decode(&r)
	return r, errors.Wrapf(err, "error finding PurchaseRequest with ID: %s", requestID.Hex())
}

// PurchaseRequestsFind lists requests matching f, newest first.
func (db Database) PurchaseRequestsFind(ctx context.Context, f model.PurchaseRequestFilter) ([]model.PurchaseRequest, error) {
	rs := []model.PurchaseRequest{}
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.UserEmail != "" {
		q["user_email"] = f.UserEmail
	}
	c, err := db.Collection(CollectionPurchaseRequests).Find(ctx, q, options.Find().SetSort(sortTimestampDesc))
	if err != nil {
		return rs, errors.Wrapf(err, "error finding PurchaseRequests, filter: %+v", f)
	}
	err = c.All(ctx, &rs)
	return rs, errors.Wrapf(err, "error decoding PurchaseRequests, filter: %+v", f)
}

// PurchaseRequestSettle moves a pending request to status and stamps the matching settlement time.
// A request that is no longer pending is left alone and ErrNoDocumentsModified is returned.
func (db Database) PurchaseRequestSettle(
	ctx context.Context, requestID primitive.ObjectID, status model.PurchaseStatus, at primitive.DateTime,
) error {
	set := bson.M{"status": status}
	switch status {
	case model.StatusApproved:
		set["approved_at"] = at
	case model.StatusRejected:
		set["rejected_at"] = at
	default:
		return errors.Errorf("invalid settlement status: %s", status)
	}
	res, err := db.Collection(CollectionPurchaseRequests).UpdateOne(
		ctx,
		bson.M{"_id": requestID, "status": model.StatusPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return errors.Wrapf(err, "error settling PurchaseRequest, ID: %s, status: %s", requestID.Hex(), status)
	}
	if res.MatchedCount == 0 {
		return errors.Wrapf(ErrNoDocumentsModified, "PurchaseRequest not settled, ID: %s, status: %s",
			requestID.Hex(), status)
	}
	return nil
}
