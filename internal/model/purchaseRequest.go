package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type PurchaseStatus string

const (
	StatusPending  PurchaseStatus = "pending"
	StatusApproved PurchaseStatus = "approved"
	StatusRejected PurchaseStatus = "rejected"
)

type PurchaseRequest struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserEmail  string              `bson:"user_email" json:"user_email"`
	ItemName   string              `bson:"item_name" json:"item_name"`
	ItemID     primitive.ObjectID  `bson:"item_id" json:"item_id"`
	Quantity   int64               `bson:"quantity" json:"quantity"`
	TotalPrice int64               `bson:"total_price" json:"total_price"`
	Status     PurchaseStatus      `bson:"status" json:"status"`
	Timestamp  primitive.DateTime  `bson:"timestamp" json:"timestamp"`
	ApprovedAt *primitive.DateTime `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	RejectedAt *primitive.DateTime `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
}

func (r PurchaseRequest) Pending() bool {
	return r.Status == StatusPending
}

// PurchaseRequestFilter narrows a purchase request listing, zero fields match everything.
type PurchaseRequestFilter struct {
	Status    PurchaseStatus
	UserEmail string
}
