package model

import "go.mongodb.org/mongo-driver/bson/primitive"

// CoinPrice is one entry of the append-only price history, and also the shape of the current price.
type CoinPrice struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Price     int64              `bson:"price" json:"price"`
	Timestamp primitive.DateTime `bson:"timestamp" json:"timestamp"`
}
