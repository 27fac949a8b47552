package model

import "go.mongodb.org/mongo-driver/bson/primitive"

type SellLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Email        string             `bson:"email" json:"email"`
	Amount       int64              `bson:"amount" json:"amount"`
	PricePerCoin int64              `bson:"price_per_coin" json:"price_per_coin"`
	TotalEarned  int64              `bson:"total_earned" json:"total_earned"`
	Timestamp    primitive.DateTime `bson:"timestamp" json:"timestamp"`
}
