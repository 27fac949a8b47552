package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

type MarketItem struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Price     int64              `bson:"price" json:"price"`
	Stock     int64              `bson:"stock" json:"stock"`
	Timestamp primitive.DateTime `bson:"timestamp" json:"timestamp"`
	Version   int64              `bson:"version" json:"-"`
}

// ItemPatch holds the catalog fields an admin may change, nil fields are left as they are.
type ItemPatch struct {
	Name  *string `json:"name"`
	Price *int64  `json:"price"`
	Stock *int64  `json:"stock"`
}

func (p ItemPatch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.Stock == nil
}

func (i *MarketItem) UpdateWith(p ItemPatch, now time.Time) {
	if p.Name != nil {
		i.Name = *p.Name
	}
	if p.Price != nil {
		i.Price = *p.Price
	}
	if p.Stock != nil {
		i.Stock = *p.Stock
	}
	i.Timestamp = primitive.NewDateTimeFromTime(now)
}
