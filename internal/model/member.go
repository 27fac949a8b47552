package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Normalize maps a missing or unknown role to RoleUser.
func (r Role) Normalize() Role {
	if r == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// LandingRoute is the view a member is sent to after logging in.
func (r Role) LandingRoute() string {
	if r.Normalize() == RoleAdmin {
		return "/admin"
	}
	return "/market"
}

type Member struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	Role         Role               `bson:"role" json:"role"`
	Coins        int64              `bson:"coins" json:"coins"`
	Balance      int64              `bson:"balance" json:"balance"`
	LastModified primitive.DateTime `bson:"last_modified" json:"last_modified"`
	Version      int64              `bson:"version" json:"-"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
