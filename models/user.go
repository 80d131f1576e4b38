package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered brand user. Accounts start as "pending" and
// are switched to "approved" by an operator before login is allowed.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"` // Password is not returned in JSON
	BrandName string             `bson:"brand_name,omitempty" json:"brand_name,omitempty"`
	Status    string             `bson:"status" json:"status"` // pending, approved, disabled
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
