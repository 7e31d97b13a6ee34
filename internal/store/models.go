package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Product is a catalog entry. Products are visible to every principal.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p" json:"-" msgpack:"-"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id" msgpack:"id"`
	Name         string    `bun:"name,notnull" json:"name" msgpack:"name"`
	Model        string    `bun:"model,notnull" json:"model" msgpack:"model"`
	Description  string    `bun:"description" json:"description" msgpack:"description"`
	Manufacturer string    `bun:"manufacturer,notnull" json:"manufacturer" msgpack:"manufacturer"`
	// Price in cents.
	Price     int64     `bun:"price,notnull" json:"price" msgpack:"price"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at" msgpack:"created_at"`
}

// Customer owns users. An authenticated principal is a customer.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:c" json:"-" msgpack:"-"`

	ID   uuid.UUID `bun:"id,pk,type:uuid" json:"id" msgpack:"id"`
	Name string    `bun:"name,notnull" json:"name" msgpack:"name"`
}

// User belongs to exactly one customer. The password never leaves the store:
// it is excluded from JSON output and from cached listings.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-" msgpack:"-"`

	ID         uuid.UUID `bun:"id,pk,type:uuid" json:"id" msgpack:"id"`
	Username   string    `bun:"username,notnull" json:"username" msgpack:"username"`
	Email      string    `bun:"email,notnull" json:"email" msgpack:"email"`
	Password   string    `bun:"password,notnull" json:"-" msgpack:"-"`
	CustomerID uuid.UUID `bun:"customer_id,type:uuid,notnull" json:"customer_id" msgpack:"customer_id"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at" msgpack:"created_at"`
}

// UserOwner returns the customer a user belongs to.
func UserOwner(u *User) uuid.UUID {
	if u == nil {
		return uuid.Nil
	}
	return u.CustomerID
}

// AssignUserOwner moves u under customer.
func AssignUserOwner(u *User, customer uuid.UUID) *User {
	if u != nil {
		u.CustomerID = customer
	}
	return u
}
