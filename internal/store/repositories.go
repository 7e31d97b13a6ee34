package store

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewProductRepository returns the bun backed product repository.
func NewProductRepository(db *bun.DB) repository.Repository[*Product] {
	return repository.NewRepository[*Product](db, repository.ModelHandlers[*Product]{
		NewRecord: func() *Product { return &Product{} },
		GetID: func(p *Product) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID:         func(p *Product, id uuid.UUID) { p.ID = id },
		GetIdentifier: func() string { return "name" },
	})
}

// NewCustomerRepository returns the bun backed customer repository.
func NewCustomerRepository(db *bun.DB) repository.Repository[*Customer] {
	return repository.NewRepository[*Customer](db, repository.ModelHandlers[*Customer]{
		NewRecord: func() *Customer { return &Customer{} },
		GetID: func(c *Customer) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID:         func(c *Customer, id uuid.UUID) { c.ID = id },
		GetIdentifier: func() string { return "name" },
	})
}

// NewUserRepository returns the bun backed user repository.
func NewUserRepository(db *bun.DB) repository.Repository[*User] {
	return repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID:         func(u *User, id uuid.UUID) { u.ID = id },
		GetIdentifier: func() string { return "email" },
	})
}
