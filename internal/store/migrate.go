package store

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*Customer)(nil),
		(*Product)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("store: create table for %T: %w", model, err)
		}
	}

	_, err := db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		ForeignKey(`("customer_id") REFERENCES "customers" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: create table for users: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*User)(nil)).
		Index("users_customer_id_idx").
		Column("customer_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: create users index: %w", err)
	}
	return nil
}
