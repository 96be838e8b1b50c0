package entity

import "github.com/uptrace/bun"

// Customer places orders.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:customer"`

	ID    int64  `bun:",pk,autoincrement" json:"id"`
	Name  string `bun:"name,notnull" json:"name"`
	Email string `bun:"email,notnull" json:"email"`
}
