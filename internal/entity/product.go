package entity

import "github.com/uptrace/bun"

// Product is looked up by name from order items.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID        int64   `bun:",pk,autoincrement" json:"id"`
	Name      string  `bun:"name,notnull,unique" json:"name"`
	SKU       string  `bun:"sku,notnull" json:"sku"`
	UnitPrice float64 `bun:"unit_price,notnull" json:"unit_price"`
}
