package entity

import (
	"github.com/uptrace/bun"
)

// Order represents a purchase order stored in the relational database.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID         int64   `bun:",pk,autoincrement" json:"id"`
	CustomerID int64   `bun:"customer_id,notnull" json:"customer_id"`
	Total      float64 `bun:"total,notnull" json:"total"`
	Status     string  `bun:"status,notnull" json:"status"`

	Customer *Customer   `bun:"rel:belongs-to,join:customer_id=id" json:"customer,omitempty"`
	Items    []OrderItem `bun:"rel:has-many,join:id=order_id" json:"items,omitempty"`
}

// OrderItem is a single line of an order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID          int64   `bun:",pk,autoincrement" json:"id"`
	OrderID     int64   `bun:"order_id,notnull" json:"order_id"`
	ProductName string  `bun:"product_name,notnull" json:"product_name"`
	Quantity    int     `bun:"quantity,notnull" json:"quantity"`
	Price       float64 `bun:"price,notnull" json:"price"`

	Product *Product `bun:"rel:belongs-to,join:product_name=name" json:"product,omitempty"`
}
