package scenario

import (
	"github.com/Additional-Code/orderlens/internal/entity"
	"github.com/Additional-Code/orderlens/internal/store"
)

func ordersFromRows(rows []store.Row) []entity.Order {
	orders := make([]entity.Order, len(rows))
	for i, row := range rows {
		orders[i] = entity.Order{
			ID:         row.Int64("id"),
			CustomerID: row.Int64("customer_id"),
			Total:      row.Float64("total"),
			Status:     row.String("status"),
		}
	}
	return orders
}

func customerFromRow(row store.Row) entity.Customer {
	return entity.Customer{
		ID:    row.Int64("id"),
		Name:  row.String("name"),
		Email: row.String("email"),
	}
}

func itemFromRow(row store.Row) entity.OrderItem {
	return entity.OrderItem{
		ID:          row.Int64("id"),
		OrderID:     row.Int64("order_id"),
		ProductName: row.String("product_name"),
		Quantity:    row.Int("quantity"),
		Price:       row.Float64("price"),
	}
}

func productFromRow(row store.Row) entity.Product {
	return entity.Product{
		ID:        row.Int64("id"),
		Name:      row.String("name"),
		SKU:       row.String("sku"),
		UnitPrice: row.Float64("unit_price"),
	}
}
