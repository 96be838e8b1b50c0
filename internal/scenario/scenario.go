// Package scenario holds the round-trip heavy data access paths: each
// function issues its statements one at a time through a store.Querier,
// exactly as written, so the cost of the pattern can be observed.
package scenario

import (
	"context"

	"github.com/Additional-Code/orderlens/internal/entity"
	"github.com/Additional-Code/orderlens/internal/store"
)

const (
	selectOrders         = "SELECT * FROM orders ORDER BY id"
	selectCustomerByID   = "SELECT * FROM customers WHERE id = ?"
	selectItemsByOrder   = "SELECT * FROM order_items WHERE order_id = ? ORDER BY id"
	selectProductByName  = "SELECT * FROM products WHERE name = ?"
	selectOrdersByStatus = "SELECT * FROM orders WHERE status = ? ORDER BY id"
	updateOrderStatus    = "UPDATE orders SET status = ? WHERE id = ?"
)

// OrderWithCustomer pairs an order with its customer.
type OrderWithCustomer struct {
	Order    entity.Order    `json:"order"`
	Customer entity.Customer `json:"customer"`
}

// OrderWithDetails adds the order lines.
type OrderWithDetails struct {
	Order    entity.Order       `json:"order"`
	Customer entity.Customer    `json:"customer"`
	Items    []entity.OrderItem `json:"items"`
}

// ReportItem pairs an order line with its product.
type ReportItem struct {
	Item    entity.OrderItem `json:"item"`
	Product entity.Product   `json:"product"`
}

// OrderReport is one entry of the full order report.
type OrderReport struct {
	Order    entity.Order    `json:"order"`
	Customer entity.Customer `json:"customer"`
	Items    []ReportItem    `json:"items"`
}

// Scenarios runs the statements against db. Errors from the store are
// returned as-is.
type Scenarios struct {
	db store.Querier
}

// New wires Scenarios to a Querier.
func New(db store.Querier) *Scenarios {
	return &Scenarios{db: db}
}

// OrdersWithCustomers loads every order, then looks its customer up one
// order at a time: 1+N round trips.
func (s *Scenarios) OrdersWithCustomers(ctx context.Context) ([]OrderWithCustomer, error) {
	orders, err := s.allOrders(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]OrderWithCustomer, 0, len(orders))
	for _, order := range orders {
		customer, err := s.customer(ctx, order.CustomerID)
		if err != nil {
			return nil, err
		}
		result = append(result, OrderWithCustomer{Order: order, Customer: customer})
	}
	return result, nil
}

// OrdersWithDetails also loads each order's items separately: 1+2N round trips.
func (s *Scenarios) OrdersWithDetails(ctx context.Context) ([]OrderWithDetails, error) {
	orders, err := s.allOrders(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]OrderWithDetails, 0, len(orders))
	for _, order := range orders {
		customer, err := s.customer(ctx, order.CustomerID)
		if err != nil {
			return nil, err
		}
		items, err := s.items(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, OrderWithDetails{Order: order, Customer: customer, Items: items})
	}
	return result, nil
}

// FullOrderReport nests a product lookup per item inside the per-order
// loop: 1 + 2N + (total items) round trips.
func (s *Scenarios) FullOrderReport(ctx context.Context) ([]OrderReport, error) {
	orders, err := s.allOrders(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]OrderReport, 0, len(orders))
	for _, order := range orders {
		customer, err := s.customer(ctx, order.CustomerID)
		if err != nil {
			return nil, err
		}
		items, err := s.items(ctx, order.ID)
		if err != nil {
			return nil, err
		}

		enriched := make([]ReportItem, 0, len(items))
		for _, item := range items {
			row, err := store.QueryOne(ctx, s.db, selectProductByName, item.ProductName)
			if err != nil {
				return nil, err
			}
			enriched = append(enriched, ReportItem{Item: item, Product: productFromRow(row)})
		}

		result = append(result, OrderReport{Order: order, Customer: customer, Items: enriched})
	}
	return result, nil
}

// AllOrdersPaginated fetches the whole table and slices
// [page*size, page*size+size) in memory. Out-of-range pages, a negative
// page or a non-positive size yield an empty page.
func (s *Scenarios) AllOrdersPaginated(ctx context.Context, page, size int) ([]entity.Order, error) {
	orders, err := s.allOrders(ctx)
	if err != nil {
		return nil, err
	}
	return slicePage(orders, page, size), nil
}

// OrdersByStatus filters on the unindexed status column.
func (s *Scenarios) OrdersByStatus(ctx context.Context, status string) ([]entity.Order, error) {
	rows, err := s.db.Query(ctx, selectOrdersByStatus, status)
	if err != nil {
		return nil, err
	}
	return ordersFromRows(rows), nil
}

// UpdateOrderStatuses issues one UPDATE per id. It stops at the first failure.
func (s *Scenarios) UpdateOrderStatuses(ctx context.Context, ids []int64, status string) error {
	for _, id := range ids {
		if err := s.db.Execute(ctx, updateOrderStatus, status, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenarios) allOrders(ctx context.Context) ([]entity.Order, error) {
	rows, err := s.db.Query(ctx, selectOrders)
	if err != nil {
		return nil, err
	}
	return ordersFromRows(rows), nil
}

func (s *Scenarios) customer(ctx context.Context, id int64) (entity.Customer, error) {
	row, err := store.QueryOne(ctx, s.db, selectCustomerByID, id)
	if err != nil {
		return entity.Customer{}, err
	}
	return customerFromRow(row), nil
}

func (s *Scenarios) items(ctx context.Context, orderID int64) ([]entity.OrderItem, error) {
	rows, err := s.db.Query(ctx, selectItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	items := make([]entity.OrderItem, len(rows))
	for i, row := range rows {
		items[i] = itemFromRow(row)
	}
	return items, nil
}

func slicePage(orders []entity.Order, page, size int) []entity.Order {
	if page < 0 || size <= 0 || len(orders) == 0 || page > (len(orders)-1)/size {
		return []entity.Order{}
	}
	start := page * size
	if start >= len(orders) {
		return []entity.Order{}
	}
	end := start + size
	if end > len(orders) {
		end = len(orders)
	}
	return orders[start:end]
}
