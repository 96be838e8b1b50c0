package seeder

import (
	"context"
	"fmt"
	"math"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/database"
	"github.com/Additional-Code/orderlens/internal/entity"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Statuses cycles through the seeded orders.
var Statuses = []string{"pending", "processing", "shipped", "delivered", "cancelled"}

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	sizes  config.Seed
	logger *zap.Logger
}

// Summary reports what a seed run wrote.
type Summary struct {
	Customers int
	Products  int
	Orders    int
	Items     int
	Skipped   bool
}

// New constructs a Seeder backed by the primary database connection.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, sizes: cfg.Seed, logger: logger}
}

// Seed writes a deterministic data set unless customers already exist.
func (s *Seeder) Seed(ctx context.Context) (Summary, error) {
	existing, err := s.db.NewSelect().Model((*entity.Customer)(nil)).Count(ctx)
	if err != nil {
		return Summary{}, err
	}
	if existing > 0 {
		if s.logger != nil {
			s.logger.Info("seed skipped; data present", zap.Int("customers", existing))
		}
		return Summary{Skipped: true}, nil
	}

	var sum Summary
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		customers := buildCustomers(s.sizes.Customers)
		if _, err := tx.NewInsert().Model(&customers).Exec(ctx); err != nil {
			return fmt.Errorf("insert customers: %w", err)
		}

		products := buildProducts(s.sizes.Products)
		if _, err := tx.NewInsert().Model(&products).Exec(ctx); err != nil {
			return fmt.Errorf("insert products: %w", err)
		}

		orders, items := buildOrders(s.sizes.Orders, s.sizes.ItemsPerOrder, customers, products)
		if len(orders) > 0 {
			if _, err := tx.NewInsert().Model(&orders).Exec(ctx); err != nil {
				return fmt.Errorf("insert orders: %w", err)
			}
		}

		var lines []entity.OrderItem
		for i := range orders {
			for _, item := range items[i] {
				item.OrderID = orders[i].ID
				lines = append(lines, item)
			}
		}
		if len(lines) > 0 {
			if _, err := tx.NewInsert().Model(&lines).Exec(ctx); err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}

		sum = Summary{
			Customers: len(customers),
			Products:  len(products),
			Orders:    len(orders),
			Items:     len(lines),
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	if s.logger != nil {
		s.logger.Info("seeded sample data",
			zap.Int("customers", sum.Customers),
			zap.Int("products", sum.Products),
			zap.Int("orders", sum.Orders),
			zap.Int("items", sum.Items),
		)
	}
	return sum, nil
}

func buildCustomers(n int) []entity.Customer {
	out := make([]entity.Customer, n)
	for i := range out {
		out[i] = entity.Customer{
			Name:  fmt.Sprintf("Customer %03d", i+1),
			Email: fmt.Sprintf("customer%03d@example.com", i+1),
		}
	}
	return out
}

func buildProducts(n int) []entity.Product {
	out := make([]entity.Product, n)
	for i := range out {
		out[i] = entity.Product{
			Name:      fmt.Sprintf("Product %02d", i+1),
			SKU:       fmt.Sprintf("SKU-%04d", i+1),
			UnitPrice: 5 + float64(i)*2.5,
		}
	}
	return out
}

func buildOrders(n, perOrder int, customers []entity.Customer, products []entity.Product) ([]entity.Order, [][]entity.OrderItem) {
	orders := make([]entity.Order, n)
	items := make([][]entity.OrderItem, n)
	for i := range orders {
		var total float64
		lines := make([]entity.OrderItem, perOrder)
		for m := range lines {
			p := products[(i+m)%len(products)]
			qty := m%3 + 1
			lines[m] = entity.OrderItem{
				ProductName: p.Name,
				Quantity:    qty,
				Price:       p.UnitPrice,
			}
			total += p.UnitPrice * float64(qty)
		}
		orders[i] = entity.Order{
			CustomerID: customers[i%len(customers)].ID,
			Total:      math.Round(total*100) / 100,
			Status:     Statuses[i%len(Statuses)],
		}
		items[i] = lines
	}
	return orders, items
}
