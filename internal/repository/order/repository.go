package order

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderlens/internal/database"
	"github.com/Additional-Code/orderlens/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/orderlens/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// DefaultPageSize applies when a caller leaves the page size unset.
const DefaultPageSize = 20

// Repository encapsulates read/write access for orders. Its list and
// update methods issue a fixed number of statements regardless of how
// many orders are involved.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists an order and its items in one transaction. The total is
// derived from the items.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.Int64("order.customer_id", order.CustomerID)))
	defer span.End()

	var total float64
	for _, item := range order.Items {
		total += item.Price * float64(item.Quantity)
	}
	order.Total = total

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return nil
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
		}
		_, err := tx.NewInsert().Model(&order.Items).Exec(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order with its customer and items using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().
		Model(order).
		Relation("Customer").
		Relation("Items", orderItems).
		Where("o.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// ListWithCustomers joins each order to its customer in a single statement.
func (r *Repository) ListWithCustomers(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListWithCustomers")
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Relation("Customer").
		Order("o.id ASC").
		Scan(ctx)
	return orders, r.fail(span, err)
}

// ListWithDetails loads orders joined to customers plus all of their items
// in one extra statement.
func (r *Repository) ListWithDetails(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListWithDetails")
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Relation("Customer").
		Relation("Items", orderItems).
		Order("o.id ASC").
		Scan(ctx)
	return orders, r.fail(span, err)
}

// FullReport loads orders, customers, items and the products the items
// reference. Products are fetched once for all distinct names.
func (r *Repository) FullReport(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.FullReport")
	defer span.End()

	orders, err := r.ListWithDetails(ctx)
	if err != nil {
		return nil, r.fail(span, err)
	}

	seen := make(map[string]struct{})
	var names []string
	for _, order := range orders {
		for _, item := range order.Items {
			if _, ok := seen[item.ProductName]; ok {
				continue
			}
			seen[item.ProductName] = struct{}{}
			names = append(names, item.ProductName)
		}
	}
	if len(names) == 0 {
		return orders, nil
	}

	var products []entity.Product
	err = r.reader.NewSelect().
		Model(&products).
		Where("p.name IN (?)", bun.In(names)).
		Scan(ctx)
	if err != nil {
		return nil, r.fail(span, err)
	}

	byName := make(map[string]*entity.Product, len(products))
	for i := range products {
		byName[products[i].Name] = &products[i]
	}
	for i := range orders {
		for j := range orders[i].Items {
			orders[i].Items[j].Product = byName[orders[i].Items[j].ProductName]
		}
	}
	span.SetAttributes(attribute.Int("report.products", len(products)))
	return orders, nil
}

// Page pushes offset/limit down to the store. Invalid bounds return an
// empty page without touching the database.
func (r *Repository) Page(ctx context.Context, page, size int) ([]entity.Order, error) {
	if page < 0 || size <= 0 || page > math.MaxInt/size {
		return []entity.Order{}, nil
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Page", trace.WithAttributes(
		attribute.Int("page", page),
		attribute.Int("size", size),
	))
	defer span.End()

	orders := make([]entity.Order, 0, size)
	err := r.reader.NewSelect().
		Model(&orders).
		Order("o.id ASC").
		Limit(size).
		Offset(page * size).
		Scan(ctx)
	return orders, r.fail(span, err)
}

// ByStatus returns orders in the given status.
func (r *Repository) ByStatus(ctx context.Context, status string) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ByStatus", trace.WithAttributes(attribute.String("order.status", status)))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Where("o.status = ?", status).
		Order("o.id ASC").
		Scan(ctx)
	return orders, r.fail(span, err)
}

// UpdateStatuses sets status on every id with one statement and reports
// the number of rows changed.
func (r *Repository) UpdateStatuses(ctx context.Context, ids []int64, status string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.UpdateStatuses", trace.WithAttributes(
		attribute.Int("order.count", len(ids)),
		attribute.String("order.status", status),
	))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", status).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return 0, r.fail(span, err)
	}
	return res.RowsAffected()
}

func (r *Repository) fail(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
	}
	return err
}

func orderItems(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("oi.id ASC")
}
