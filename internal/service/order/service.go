package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderlens/internal/cache"
	"github.com/Additional-Code/orderlens/internal/config"
	"github.com/Additional-Code/orderlens/internal/entity"
	repo "github.com/Additional-Code/orderlens/internal/repository/order"
	"github.com/Additional-Code/orderlens/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderlens/service/order")

// Service encapsulates business logic around orders.
type Service struct {
	repo     *repo.Repository
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
	validate *validator.Validate
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     p.Repository,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   logger,
		validate: validator.New(),
	}
}

// ItemInput is one line of a new order.
type ItemInput struct {
	ProductName string  `json:"product_name" validate:"required,max=255"`
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	Price       float64 `json:"price" validate:"gte=0"`
}

// CreateInput is the payload accepted by Create.
type CreateInput struct {
	CustomerID int64       `json:"customer_id" validate:"required,gt=0"`
	Status     string      `json:"status" validate:"omitempty,max=32"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// Get retrieves an order with its customer and items, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithDetail("id", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	return order, nil
}

// Create validates the input and persists a new order with its items.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Order, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, errorbank.BadRequest("invalid order payload", errorbank.WithCause(err))
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.Int64("order.customer_id", in.CustomerID),
		attribute.Int("order.items", len(in.Items)),
	))
	defer span.End()

	status := in.Status
	if status == "" {
		status = "pending"
	}
	order := &entity.Order{CustomerID: in.CustomerID, Status: status}
	for _, item := range in.Items {
		order.Items = append(order.Items, entity.OrderItem{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	// Cached entries carry the customer; drop any stale copy instead of
	// writing a partial one.
	if s.cache != nil {
		if err := s.cache.Delete(ctx, cacheKey(order.ID)); err != nil {
			s.logger.Warn("orders cache invalidate failed", zap.Int64("id", order.ID), zap.Error(err))
		}
	}

	s.logger.Info("order created", zap.Int64("id", order.ID), zap.Int("items", len(order.Items)), zap.Float64("total", order.Total))
	return order, nil
}

// ListInput selects a page of orders, optionally filtered by status.
type ListInput struct {
	Page   int    `query:"page" validate:"gte=0"`
	Size   int    `query:"size" validate:"gte=0,lte=1000"`
	Status string `query:"status" validate:"omitempty,max=32"`
}

// List returns one page of orders with the offset pushed to the store, or
// every order in a status when Status is set. Size 0 means
// repo.DefaultPageSize.
func (s *Service) List(ctx context.Context, in ListInput) ([]entity.Order, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, errorbank.BadRequest("invalid list parameters", errorbank.WithCause(err))
	}
	if in.Size == 0 {
		in.Size = repo.DefaultPageSize
	}

	var (
		orders []entity.Order
		err    error
	)
	if in.Status != "" {
		orders, err = s.repo.ByStatus(ctx, in.Status)
	} else {
		orders, err = s.repo.Page(ctx, in.Page, in.Size)
	}
	if err != nil {
		return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, nil
}

// StatusInput moves a set of orders to one status.
type StatusInput struct {
	IDs    []int64 `json:"ids" validate:"required,min=1,max=1000,dive,gt=0"`
	Status string  `json:"status" validate:"required,max=32"`
}

// UpdateStatus applies the status to every id in one statement and drops
// the cached copies. It returns the number of orders changed.
func (s *Service) UpdateStatus(ctx context.Context, in StatusInput) (int64, error) {
	if err := s.validate.Struct(in); err != nil {
		return 0, errorbank.BadRequest("invalid status update", errorbank.WithCause(err))
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.Int("order.count", len(in.IDs)),
		attribute.String("order.status", in.Status),
	))
	defer span.End()

	changed, err := s.repo.UpdateStatuses(ctx, in.IDs, in.Status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return 0, errorbank.Internal("failed to update orders", errorbank.WithCause(err))
	}

	if s.cache != nil {
		for _, id := range in.IDs {
			if err := s.cache.Delete(ctx, cacheKey(id)); err != nil {
				s.logger.Warn("orders cache invalidate failed", zap.Int64("id", id), zap.Error(err))
			}
		}
	}
	s.logger.Info("order statuses updated", zap.Int64("changed", changed), zap.String("status", in.Status))
	return changed, nil
}

func cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	var order entity.Order
	if err := cache.GetJSON(ctx, s.cache, cacheKey(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, cacheKey(order.ID), order, s.cacheTTL)
}
