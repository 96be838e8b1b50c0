package scenario

import (
	"context"
	"sort"

	"github.com/Additional-Code/orderlens/internal/entity"
	"github.com/Additional-Code/orderlens/internal/scenario"
)

// Variant separates the round-trip heavy paths from their fixes.
type Variant string

const (
	VariantNaive     Variant = "naive"
	VariantEfficient Variant = "efficient"
)

const (
	needStatus    = "status"
	needNewStatus = "new_status"
)

// Definition describes a runnable scenario.
type Definition struct {
	Name        string  `json:"name"`
	Variant     Variant `json:"variant"`
	Pattern     string  `json:"pattern"`
	Description string  `json:"description"`
	Counterpart string  `json:"counterpart,omitempty"`

	requires []string
	run      runFunc
}

// runFunc executes a scenario and returns its result and result size.
type runFunc func(ctx context.Context, s *Service, p Params) (any, int, error)

func definitions() []Definition {
	return []Definition{
		{
			Name:        "orders-with-customers",
			Variant:     VariantNaive,
			Pattern:     "n+1 reads",
			Description: "All orders, then one customer lookup per order (1+N).",
			Counterpart: "orders-with-customers-joined",
			run: func(ctx context.Context, s *Service, _ Params) (any, int, error) {
				res, err := s.scenarios.OrdersWithCustomers(ctx)
				return res, len(res), err
			},
		},
		{
			Name:        "orders-with-details",
			Variant:     VariantNaive,
			Pattern:     "n+1 reads",
			Description: "Adds one item lookup per order (1+2N).",
			Counterpart: "orders-with-details-eager",
			run: func(ctx context.Context, s *Service, _ Params) (any, int, error) {
				res, err := s.scenarios.OrdersWithDetails(ctx)
				return res, len(res), err
			},
		},
		{
			Name:        "full-order-report",
			Variant:     VariantNaive,
			Pattern:     "nested n+1 reads",
			Description: "Adds one product lookup per item inside the order loop (1+2N+items).",
			Counterpart: "full-order-report-eager",
			run: func(ctx context.Context, s *Service, _ Params) (any, int, error) {
				res, err := s.scenarios.FullOrderReport(ctx)
				return res, len(res), err
			},
		},
		{
			Name:        "orders-paginated",
			Variant:     VariantNaive,
			Pattern:     "in-memory pagination",
			Description: "Fetches the whole orders table and slices one page in memory.",
			Counterpart: "orders-page",
			run: func(ctx context.Context, s *Service, p Params) (any, int, error) {
				res, err := s.scenarios.AllOrdersPaginated(ctx, p.Page, p.Size)
				return res, len(res), err
			},
		},
		{
			Name:        "orders-by-status",
			Variant:     VariantNaive,
			Pattern:     "unindexed filter",
			Description: "Filters orders on the unindexed status column (full scan).",
			requires:    []string{needStatus},
			run: func(ctx context.Context, s *Service, p Params) (any, int, error) {
				res, err := s.scenarios.OrdersByStatus(ctx, p.Status)
				return res, len(res), err
			},
		},
		{
			Name:        "update-order-statuses",
			Variant:     VariantNaive,
			Pattern:     "unbatched writes",
			Description: "One UPDATE statement per order id.",
			Counterpart: "update-order-statuses-batched",
			requires:    []string{needNewStatus},
			run: func(ctx context.Context, s *Service, p Params) (any, int, error) {
				if err := s.scenarios.UpdateOrderStatuses(ctx, p.IDs, p.NewStatus); err != nil {
					return nil, 0, err
				}
				return updateResult{Statements: len(p.IDs)}, 0, nil
			},
		},
		{
			Name:        "orders-with-customers-joined",
			Variant:     VariantEfficient,
			Pattern:     "join",
			Description: "Orders joined to customers in one statement.",
			Counterpart: "orders-with-customers",
			run: func(ctx context.Context, s *Service, _ Params) (any, int, error) {
				orders, err := s.repo.ListWithCustomers(ctx)
				if err != nil {
					return nil, 0, err
				}
				res := toOrdersWithCustomers(orders)
				return res, len(res), nil
			},
		},
		{
			Name:        "orders-with-details-eager",
			Variant:     VariantEfficient,
			Pattern:     "join + eager load",
			Description: "Orders joined to customers, items loaded for all orders at once.",
			Counterpart: "orders-with-details",
			run: func(ctx context.Context, s *Service, _ Params) (any, int, error) {
				orders, err := s.repo.ListWithDetails(ctx)
				if err != nil {
					return nil, 0, err
				}
				res := toOrdersWithDetails(orders)
				return res, len(res), nil
			},
		},
		{
			Name:        "full-order-report-eager",
			Variant:     VariantEfficient,
			Pattern:     "join + eager load + batch lookup",
			Description: "Details eager loaded, products fetched once for every referenced name.",
			Counterpart: "full-order-report",
			run: func(ctx context.Context, s *Service, _ Params) (any, int, error) {
				orders, err := s.repo.FullReport(ctx)
				if err != nil {
					return nil, 0, err
				}
				res := toOrderReports(orders)
				return res, len(res), nil
			},
		},
		{
			Name:        "orders-page",
			Variant:     VariantEfficient,
			Pattern:     "limit/offset",
			Description: "One page fetched with LIMIT/OFFSET.",
			Counterpart: "orders-paginated",
			run: func(ctx context.Context, s *Service, p Params) (any, int, error) {
				res, err := s.repo.Page(ctx, p.Page, p.Size)
				return res, len(res), err
			},
		},
		{
			Name:        "update-order-statuses-batched",
			Variant:     VariantEfficient,
			Pattern:     "batched write",
			Description: "One UPDATE ... WHERE id IN (...) for all ids.",
			Counterpart: "update-order-statuses",
			requires:    []string{needNewStatus},
			run: func(ctx context.Context, s *Service, p Params) (any, int, error) {
				n, err := s.repo.UpdateStatuses(ctx, p.IDs, p.NewStatus)
				if err != nil {
					return nil, 0, err
				}
				statements := 1
				if len(p.IDs) == 0 {
					statements = 0
				}
				return updateResult{Statements: statements, Updated: &n}, int(n), nil
			},
		},
	}
}

func newRegistry() map[string]Definition {
	defs := definitions()
	reg := make(map[string]Definition, len(defs))
	for _, d := range defs {
		reg[d.Name] = d
	}
	return reg
}

func sortedDefinitions(reg map[string]Definition) []Definition {
	out := make([]Definition, 0, len(reg))
	for _, d := range reg {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Variant != out[j].Variant {
			return out[i].Variant > out[j].Variant
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// updateResult describes a status update run. Updated is only known when
// the driver reports affected rows for the whole batch; the per-id variant
// sends statements without reading their results.
type updateResult struct {
	Statements int    `json:"statements"`
	Updated    *int64 `json:"updated,omitempty"`
}

func toOrdersWithCustomers(orders []entity.Order) []scenario.OrderWithCustomer {
	out := make([]scenario.OrderWithCustomer, len(orders))
	for i, o := range orders {
		out[i] = scenario.OrderWithCustomer{Order: bare(o), Customer: deref(o.Customer)}
	}
	return out
}

func toOrdersWithDetails(orders []entity.Order) []scenario.OrderWithDetails {
	out := make([]scenario.OrderWithDetails, len(orders))
	for i, o := range orders {
		items := make([]entity.OrderItem, len(o.Items))
		for j, item := range o.Items {
			item.Product = nil
			items[j] = item
		}
		out[i] = scenario.OrderWithDetails{Order: bare(o), Customer: deref(o.Customer), Items: items}
	}
	return out
}

func toOrderReports(orders []entity.Order) []scenario.OrderReport {
	out := make([]scenario.OrderReport, len(orders))
	for i, o := range orders {
		items := make([]scenario.ReportItem, len(o.Items))
		for j, item := range o.Items {
			var product entity.Product
			if item.Product != nil {
				product = *item.Product
			}
			item.Product = nil
			items[j] = scenario.ReportItem{Item: item, Product: product}
		}
		out[i] = scenario.OrderReport{Order: bare(o), Customer: deref(o.Customer), Items: items}
	}
	return out
}

func bare(o entity.Order) entity.Order {
	o.Customer = nil
	o.Items = nil
	return o
}

func deref(c *entity.Customer) entity.Customer {
	if c == nil {
		return entity.Customer{}
	}
	return *c
}
