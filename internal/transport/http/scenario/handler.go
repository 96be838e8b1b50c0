package scenario

import (
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/orderlens/internal/dto"
	"github.com/Additional-Code/orderlens/internal/presentation/http/response"
	service "github.com/Additional-Code/orderlens/internal/service/scenario"
	"github.com/Additional-Code/orderlens/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/orderlens/transport/http/scenario")

// Handler exposes scenario endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a scenario Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/scenarios")
	g.GET("", h.list)
	g.POST("/:name/run", h.run)
	g.POST("/:name/compare", h.compare)
	g.GET("/:name/report", h.report)
}

func (h *Handler) list(c echo.Context) error {
	defs := h.svc.List()
	out := make([]dto.ScenarioResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, dto.ScenarioResponse{
			Name:        def.Name,
			Variant:     string(def.Variant),
			Pattern:     def.Pattern,
			Description: def.Description,
			Counterpart: def.Counterpart,
		})
	}
	return response.New(c).WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) run(c echo.Context) error {
	b := response.New(c)
	name := c.Param("name")

	req, err := bindRun(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "scenarios.run", trace.WithAttributes(attribute.String("scenario.name", name)))
	defer span.End()

	report, err := h.svc.Run(ctx, name, toParams(req))
	if err != nil {
		return b.WithError(err).Build()
	}
	if !req.IncludeResult {
		report.Result = nil
	}
	return b.WithData(report).Build()
}

func (h *Handler) compare(c echo.Context) error {
	b := response.New(c)
	name := c.Param("name")

	req, err := bindRun(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "scenarios.compare", trace.WithAttributes(attribute.String("scenario.name", name)))
	defer span.End()

	cmp, err := h.svc.Compare(ctx, name, toParams(req))
	if err != nil {
		return b.WithError(err).Build()
	}
	if !req.IncludeResult {
		cmp.Naive.Result = nil
		cmp.Efficient.Result = nil
	}
	return b.WithData(cmp).Build()
}

func (h *Handler) report(c echo.Context) error {
	b := response.New(c)

	report, err := h.svc.LastReport(c.Request().Context(), c.Param("name"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(report).Build()
}

// bindRun accepts an empty body as zero parameters.
func bindRun(c echo.Context) (dto.RunScenarioRequest, error) {
	var req dto.RunScenarioRequest
	if c.Request().ContentLength == 0 {
		return req, nil
	}
	if err := c.Bind(&req); err != nil {
		return req, errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return req, nil
}

func toParams(req dto.RunScenarioRequest) service.Params {
	return service.Params{
		Page:      req.Page,
		Size:      req.Size,
		Status:    req.Status,
		IDs:       req.IDs,
		NewStatus: req.NewStatus,
	}
}
