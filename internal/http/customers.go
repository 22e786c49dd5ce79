package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/jmehdipour/customers-api/internal/metrics"
	"github.com/jmehdipour/customers-api/internal/model"
	"github.com/jmehdipour/customers-api/internal/service/customers"
	"github.com/jmehdipour/customers-api/internal/validation"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CustomerService is what the handlers need from the customer service.
type CustomerService interface {
	List(ctx context.Context, page int) (customers.Page, error)
	Get(ctx context.Context, id int64) (model.Customer, error)
	Create(ctx context.Context, in model.Customer) (model.Customer, error)
	Update(ctx context.Context, id int64, patch model.CustomerPatch) (model.Customer, error)
	Delete(ctx context.Context, id int64) error
	ToggleOptIn(ctx context.Context, id int64) (model.Customer, error)
}

const maxBodyBytes = 64 << 10

const (
	msgInvalid   = "The given data was invalid."
	msgNotFound  = "customer not found"
	msgMalformed = "malformed JSON body"
	msgTaken     = "The email has already been taken."
)

type customerHandler struct {
	svc CustomerService
	val *validation.Validator
	log *zap.Logger
}

func newCustomerHandler(svc CustomerService, val *validation.Validator, log *zap.Logger) *customerHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &customerHandler{svc: svc, val: val, log: log}
}

func registerCustomerRoutes(g *echo.Group, h *customerHandler) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.show)
	g.PUT("/:id", h.update)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/toggle-optin", h.toggleOptIn)
}

func message(msg string) map[string]string {
	return map[string]string{"message": msg}
}

// parseID treats anything that is not a positive integer as an unknown customer.
func parseID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func readBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
}

func (h *customerHandler) notFound(c echo.Context, op string) error {
	metrics.OperationsTotal.WithLabelValues(op, metrics.OutcomeNotFound).Inc()
	return c.JSON(http.StatusNotFound, message(msgNotFound))
}

// invalid writes a 422 for validation errors or a 400 for unparsable bodies.
func (h *customerHandler) invalid(c echo.Context, op string, err error) error {
	metrics.OperationsTotal.WithLabelValues(op, metrics.OutcomeInvalid).Inc()

	var errs validation.Errors
	if errors.As(err, &errs) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{
			"message": msgInvalid,
			"errors":  errs,
		})
	}
	return c.JSON(http.StatusBadRequest, message(msgMalformed))
}

// failure maps service errors to responses. Store details are logged, never returned.
func (h *customerHandler) failure(c echo.Context, op string, id int64, err error, generic string) error {
	switch {
	case errors.Is(err, customers.ErrNotFound):
		return h.notFound(c, op)
	case errors.Is(err, customers.ErrEmailTaken):
		errs := validation.Errors{}
		errs.Add("email", msgTaken)
		return h.invalid(c, op, errs)
	}

	outcome := metrics.OutcomeError
	fields := []zap.Field{zap.String("op", op), zap.Error(err)}
	if id > 0 {
		fields = append(fields, zap.Int64("customer_id", id))
	}
	var se *customers.StoreError
	if errors.As(err, &se) && se.Conflict {
		outcome = metrics.OutcomeConflict
		fields = append(fields, zap.Bool("unique_conflict", true))
	}
	metrics.OperationsTotal.WithLabelValues(op, outcome).Inc()
	h.log.Error(generic, fields...)

	return c.JSON(http.StatusInternalServerError, message(generic))
}

func (h *customerHandler) ok(op string) {
	metrics.OperationsTotal.WithLabelValues(op, metrics.OutcomeOK).Inc()
}

func (h *customerHandler) list(c echo.Context) error {
	page := 1
	if v := c.QueryParam("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}

	p, err := h.svc.List(c.Request().Context(), page)
	if err != nil {
		return h.failure(c, "list", 0, err, "failed to list customers")
	}

	h.ok("list")
	path := c.Scheme() + "://" + c.Request().Host + c.Request().URL.Path
	return c.JSON(http.StatusOK, toCollection(p, path))
}

func (h *customerHandler) create(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return h.invalid(c, "create", err)
	}
	req, err := h.val.DecodeCreate(body)
	if err != nil {
		return h.invalid(c, "create", err)
	}

	created, err := h.svc.Create(c.Request().Context(), req.Customer())
	if err != nil {
		return h.failure(c, "create", 0, err, "create new customer failed")
	}

	h.ok("create")
	return c.JSON(http.StatusCreated, resourceEnvelope{Data: toResource(created)})
}

func (h *customerHandler) show(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return h.notFound(c, "show")
	}

	cu, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.failure(c, "show", id, err, "failed to load customer")
	}

	h.ok("show")
	return c.JSON(http.StatusOK, resourceEnvelope{Data: toResource(cu)})
}

func (h *customerHandler) update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return h.notFound(c, "update")
	}

	body, err := readBody(c)
	if err != nil {
		return h.invalid(c, "update", err)
	}
	req, err := h.val.DecodeUpdate(body)
	if err != nil {
		return h.invalid(c, "update", err)
	}

	updated, err := h.svc.Update(c.Request().Context(), id, req.Patch())
	if err != nil {
		return h.failure(c, "update", id, err, "failed to update customer")
	}

	h.ok("update")
	return c.JSON(http.StatusOK, resourceEnvelope{Data: toResource(updated)})
}

func (h *customerHandler) delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return h.notFound(c, "delete")
	}

	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.failure(c, "delete", id, err, "failed to delete customer")
	}

	h.ok("delete")
	// 204 responses cannot carry a body
	return c.NoContent(http.StatusNoContent)
}

func (h *customerHandler) toggleOptIn(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return h.notFound(c, "toggle_optin")
	}

	updated, err := h.svc.ToggleOptIn(c.Request().Context(), id)
	if err != nil {
		return h.failure(c, "toggle_optin", id, err, "failed to toggle customer opt-in flag")
	}

	h.ok("toggle_optin")
	return c.JSON(http.StatusOK, resourceEnvelope{Data: toResource(updated)})
}
