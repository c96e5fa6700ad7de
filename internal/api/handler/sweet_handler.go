package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/ss-345/sweet-shop/internal/api/metrics"
	"github.com/ss-345/sweet-shop/internal/api/middleware"
	"github.com/ss-345/sweet-shop/internal/core/domain"
	"github.com/ss-345/sweet-shop/internal/core/ports"
)

// HeaderIdempotencyKey lets clients retry purchases and restocks safely.
const HeaderIdempotencyKey = "Idempotency-Key"

type SweetHandler struct {
	sweetService ports.SweetService
}

func NewSweetHandler(sweetService ports.SweetService) *SweetHandler {
	return &SweetHandler{sweetService: sweetService}
}

// List returns every sweet, newest first.
//
// @Summary      List sweets
// @Tags         sweets
// @Produce      json
// @Success      200  {array}   sweetResponse
// @Router       /sweets [get]
func (h *SweetHandler) List(c echo.Context) error {
	sweets, err := h.sweetService.List(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSweetResponses(sweets))
}

// Search filters sweets by name, category and price range.
//
// @Summary      Search sweets
// @Tags         sweets
// @Produce      json
// @Param        name      query     string  false  "Case-insensitive name substring"
// @Param        category  query     string  false  "Case-insensitive category substring"
// @Param        priceMin  query     number  false  "Inclusive lower price bound"
// @Param        priceMax  query     number  false  "Inclusive upper price bound"
// @Success      200  {array}   sweetResponse
// @Failure      400  {object}  map[string]string
// @Router       /sweets/search [get]
func (h *SweetHandler) Search(c echo.Context) error {
	priceMin, err := queryDecimal(c, "priceMin")
	if err != nil {
		return err
	}
	priceMax, err := queryDecimal(c, "priceMax")
	if err != nil {
		return err
	}

	sweets, err := h.sweetService.Search(c.Request().Context(), ports.SearchInput{
		Name:     c.QueryParam("name"),
		Category: c.QueryParam("category"),
		PriceMin: priceMin,
		PriceMax: priceMax,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSweetResponses(sweets))
}

// Get returns a single sweet.
//
// @Summary      Get a sweet
// @Tags         sweets
// @Produce      json
// @Param        id   path      string  true  "Sweet ID"
// @Success      200  {object}  sweetResponse
// @Failure      404  {object}  map[string]string
// @Router       /sweets/{id} [get]
func (h *SweetHandler) Get(c echo.Context) error {
	sweet, err := h.sweetService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSweetResponse(sweet))
}

// Create adds a sweet to the inventory.
//
// @Summary      Create a sweet
// @Tags         sweets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createSweetRequest  true  "Sweet"
// @Success      201   {object}  sweetResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /sweets [post]
func (h *SweetHandler) Create(c echo.Context) error {
	var req createSweetRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sweet, err := h.sweetService.Create(c.Request().Context(), ports.CreateSweetInput{
		Name:     req.Name,
		Category: req.Category,
		Price:    *req.Price,
		Quantity: *req.Quantity,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toSweetResponse(sweet))
}

// Update changes the given fields of a sweet.
//
// @Summary      Update a sweet
// @Tags         sweets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string              true  "Sweet ID"
// @Param        body  body      updateSweetRequest  true  "Fields to change"
// @Success      200   {object}  sweetResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /sweets/{id} [put]
func (h *SweetHandler) Update(c echo.Context) error {
	var req updateSweetRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sweet, err := h.sweetService.Update(c.Request().Context(), c.Param("id"), ports.UpdateSweetInput{
		Name:     req.Name,
		Category: req.Category,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSweetResponse(sweet))
}

// Delete removes a sweet permanently.
//
// @Summary      Delete a sweet
// @Tags         sweets
// @Security     BearerAuth
// @Param        id   path  string  true  "Sweet ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /sweets/{id} [delete]
func (h *SweetHandler) Delete(c echo.Context) error {
	if err := h.sweetService.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Purchase removes units from stock. Quantity defaults to 1.
//
// @Summary      Purchase a sweet
// @Tags         sweets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id               path      string        true   "Sweet ID"
// @Param        Idempotency-Key  header    string        false  "Retry key"
// @Param        body             body      stockRequest  false  "Units to buy"
// @Success      200  {object}  sweetResponse
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /sweets/{id}/purchase [post]
func (h *SweetHandler) Purchase(c echo.Context) error {
	var req stockRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	sweet, err := h.sweetService.Purchase(c.Request().Context(), h.stockInput(c, qty))
	recordStock("purchase", qty, err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSweetResponse(sweet))
}

// Restock adds units to stock.
//
// @Summary      Restock a sweet
// @Tags         sweets
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id               path      string        true   "Sweet ID"
// @Param        Idempotency-Key  header    string        false  "Retry key"
// @Param        body             body      stockRequest  true   "Units to add"
// @Success      200  {object}  sweetResponse
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /sweets/{id}/restock [post]
func (h *SweetHandler) Restock(c echo.Context) error {
	var req stockRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	var qty int
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	sweet, err := h.sweetService.Restock(c.Request().Context(), h.stockInput(c, qty))
	recordStock("restock", qty, err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toSweetResponse(sweet))
}

func (h *SweetHandler) stockInput(c echo.Context, qty int) ports.StockChangeInput {
	in := ports.StockChangeInput{
		SweetID:        c.Param("id"),
		Quantity:       qty,
		IdempotencyKey: c.Request().Header.Get(HeaderIdempotencyKey),
	}
	if user := middleware.User(c); user != nil {
		in.ActorID = user.ID
	}
	return in
}

// maxQueryNumberLen bounds the text parsed into a decimal.
const maxQueryNumberLen = 64

func queryDecimal(c echo.Context, name string) (*decimal.Decimal, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	if len(raw) > maxQueryNumberLen {
		return nil, fmt.Errorf("%w: %s is out of range", domain.ErrValidation, name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a number", domain.ErrValidation, name)
	}
	if err := domain.ValidateAmount(name, d); err != nil {
		return nil, err
	}
	return &d, nil
}

func recordStock(op string, qty int, err error) {
	metrics.StockOperationsTotal.WithLabelValues(op, stockResult(err)).Inc()
	if err == nil {
		metrics.UnitsMovedTotal.WithLabelValues(op).Add(float64(qty))
	}
}

func stockResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrSweetNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrIdempotencyInFlight):
		return "conflict"
	default:
		return "error"
	}
}
