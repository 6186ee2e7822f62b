package httpgin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/entrada/entrada/internal/auth"
	"github.com/entrada/entrada/internal/domain"
	redisrepo "github.com/entrada/entrada/internal/repository/redis"
	"github.com/entrada/entrada/internal/service"
	admsvc "github.com/entrada/entrada/internal/service/admin"
	"github.com/entrada/entrada/internal/service/purchase"
	"github.com/entrada/entrada/internal/service/query"
	"github.com/entrada/entrada/internal/service/validation"
)

func NewRouter(
	svcs *service.Services,
	verifier auth.Verifier,
	idem *redisrepo.IdempotencyStore,
	logger *slog.Logger,
	middlewares ...gin.HandlerFunc,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery(), LoggingMiddleware(logger), RequestIDMiddleware(), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	r.GET("/events/:id/categories", handleListEventCategories(svcs))
	r.GET("/events/:id/categories/:category_id/availability", handleGetAvailability(svcs))

	authed := r.Group("", AuthMiddleware(verifier))
	{
		authed.POST("/purchases",
			RequireRole(auth.RoleBuyer, auth.RoleAdmin), handleCreatePurchase(svcs, idem))
		authed.GET("/purchases/:id", handleGetPurchase(svcs))
		authed.GET("/purchases", RequireRole(auth.RoleAdmin), handleListAllPurchases(svcs))
		authed.GET("/users/me/purchases", handleListOwnPurchases(svcs))
		authed.PATCH("/purchases/:id", RequireRole(auth.RoleAdmin), handleUpdatePurchase(svcs))
		authed.DELETE("/purchases/:id", RequireRole(auth.RoleAdmin), handleDeletePurchase(svcs))

		staff := authed.Group("", RequireRole(auth.RoleStaff, auth.RoleAdmin))
		{
			staff.POST("/events/:id/tickets/validate", handleValidateTicket(svcs))
			staff.GET("/tickets/validate/:code", handlePeekTicket(svcs))
			staff.GET("/tickets/:id", handleGetTicket(svcs))
			staff.GET("/events/:id/tickets", handleListEventTickets(svcs))
		}

		adm := authed.Group("/admin", RequireRole(auth.RoleAdmin))
		{
			adm.POST("/events/:id/categories", handleCreateCategory(svcs))
			adm.PATCH("/events/:id/categories/:category_id", handleUpdateCategory(svcs))
			adm.DELETE("/events/:id/categories/:category_id", handleDeleteCategory(svcs))
		}
	}

	return r
}

// --- Handlers with Swagger annotations ---

// @Summary  Purchase tickets (idempotent)
// @Param    req body  CreatePurchaseRequest true "payload"
// @Header   201 {string} Idempotency-Key "echo"
// @Success  201 {object} PurchaseResponse
// @Failure  400 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse "event or category unknown"
// @Failure  409 {object} ErrorResponse "stock insufficient / idem in progress"
// @Failure  429 {object} ErrorResponse "rate limited"
// @Router   /purchases [post]
func handleCreatePurchase(
	svcs *service.Services,
	idem *redisrepo.IdempotencyStore,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := identityFrom(c)

		var req CreatePurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		eventID, err := uuid.Parse(req.EventID)
		if err != nil {
			badRequest(c, "invalid event_id")
			return
		}

		categoryID, err := uuid.Parse(req.CategoryID)
		if err != nil {
			badRequest(c, "invalid category_id")
			return
		}

		idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		var idemStorageKey string
		if idem != nil && idemKey != "" {
			idemStorageKey = redisrepo.KeyIdemPurchase(actor.UserID, idemKey)

			if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
				c.Header("Idempotency-Key", idemKey)
				c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
				return
			}

			locked, err := idem.AcquireLock(c.Request.Context(), idemStorageKey, 60*time.Second)
			if err != nil {
				respondErr(c, err)
				return
			}
			if !locked {
				// The key may have flipped from lock to stored result
				// between the replay check and the SetNX.
				if inflight, _ := idem.IsLocked(c.Request.Context(), idemStorageKey); !inflight {
					if payload, ok, _ := idem.GetResult(c.Request.Context(), idemStorageKey); ok {
						c.Header("Idempotency-Key", idemKey)
						c.Data(http.StatusCreated, "application/json; charset=utf-8", []byte(payload))
						return
					}
				}
				c.Header("Retry-After", "1")
				c.JSON(http.StatusConflict, ErrorResponse{
					Error: ErrorBody{Code: "CONFLICT", Message: "idempotency key in progress"},
				})
				return
			}
		}

		rlKey := "ip:" + c.ClientIP()

		out, err := svcs.Purchase.Purchase(
			c.Request.Context(),
			actor.UserID,
			eventID,
			categoryID,
			req.Quantity,
			rlKey,
		)
		if err != nil {
			if idemStorageKey != "" && idem != nil {
				_ = idem.Release(c.Request.Context(), idemStorageKey)
			}
			if isRateLimitedErr(err) {
				c.Header("Retry-After", "60")
				c.JSON(http.StatusTooManyRequests, ErrorResponse{
					Error: ErrorBody{Code: "RATE_LIMITED", Message: err.Error()},
				})
				return
			}
			respondErr(c, err)
			return
		}

		resp := toPurchaseResponse(out.Purchase, out.Tickets)

		if idemStorageKey != "" && idem != nil {
			b, _ := json.Marshal(resp)
			_ = idem.SaveResult(c.Request.Context(), idemStorageKey, string(b))
			c.Header("Idempotency-Key", idemKey)
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// @Summary  Get purchase with tickets
// @Param    id  path  string  true  "Purchase ID (uuid)"
// @Success  200 {object} PurchaseResponse
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Router   /purchases/{id} [get]
func handleGetPurchase(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		out, err := svcs.Purchase.Get(c.Request.Context(), identityFrom(c), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toPurchaseResponse(out.Purchase, out.Tickets))
	}
}

// @Summary  List all purchases (admin)
// @Success  200 {array} PurchaseResponse
// @Router   /purchases [get]
func handleListAllPurchases(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svcs.Purchase.ListAll(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, purchaseList(out))
	}
}

// @Summary  List own purchases
// @Success  200 {array} PurchaseResponse
// @Router   /users/me/purchases [get]
func handleListOwnPurchases(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := svcs.Purchase.ListOwn(c.Request.Context(), identityFrom(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, purchaseList(out))
	}
}

// @Summary  Update purchase (admin)
// @Param    id  path  string  true  "Purchase ID (uuid)"
// @Param    req body  UpdatePurchaseRequest true "payload"
// @Success  200 {object} PurchaseResponse
// @Router   /purchases/{id} [patch]
func handleUpdatePurchase(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req UpdatePurchaseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		var patch domain.PurchasePatch
		if req.Status != nil {
			st := domain.PurchaseStatus(*req.Status)
			patch.Status = &st
		}

		p, err := svcs.Purchase.Update(c.Request.Context(), id, patch)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toPurchaseResponse(*p, nil))
	}
}

// @Summary  Soft delete purchase (admin)
// @Param    id  path  string  true  "Purchase ID (uuid)"
// @Success  204
// @Router   /purchases/{id} [delete]
func handleDeletePurchase(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		if err := svcs.Purchase.Delete(c.Request.Context(), id); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Validate ticket at the door
// @Param    id  path  string  true  "Event ID (uuid)"
// @Param    req body  ValidateTicketRequest true "payload"
// @Success  200 {object} ValidateTicketResponse
// @Failure  409 {object} ErrorResponse "invalid or already used"
// @Router   /events/{id}/tickets/validate [post]
func handleValidateTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req ValidateTicketRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		ticketID, err := svcs.Validation.ValidateAtDoor(c.Request.Context(), eventID, req.Code)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ValidateTicketResponse{OK: true, TicketID: ticketID.String()})
	}
}

// @Summary  Peek ticket status by code
// @Param    code  path  string  true  "Ticket code"
// @Success  200 {object} TicketResponse
// @Failure  404 {object} ErrorResponse
// @Router   /tickets/validate/{code} [get]
func handlePeekTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svcs.Validation.Peek(c.Request.Context(), c.Param("code"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toTicketResponse(*t))
	}
}

// @Summary  Get ticket by id (staff)
// @Param    id  path  string  true  "Ticket ID (uuid)"
// @Success  200 {object} TicketResponse
// @Router   /tickets/{id} [get]
func handleGetTicket(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		t, err := svcs.Query.GetTicket(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toTicketResponse(*t))
	}
}

// @Summary  List event tickets (staff)
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200 {array} TicketResponse
// @Router   /events/{id}/tickets [get]
func handleListEventTickets(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		tickets, err := svcs.Query.ListEventTickets(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]TicketResponse, 0, len(tickets))
		for _, t := range tickets {
			out = append(out, toTicketResponse(t))
		}
		c.JSON(http.StatusOK, out)
	}
}

// @Summary  Get category availability
// @Param    id           path  string  true  "Event ID (uuid)"
// @Param    category_id  path  string  true  "Category ID (uuid)"
// @Success  200 {object} AvailabilityResponse
// @Failure  404 {object} ErrorResponse
// @Router   /events/{id}/categories/{category_id}/availability [get]
func handleGetAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		categoryID, ok := parseUUIDParam(c, "category_id")
		if !ok {
			return
		}
		tc, err := svcs.Query.GetAvailability(c.Request.Context(), eventID, categoryID)
		if err != nil {
			respondErr(c, err)
			return
		}
		resp := AvailabilityResponse{
			EventID:           tc.EventID.String(),
			CategoryID:        tc.ID.String(),
			Category:          tc.Category,
			PriceCents:        tc.PriceCents,
			QuantityAvailable: tc.QuantityAvailable,
		}
		// ETag + Cache-Control 15s
		writeJSONWithCache(c, http.StatusOK, resp, "public, max-age=15", true)
	}
}

// @Summary  List event categories
// @Param    id  path  string  true  "Event ID (uuid)"
// @Success  200 {array} CategoryResponse
// @Router   /events/{id}/categories [get]
func handleListEventCategories(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		cats, err := svcs.Query.ListEventCategories(c.Request.Context(), eventID)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]CategoryResponse, 0, len(cats))
		for _, tc := range cats {
			out = append(out, toCategoryResponse(tc))
		}
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

// @Summary  Create ticket category (admin)
// @Param    id  path  string  true  "Event ID (uuid)"
// @Param    req body  CreateCategoryRequest true "payload"
// @Success  201 {object} CategoryResponse
// @Router   /admin/events/{id}/categories [post]
func handleCreateCategory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req CreateCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tc, err := svcs.Admin.CreateCategory(
			c.Request.Context(), eventID, req.Category, req.PriceCents, req.QuantityAvailable)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, toCategoryResponse(*tc))
	}
}

// @Summary  Update ticket category (admin)
// @Param    id           path  string  true  "Event ID (uuid)"
// @Param    category_id  path  string  true  "Category ID (uuid)"
// @Param    req body  UpdateCategoryRequest true "payload"
// @Success  200 {object} CategoryResponse
// @Router   /admin/events/{id}/categories/{category_id} [patch]
func handleUpdateCategory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		categoryID, ok := parseUUIDParam(c, "category_id")
		if !ok {
			return
		}
		var req UpdateCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		tc, err := svcs.Admin.UpdateCategory(c.Request.Context(), eventID, categoryID, domain.CategoryPatch{
			Category:          req.Category,
			PriceCents:        req.PriceCents,
			QuantityAvailable: req.QuantityAvailable,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toCategoryResponse(*tc))
	}
}

// @Summary  Delete ticket category (admin)
// @Param    id           path  string  true  "Event ID (uuid)"
// @Param    category_id  path  string  true  "Category ID (uuid)"
// @Success  204
// @Router   /admin/events/{id}/categories/{category_id} [delete]
func handleDeleteCategory(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		eventID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		categoryID, ok := parseUUIDParam(c, "category_id")
		if !ok {
			return
		}
		if err := svcs.Admin.DeleteCategory(c.Request.Context(), eventID, categoryID); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// --- Helpers ---

func purchaseList(in []domain.Purchase) []PurchaseResponse {
	out := make([]PurchaseResponse, 0, len(in))
	for _, p := range in {
		out = append(out, toPurchaseResponse(p, nil))
	}
	return out
}

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return v, true
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorBody{Code: "VALIDATION_ERROR", Message: msg},
	})
}

func isRateLimitedErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "rate limited")
}

func respondErr(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusNoContent)
		return
	}

	var invalidQty purchase.InvalidQuantityError
	if errors.As(err, &invalidQty) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorBody{Code: "VALIDATION_ERROR", Message: invalidQty.Error()},
		})
		return
	}

	var noStock purchase.InsufficientStockError
	if errors.As(err, &noStock) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorBody{Code: "STOCK_INSUFFICIENT", Message: noStock.Error()},
		})
		return
	}

	switch {
	// purchase service
	case errors.Is(err, purchase.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorBody{Code: "NOT_FOUND", Message: "event or ticket category not found"},
		})
		return
	case errors.Is(err, purchase.ErrEventNotPublished):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorBody{Code: "NOT_PURCHASABLE", Message: "event is not open for purchase"},
		})
		return
	case errors.Is(err, purchase.ErrTicketConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorBody{Code: "CONFLICT", Message: "could not mint unique tickets"},
		})
		return
	case errors.Is(err, purchase.ErrPurchaseNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorBody{Code: "NOT_FOUND", Message: "purchase not found"},
		})
		return
	case errors.Is(err, purchase.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error: ErrorBody{Code: "FORBIDDEN", Message: "not allowed"},
		})
		return
	case errors.Is(err, purchase.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorBody{Code: "VALIDATION_ERROR", Message: "invalid purchase status"},
		})
		return
	// validation service
	case errors.Is(err, validation.ErrTicketInvalid):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorBody{Code: "TICKET_INVALID", Message: "ticket invalid or already used"},
		})
		return
	case errors.Is(err, validation.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorBody{Code: "NOT_FOUND", Message: "ticket not found"},
		})
		return
	// query service
	case errors.Is(err, query.ErrCategoryNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorBody{Code: "NOT_FOUND", Message: "ticket category not found"},
		})
		return
	case errors.Is(err, query.ErrTicketNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorBody{Code: "NOT_FOUND", Message: "ticket not found"},
		})
		return
	// admin service
	case errors.Is(err, admsvc.ErrCategoryConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorBody{Code: "CONFLICT", Message: "category already exists"},
		})
		return
	case errors.Is(err, admsvc.ErrCategoryNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorBody{Code: "NOT_FOUND", Message: "category not found"},
		})
		return
	case errors.Is(err, admsvc.ErrEventNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorBody{Code: "NOT_FOUND", Message: "event does not exist"},
		})
		return
	case errors.Is(err, admsvc.ErrInvalidCategory):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorBody{Code: "VALIDATION_ERROR", Message: "invalid category fields"},
		})
		return
	}

	// Unclassified failures, including read-back integrity violations, are
	// surfaced as a generic internal error without leaking internals.
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorBody{Code: "INTERNAL_ERROR", Message: "internal server error"},
	})
}
