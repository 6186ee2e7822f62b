package httpgin

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrada/entrada/internal/auth"
	"github.com/entrada/entrada/internal/service/admin"
	"github.com/entrada/entrada/internal/service/purchase"
	"github.com/entrada/entrada/internal/service/query"
	"github.com/entrada/entrada/internal/service/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRespondErr(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondErr(c, err)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	return w.Code, body
}

func TestRespondErr_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid quantity", purchase.InvalidQuantityError{Quantity: 11, Max: 10}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"insufficient stock", purchase.InsufficientStockError{Available: 2}, http.StatusConflict, "STOCK_INSUFFICIENT"},
		{"event not found", purchase.ErrEventNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"event not published", purchase.ErrEventNotPublished, http.StatusBadRequest, "NOT_PURCHASABLE"},
		{"mint conflict", purchase.ErrTicketConflict, http.StatusConflict, "CONFLICT"},
		{"purchase not found", purchase.ErrPurchaseNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", purchase.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"invalid status", purchase.ErrInvalidStatus, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"ticket invalid", validation.ErrTicketInvalid, http.StatusConflict, "TICKET_INVALID"},
		{"ticket not found", validation.ErrTicketNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"category not found", query.ErrCategoryNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"query ticket not found", query.ErrTicketNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"category conflict", admin.ErrCategoryConflict, http.StatusConflict, "CONFLICT"},
		{"admin category not found", admin.ErrCategoryNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"admin event not found", admin.ErrEventNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid category", admin.ErrInvalidCategory, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"read-back failure", purchase.ErrReadBack, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doRespondErr(t, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestRespondErr_UnwrapsServiceErrors(t *testing.T) {
	// Service layers wrap sentinels with the operation name; the mapping
	// must still see through the chain.
	wrapped := errors.Join(errors.New("service.purchase.Purchase"), purchase.ErrEventNotFound)

	status, body := doRespondErr(t, wrapped)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
}

func TestRespondErr_InternalDoesNotLeak(t *testing.T) {
	_, body := doRespondErr(t, errors.New("pq: connection refused to 10.0.0.3"))
	assert.NotContains(t, body.Error.Message, "10.0.0.3")
}

func newAuthedRouter(verifier auth.Verifier, role string, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	grp := r.Group("", AuthMiddleware(verifier))
	if role != "" {
		grp.Use(RequireRole(role))
	}
	grp.GET("/probe", handler)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	verifier := auth.NewStaticVerifier([]string{"tok:" + userID.String() + ":buyer"})

	var got auth.Identity
	r := newAuthedRouter(verifier, "", func(c *gin.Context) {
		got = identityFrom(c)
		c.Status(http.StatusOK)
	})

	// no token
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// bad token
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer nope")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// good token
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer tok")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, got.UserID)
}

func TestRequireRole(t *testing.T) {
	userID := uuid.New()
	verifier := auth.NewStaticVerifier([]string{"tok:" + userID.String() + ":buyer"})

	r := newAuthedRouter(verifier, auth.RoleAdmin, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer tok")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWriteJSONWithCache_ETagRoundTrip(t *testing.T) {
	r := gin.New()
	r.GET("/cached", func(c *gin.Context) {
		writeJSONWithCache(c, http.StatusOK, gin.H{"available": 5}, "public, max-age=15", true)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cached", nil))
	require.Equal(t, http.StatusOK, w.Code)

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "public, max-age=15", w.Header().Get("Cache-Control"))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cached", nil)
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.Bytes())
}
