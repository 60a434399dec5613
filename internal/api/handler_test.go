package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/domain"
	"github.com/MorseWayne/cloth_shop/internal/middleware"
	"github.com/MorseWayne/cloth_shop/internal/service"
)

// MockOrderService for testing
type MockOrderService struct {
	checkoutFunc   func(ctx context.Context, userID int64, req *domain.CheckoutRequest) (*domain.Order, error)
	getUserFunc    func(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	updateFunc     func(ctx context.Context, orderID int64, status domain.OrderStatus, actor *int64) (*domain.Order, error)
	uploadFunc     func(ctx context.Context, userID, orderID int64, filename string, r io.Reader) (*domain.Order, error)
	attachURLFunc  func(ctx context.Context, userID, orderID int64, url string) (*domain.Order, error)
	listOrdersFunc func(ctx context.Context, userID int64, page, pageSize int) (*domain.OrderPage, error)
}

func (m *MockOrderService) Checkout(ctx context.Context, userID int64, req *domain.CheckoutRequest) (*domain.Order, error) {
	return m.checkoutFunc(ctx, userID, req)
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return &domain.Order{ID: orderID}, nil
}

func (m *MockOrderService) GetUserOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	return m.getUserFunc(ctx, userID, orderID)
}

func (m *MockOrderService) ListUserOrders(ctx context.Context, userID int64, page, pageSize int) (*domain.OrderPage, error) {
	return m.listOrdersFunc(ctx, userID, page, pageSize)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus, actor *int64) (*domain.Order, error) {
	return m.updateFunc(ctx, orderID, status, actor)
}

func (m *MockOrderService) CancelOrder(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	return nil, domain.ErrInvalidTransition
}

func (m *MockOrderService) AttachPaymentSlipURL(ctx context.Context, userID, orderID int64, url string) (*domain.Order, error) {
	return m.attachURLFunc(ctx, userID, orderID, url)
}

func (m *MockOrderService) UploadPaymentSlip(ctx context.Context, userID, orderID int64, filename string, r io.Reader) (*domain.Order, error) {
	return m.uploadFunc(ctx, userID, orderID, filename, r)
}

// MockUserService for testing
type MockUserService struct {
	users map[string]*domain.User
}

func (m *MockUserService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	if _, exists := m.users[req.Username]; exists {
		return nil, service.ErrUserExists
	}
	u := &domain.User{ID: int64(len(m.users) + 1), Username: req.Username, Email: req.Email, Role: domain.UserRoleUser, IsActive: true}
	m.users[req.Username] = u
	return u, nil
}

func (m *MockUserService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.User, error) {
	u, exists := m.users[req.Username]
	if !exists || req.Password != "secret123" {
		return nil, service.ErrInvalidCredentials
	}
	return u, nil
}

func (m *MockUserService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, service.ErrUserNotFound
}

type stubJWTService struct{}

func (stubJWTService) GenerateAccessToken(user *domain.User) (string, time.Time, error) {
	return "token-" + user.Username, time.Unix(1_900_000_000, 0), nil
}

func (stubJWTService) ValidateAccessToken(string) (*service.Claims, error) {
	return nil, service.ErrInvalidToken
}

func setupTestRouter(userID int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if userID > 0 {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.GinKeyUserID, userID)
			c.Next()
		})
	}
	return router
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

func TestWriteServiceError_Mapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   int
	}{
		{domain.NewValidationError("quantity must be positive"), http.StatusBadRequest, 10001},
		{domain.ErrInvalidTransition, http.StatusBadRequest, 10001},
		{domain.NotFoundError("order", 9), http.StatusNotFound, 10004},
		{fmt.Errorf("checkout: %w", domain.ErrReferenceNotFound), http.StatusNotFound, 20004},
		{domain.ErrEmptyCart, http.StatusConflict, 20001},
		{domain.ErrProductUnavailable, http.StatusConflict, 20002},
		{domain.ErrInsufficientStock, http.StatusConflict, 20003},
		{domain.ErrConcurrencyConflict, http.StatusConflict, 10005},
		{domain.ErrForbidden, http.StatusForbidden, 10003},
		{fmt.Errorf("commit: %w", domain.ErrPersistence), http.StatusServiceUnavailable, 50002},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, 10002},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, 50003},
		{errors.New("boom"), http.StatusInternalServerError, 50001},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := setupTestRouter(0)
			router.GET("/", func(c *gin.Context) { writeServiceError(c, zap.NewNop(), "test", tt.err) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}
}

func TestWriteServiceError_HidesInternalDetails(t *testing.T) {
	router := setupTestRouter(0)
	router.GET("/", func(c *gin.Context) {
		writeServiceError(c, zap.NewNop(), "test", fmt.Errorf("dial tcp 10.0.0.3:3306: %w", domain.ErrPersistence))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestWriteServiceError_NonRetryableHasNoRetryAfter(t *testing.T) {
	router := setupTestRouter(0)
	router.GET("/", func(c *gin.Context) { writeServiceError(c, zap.NewNop(), "test", domain.ErrEmptyCart) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func checkoutPayload() map[string]any {
	return map[string]any{
		"shipping": map[string]any{
			"first_name":    "Ada",
			"last_name":     "Lovelace",
			"country":       "UK",
			"postal_code":   "NW1",
			"phone_number":  "+440000000",
			"home_address":  "12 St James's Square",
			"email_address": "ada@example.com",
		},
		"payment": map[string]any{"method": "CASH_ON_DELIVERY"},
	}
}

func TestOrderHandler_Checkout(t *testing.T) {
	var gotKey string
	var gotUser int64
	svc := &MockOrderService{
		checkoutFunc: func(ctx context.Context, userID int64, req *domain.CheckoutRequest) (*domain.Order, error) {
			gotKey, gotUser = req.IdempotencyKey, userID
			return &domain.Order{ID: 1, OrderNumber: "ORD-1", UserID: userID, Total: decimal.RequireFromString("59.90"), Status: domain.OrderStatusPending}, nil
		},
	}
	h := NewOrderHandler(svc, zap.NewNop())

	router := setupTestRouter(42)
	router.POST("/orders/checkout", middleware.Idempotency(), h.Checkout)

	req := httptest.NewRequest(http.MethodPost, "/orders/checkout", jsonBody(t, checkoutPayload()))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderIdempotencyKey, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "abc-123", gotKey)
	assert.Equal(t, int64(42), gotUser)

	var order domain.Order
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &order))
	assert.Equal(t, "ORD-1", order.OrderNumber)
	assert.True(t, order.Total.Equal(decimal.RequireFromString("59.90")))
}

func TestOrderHandler_CheckoutErrors(t *testing.T) {
	tests := []struct {
		name       string
		userID     int64
		body       any
		err        error
		wantStatus int
	}{
		{"unauthenticated", 0, checkoutPayload(), nil, http.StatusUnauthorized},
		{"malformed body", 42, "not-json", nil, http.StatusBadRequest},
		{"empty cart", 42, checkoutPayload(), domain.ErrEmptyCart, http.StatusConflict},
		{"insufficient stock", 42, checkoutPayload(), fmt.Errorf("red/M: %w", domain.ErrInsufficientStock), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockOrderService{
				checkoutFunc: func(ctx context.Context, userID int64, req *domain.CheckoutRequest) (*domain.Order, error) {
					return nil, tt.err
				},
			}
			router := setupTestRouter(tt.userID)
			router.POST("/orders/checkout", NewOrderHandler(svc, nil).Checkout)

			req := httptest.NewRequest(http.MethodPost, "/orders/checkout", jsonBody(t, tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestOrderHandler_UploadPaymentSlip(t *testing.T) {
	var gotName string
	var gotBody []byte
	svc := &MockOrderService{
		uploadFunc: func(ctx context.Context, userID, orderID int64, filename string, r io.Reader) (*domain.Order, error) {
			gotName = filename
			gotBody, _ = io.ReadAll(r)
			return &domain.Order{ID: orderID, PaymentSlipURL: "slips/ORD-1.png"}, nil
		},
	}
	router := setupTestRouter(7)
	router.POST("/orders/:id/payment-slip", NewOrderHandler(svc, nil).AttachPaymentSlip)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "slip.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/orders/3/payment-slip", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "slip.png", gotName)
	assert.Equal(t, "png-bytes", string(gotBody))
}

func TestOrderHandler_AttachPaymentSlipURL(t *testing.T) {
	svc := &MockOrderService{
		attachURLFunc: func(ctx context.Context, userID, orderID int64, url string) (*domain.Order, error) {
			if userID != 7 {
				return nil, domain.ErrForbidden
			}
			return &domain.Order{ID: orderID, PaymentSlipURL: url}, nil
		},
	}
	h := NewOrderHandler(svc, nil)

	for _, tc := range []struct {
		userID int64
		want   int
	}{{7, http.StatusOK}, {8, http.StatusForbidden}} {
		router := setupTestRouter(tc.userID)
		router.POST("/orders/:id/payment-slip", h.AttachPaymentSlip)

		req := httptest.NewRequest(http.MethodPost, "/orders/3/payment-slip",
			jsonBody(t, map[string]string{"url": "https://bank.example/slip/1"}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code)
	}
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	var gotActor *int64
	svc := &MockOrderService{
		updateFunc: func(ctx context.Context, orderID int64, status domain.OrderStatus, actor *int64) (*domain.Order, error) {
			gotActor = actor
			return &domain.Order{ID: orderID, Status: status}, nil
		},
	}
	h := NewOrderHandler(svc, nil)
	router := setupTestRouter(1)
	router.PUT("/admin/orders/:id/status", h.UpdateStatus)

	req := httptest.NewRequest(http.MethodPut, "/admin/orders/5/status", jsonBody(t, map[string]string{"status": "shipped"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, gotActor)
	assert.Equal(t, int64(1), *gotActor)

	req = httptest.NewRequest(http.MethodPut, "/admin/orders/5/status", jsonBody(t, map[string]string{"status": "LOST"}))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/admin/orders/abc/status", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderHandler_ListOrders(t *testing.T) {
	var gotPage, gotSize int
	svc := &MockOrderService{
		listOrdersFunc: func(ctx context.Context, userID int64, page, pageSize int) (*domain.OrderPage, error) {
			gotPage, gotSize = page, pageSize
			return &domain.OrderPage{Orders: []*domain.Order{}, Page: page, PageSize: pageSize}, nil
		},
	}
	router := setupTestRouter(3)
	router.GET("/orders", NewOrderHandler(svc, nil).ListOrders)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders?page=2&page_size=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 5, gotSize)
}

func TestOrderHandler_CancelRejected(t *testing.T) {
	router := setupTestRouter(3)
	router.POST("/orders/:id/cancel", NewOrderHandler(&MockOrderService{}, nil).CancelOrder)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/9/cancel", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_RegisterAndLogin(t *testing.T) {
	users := &MockUserService{users: map[string]*domain.User{}}
	h := NewUserHandler(users, stubJWTService{}, zap.NewNop())

	router := setupTestRouter(0)
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)

	register := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/register", jsonBody(t, map[string]string{
			"username": "alice", "email": "alice@example.com", "password": "secret123",
		}))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, register().Code)
	assert.Equal(t, http.StatusConflict, register().Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]string{"username": "alice", "password": "secret123"}))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var login domain.LoginResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &login))
	assert.Equal(t, "token-alice", login.AccessToken)
	assert.Equal(t, "alice", login.User.Username)
	assert.NotContains(t, w.Body.String(), "password")

	req = httptest.NewRequest(http.MethodPost, "/auth/login", jsonBody(t, map[string]string{"username": "alice", "password": "wrong"}))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
