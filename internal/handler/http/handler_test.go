package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/pointledger/internal/domain"
	"github.com/utafrali/pointledger/internal/repository/memory"
	"github.com/utafrali/pointledger/internal/service"
	"github.com/utafrali/pointledger/pkg/health"
	"github.com/utafrali/pointledger/pkg/httputil"
	"github.com/utafrali/pointledger/pkg/idempotency"
	"github.com/utafrali/pointledger/pkg/middleware"
	"github.com/utafrali/pointledger/pkg/pagination"
)

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	owner      = "0xowner"
	pointPrice = int64(100_000_000)
)

type envelope struct {
	Data  json.RawMessage         `json:"data"`
	Error *httputil.ErrorResponse `json:"error"`
}

type testServer struct {
	handler http.Handler
	auth    *middleware.Authenticator
	idem    *idempotency.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	reg := prometheus.NewRegistry()

	ledger := service.NewLedger(memory.New(owner), pointPrice, service.NewMetrics(reg), logger)
	hh := health.NewHandler()
	hh.Register("store", ledger.Ping)

	limiter := middleware.NewRateLimiter(1000, 1000, time.Minute)
	t.Cleanup(limiter.Close)

	auth := middleware.NewAuthenticator(testSecret, "pointledger")
	idem := idempotency.NewMemoryStore(0)

	return &testServer{
		handler: NewRouter(RouterConfig{
			Ledger:         ledger,
			Health:         hh,
			Authenticator:  auth,
			RateLimiter:    limiter,
			Idempotency:    idem,
			IdempotencyTTL: time.Hour,
			Metrics:        middleware.NewHTTPMetrics(reg),
			Gatherer:       reg,
			CORSOrigins:    []string{"http://localhost:3000"},
			Logger:         logger,
		}),
		auth: auth,
		idem: idem,
	}
}

func (s *testServer) token(t *testing.T, address string) string {
	t.Helper()
	tok, err := s.auth.Issue(address, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, as string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequestWithContext(context.Background(), method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, as))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.Nil(t, env.Error, rec.Body.String())

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NotNil(t, env.Error, rec.Body.String())
	return env.Error.Code
}

func TestLedgerScenarioOverHTTP(t *testing.T) {
	s := newTestServer(t)
	const user, company = "0xuser", "0xcompany"

	rec := s.do(t, http.MethodPost, "/api/v1/users", user, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	acct := decode[domain.Account](t, rec)
	assert.Equal(t, int64(300), acct.Points)

	rec = s.do(t, http.MethodPost, "/api/v1/companies", company, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(3000), decode[domain.Account](t, rec).Points)

	rec = s.do(t, http.MethodPost, "/api/v1/products", company,
		map[string]any{"name": "P1", "price": 100, "stock": 50, "is_beta_test": true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	product := decode[domain.Product](t, rec)
	assert.Equal(t, int64(1), product.ID)

	rec = s.do(t, http.MethodPost, "/api/v1/products/1/purchases", user, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+user, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(200), decode[service.UserInfo](t, rec).Points)

	rec = s.do(t, http.MethodGet, "/api/v1/products/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(49), decode[service.ProductView](t, rec).Stock)

	rec = s.do(t, http.MethodGet, "/api/v1/products/1/rating", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[RatingResponse](t, rec).Rated)

	rec = s.do(t, http.MethodPost, "/api/v1/products/1/reviews", user, map[string]any{"rating": 4, "comment": "good"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/v1/products/1/rating", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, RatingResponse{ProductID: 1, AverageRating: 4, Rated: true}, decode[RatingResponse](t, rec))

	rec = s.do(t, http.MethodPost, "/api/v1/products/1/reviews", user, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_REVIEWED", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/products/1/reviews", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	reviews := decode[pagination.Page[domain.Review]](t, rec)
	require.Len(t, reviews.Items, 1)
	assert.Equal(t, "good", reviews.Items[0].Comment)

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+user, "", nil)
	assert.Equal(t, []int64{1}, decode[service.UserInfo](t, rec).ReviewedProductIDs)

	rec = s.do(t, http.MethodGet, "/api/v1/users/"+user+"/purchases", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[pagination.Page[domain.Purchase]](t, rec).Total)
}

func TestTreasuryOverHTTP(t *testing.T) {
	s := newTestServer(t)
	const user = "0xuser"

	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/users", user, nil).Code)

	rec := s.do(t, http.MethodPost, "/api/v1/points", user, map[string]any{"amount": 10, "payment": 1_000_000_000})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(310), decode[domain.Account](t, rec).Points)

	rec = s.do(t, http.MethodPost, "/api/v1/treasury/withdrawals", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/treasury", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tr := decode[TreasuryResponse](t, rec)
	assert.Equal(t, int64(1_000_000_000), tr.Balance)
	assert.Equal(t, owner, tr.Owner)
	assert.Equal(t, pointPrice, tr.PointPrice)

	rec = s.do(t, http.MethodPost, "/api/v1/treasury/withdrawals", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, WithdrawalResponse{Recipient: owner, Amount: 1_000_000_000}, decode[WithdrawalResponse](t, rec))

	rec = s.do(t, http.MethodGet, "/api/v1/treasury", "", nil)
	tr = decode[TreasuryResponse](t, rec)
	assert.Zero(t, tr.Balance)
	assert.Equal(t, int64(1_000_000_000), tr.OwnerPayoutBalance)
}

func TestErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/users", "0xuser", nil).Code)

	tests := []struct {
		name   string
		method string
		path   string
		as     string
		body   any
		status int
		code   string
	}{
		{"no token", http.MethodPost, "/api/v1/users", "", nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"registered twice", http.MethodPost, "/api/v1/companies", "0xuser", nil, http.StatusConflict, "ALREADY_REGISTERED"},
		{"bad product id", http.MethodGet, "/api/v1/products/abc", "", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown product", http.MethodGet, "/api/v1/products/9", "", nil, http.StatusNotFound, "NOT_FOUND"},
		{"product id zero", http.MethodGet, "/api/v1/products/0", "", nil, http.StatusNotFound, "NOT_FOUND"},
		{"negative product id", http.MethodGet, "/api/v1/products/-1/rating", "", nil, http.StatusNotFound, "NOT_FOUND"},
		{"missing amount", http.MethodPost, "/api/v1/points", "0xuser", map[string]any{"payment": 1}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"stranger omits amount", http.MethodPost, "/api/v1/points", "0xstranger", map[string]any{}, http.StatusForbidden, "NOT_REGISTERED"},
		{"malformed body", http.MethodPost, "/api/v1/points", "0xuser", "{", http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", http.MethodPost, "/api/v1/points", "0xuser", map[string]any{"amount": 1, "payment": 1, "x": 1}, http.StatusBadRequest, "INVALID_INPUT"},
		{"payment mismatch", http.MethodPost, "/api/v1/points", "0xuser", map[string]any{"amount": 1, "payment": 1}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"zero amount", http.MethodPost, "/api/v1/points", "0xuser", map[string]any{"amount": 0, "payment": 0}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"not registered", http.MethodPost, "/api/v1/points", "0xstranger", map[string]any{"amount": 1, "payment": pointPrice}, http.StatusForbidden, "NOT_REGISTERED"},
		{"user adds product", http.MethodPost, "/api/v1/products", "0xuser", map[string]any{"name": "P", "price": 1, "stock": 1}, http.StatusForbidden, "UNAUTHORIZED"},
		{"user adds unnamed product", http.MethodPost, "/api/v1/products", "0xuser", map[string]any{}, http.StatusForbidden, "UNAUTHORIZED"},
		{"buy unknown product", http.MethodPost, "/api/v1/products/9/purchases", "0xuser", nil, http.StatusNotFound, "NOT_FOUND"},
		{"buy product zero", http.MethodPost, "/api/v1/products/0/purchases", "0xuser", nil, http.StatusNotFound, "NOT_FOUND"},
		{"stranger buys product zero", http.MethodPost, "/api/v1/products/0/purchases", "0xstranger", nil, http.StatusForbidden, "NOT_REGISTERED"},
		{"stranger reviews product zero", http.MethodPost, "/api/v1/products/0/reviews", "0xstranger", map[string]any{}, http.StatusForbidden, "NOT_REGISTERED"},
		{"review unknown product without rating", http.MethodPost, "/api/v1/products/1/reviews", "0xuser", map[string]any{}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.as, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestIdempotentBuyPoints(t *testing.T) {
	s := newTestServer(t)
	const user = "0xuser"
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/users", user, nil).Code)

	body := map[string]any{"amount": 1, "payment": pointPrice}
	first := s.do(t, http.MethodPost, "/api/v1/points", user, body, middleware.IdempotencyHeader, "buy-1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(middleware.IdempotentReplayHeader))

	second := s.do(t, http.MethodPost, "/api/v1/points", user, body, middleware.IdempotencyHeader, "buy-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(middleware.IdempotentReplayHeader))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	rec := s.do(t, http.MethodGet, "/api/v1/users/"+user, "", nil)
	assert.Equal(t, int64(301), decode[service.UserInfo](t, rec).Points)

	reused := s.do(t, http.MethodPost, "/api/v1/points", user,
		map[string]any{"amount": 2, "payment": 2 * pointPrice}, middleware.IdempotencyHeader, "buy-1")
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
	assert.Equal(t, 1, s.idem.Len())
}

func TestProbesAndMetrics(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", "", nil).Code)

	s.do(t, http.MethodPost, "/api/v1/users", "0xuser", nil)
	s.do(t, http.MethodGet, "/api/v1/products", "", nil)

	rec := s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `pointledger_ledger_operations_total{operation="RegisterUser",result="ok"} 1`)
	assert.Contains(t, body, `pointledger_points_issued_total{source="registration"} 300`)
	assert.Contains(t, body, `route="/api/v1/products"`)
}

func TestWritesAreNotCached(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/users", "0xuser", nil)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rec.Header().Get(middleware.CorrelationHeader))
}

func TestBadPathParameterCarriesRequestID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/products/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	assert.Equal(t, rec.Header().Get(middleware.CorrelationHeader), env.Error.RequestID)
	assert.NotEmpty(t, env.Error.RequestID)
}
