package controllers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/minhtran/veloshop-backend/internal/orders"
	"github.com/minhtran/veloshop-backend/internal/pricing"
	"github.com/minhtran/veloshop-backend/pkg/config"
	"github.com/minhtran/veloshop-backend/pkg/enums"
	"github.com/minhtran/veloshop-backend/pkg/logger"
	"github.com/minhtran/veloshop-backend/pkg/pagination"
	"github.com/minhtran/veloshop-backend/pkg/zalopay"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testKey2 = "callback-verify-key"

type stubOrderService struct {
	createResult    *orders.CreateOrderResult
	createErr       error
	lastCreateInput orders.CreateOrderInput
	detail          *orders.OrderDetail
	detailErr       error
	reconcileResult *orders.ReconcileResult
	reconcileErr    error
	reconcileCalls  int
	callbackCalls   int
	lastRef         string
}

func (s *stubOrderService) Quote(context.Context, orders.CreateOrderInput) (*pricing.Quote, error) {
	return nil, errors.New("not implemented")
}

func (s *stubOrderService) CreateOrder(_ context.Context, input orders.CreateOrderInput) (*orders.CreateOrderResult, error) {
	s.lastCreateInput = input
	return s.createResult, s.createErr
}

func (s *stubOrderService) Reconcile(_ context.Context, ref string) (*orders.ReconcileResult, error) {
	s.reconcileCalls++
	s.lastRef = ref
	return s.reconcileResult, s.reconcileErr
}

func (s *stubOrderService) ApplyCallback(_ context.Context, ref string) (*orders.ReconcileResult, error) {
	s.callbackCalls++
	s.lastRef = ref
	return s.reconcileResult, s.reconcileErr
}

func (s *stubOrderService) List(context.Context, int64, pagination.Params) (*pagination.Page[orders.OrderSummary], error) {
	return nil, errors.New("not implemented")
}

func (s *stubOrderService) Get(context.Context, int64, int64) (*orders.OrderDetail, error) {
	return s.detail, s.detailErr
}

func (s *stubOrderService) UpdateStatus(context.Context, int64, enums.OrderStatus) (*orders.OrderDetail, error) {
	return nil, errors.New("not implemented")
}

func (s *stubOrderService) SweepStalePending(context.Context, time.Duration, int) (int64, error) {
	return 0, errors.New("not implemented")
}

type stubGuard struct {
	acquired bool
	setErr   error
	setCalls int
	delCalls int
	lastKey  string
}

func (g *stubGuard) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	g.setCalls++
	g.lastKey = key
	return g.acquired, g.setErr
}

func (g *stubGuard) Del(_ context.Context, keys ...string) error {
	g.delCalls += len(keys)
	return nil
}

func (g *stubGuard) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func testVerifier(t *testing.T) *zalopay.Client {
	t.Helper()
	client, err := zalopay.NewClient(config.ZaloPayConfig{
		AppID: "2553",
		Key1:  "create-sign-key",
		Key2:  testKey2,
	}, testLogger())
	require.NoError(t, err)
	return client
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
}

func signCallback(data string) string {
	mac := hmac.New(sha256.New, []byte(testKey2))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func callbackBody(t *testing.T, ref string, sign bool) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"app_trans_id": ref,
		"app_id":       2553,
		"amount":       150000,
	})
	require.NoError(t, err)

	mac := "deadbeef"
	if sign {
		mac = signCallback(string(data))
	}
	body, err := json.Marshal(map[string]string{"data": string(data), "mac": mac})
	require.NoError(t, err)
	return body
}

func postCallback(t *testing.T, handler http.HandlerFunc, body []byte) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/zalopay", bytes.NewReader(body))
	handler(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec.Code, decoded
}

func TestZaloPayCallbackPaid(t *testing.T) {
	orderID := int64(42)
	svc := &stubOrderService{reconcileResult: &orders.ReconcileResult{
		AppTransID: "250901_abc123def456",
		State:      orders.PaymentStatePaid,
		OrderID:    &orderID,
	}}
	guard := &stubGuard{acquired: true}
	handler := ZaloPayCallback(svc, testVerifier(t), guard, testLogger())

	status, resp := postCallback(t, handler, callbackBody(t, "250901_abc123def456", true))

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), resp["return_code"])
	require.Equal(t, "success", resp["return_message"])
	require.Equal(t, 1, svc.callbackCalls)
	require.Zero(t, svc.reconcileCalls, "a verified callback must not re-query the gateway")
	require.Equal(t, "250901_abc123def456", svc.lastRef)
	require.Equal(t, "idempotency:zalopay_callback:250901_abc123def456", guard.lastKey)
	require.Zero(t, guard.delCalls)
}

func TestZaloPayCallbackBadMac(t *testing.T) {
	svc := &stubOrderService{}
	guard := &stubGuard{acquired: true}
	handler := ZaloPayCallback(svc, testVerifier(t), guard, testLogger())

	status, resp := postCallback(t, handler, callbackBody(t, "250901_abc123def456", false))

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(-1), resp["return_code"])
	require.Equal(t, "mac not equal", resp["return_message"])
	require.Zero(t, svc.callbackCalls)
	require.Zero(t, guard.setCalls)
}

func TestZaloPayCallbackMalformedBody(t *testing.T) {
	svc := &stubOrderService{}
	guard := &stubGuard{acquired: true}
	handler := ZaloPayCallback(svc, testVerifier(t), guard, testLogger())

	status, resp := postCallback(t, handler, []byte("{not json"))

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(-1), resp["return_code"])
	require.Zero(t, svc.callbackCalls)
}

func TestZaloPayCallbackDuplicateDelivery(t *testing.T) {
	svc := &stubOrderService{}
	guard := &stubGuard{acquired: false}
	handler := ZaloPayCallback(svc, testVerifier(t), guard, testLogger())

	status, resp := postCallback(t, handler, callbackBody(t, "250901_abc123def456", true))

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(1), resp["return_code"])
	require.Zero(t, svc.callbackCalls, "duplicate delivery must not settle again")
}

func TestZaloPayCallbackReconcileFailureReleasesGuard(t *testing.T) {
	svc := &stubOrderService{reconcileErr: errors.New("gateway unreachable")}
	guard := &stubGuard{acquired: true}
	handler := ZaloPayCallback(svc, testVerifier(t), guard, testLogger())

	status, resp := postCallback(t, handler, callbackBody(t, "250901_abc123def456", true))

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(0), resp["return_code"], "gateway must retry after a settlement failure")
	require.Equal(t, 1, svc.callbackCalls)
	require.Equal(t, 1, guard.delCalls)
}

func TestZaloPayCallbackGuardUnavailable(t *testing.T) {
	svc := &stubOrderService{}
	guard := &stubGuard{setErr: errors.New("redis down")}
	handler := ZaloPayCallback(svc, testVerifier(t), guard, testLogger())

	status, resp := postCallback(t, handler, callbackBody(t, "250901_abc123def456", true))

	require.Equal(t, http.StatusOK, status)
	require.Equal(t, float64(0), resp["return_code"])
	require.Zero(t, svc.callbackCalls)
}
