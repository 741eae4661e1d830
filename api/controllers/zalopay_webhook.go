package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/minhtran/veloshop-backend/internal/orders"
	"github.com/minhtran/veloshop-backend/pkg/logger"
	"github.com/minhtran/veloshop-backend/pkg/zalopay"
)

// callbackGuardTTL bounds how long a transaction reference blocks duplicate
// callback processing. The gateway stops retrying well before this.
const callbackGuardTTL = 24 * time.Hour

// CallbackVerifier checks the gateway's HMAC over the raw callback payload.
type CallbackVerifier interface {
	VerifyCallback(data, mac string) bool
}

// CallbackGuard deduplicates callback deliveries per transaction reference.
type CallbackGuard interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type zaloPayCallbackRequest struct {
	Data string `json:"data"`
	Mac  string `json:"mac"`
}

type zaloPayCallbackResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// ZaloPayCallback ingests payment notifications from the gateway. The response
// body follows the gateway's contract, not the API envelope: return_code 1
// acknowledges the delivery, 0 asks the gateway to retry, and -1 rejects a
// payload whose MAC does not verify.
func ZaloPayCallback(svc orders.Service, verifier CallbackVerifier, guard CallbackGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req zaloPayCallbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logg.Warn(ctx, "zalopay callback: malformed body")
			writeCallbackResponse(w, -1, "invalid payload")
			return
		}

		if !verifier.VerifyCallback(req.Data, req.Mac) {
			logg.Warn(ctx, "zalopay callback: mac not equal")
			writeCallbackResponse(w, -1, "mac not equal")
			return
		}

		payload, err := zalopay.ParseCallbackData(req.Data)
		if err != nil {
			logg.Warn(ctx, "zalopay callback: undecodable data")
			writeCallbackResponse(w, -1, "invalid payload")
			return
		}

		ctx = logg.WithOrderRef(ctx, payload.AppTransID)
		guardKey := guard.IdempotencyKey("zalopay_callback", payload.AppTransID)
		acquired, err := guard.SetNX(ctx, guardKey, time.Now().UTC().Format(time.RFC3339), callbackGuardTTL)
		if err != nil {
			logg.Error(ctx, "zalopay callback: idempotency guard unavailable", err)
			writeCallbackResponse(w, 0, "temporarily unavailable")
			return
		}
		if !acquired {
			// A previous delivery already reconciled this reference.
			writeCallbackResponse(w, 1, "success")
			return
		}

		// The MAC already authenticated the outcome; apply it directly instead
		// of asking the gateway what it just told us.
		result, err := svc.ApplyCallback(ctx, payload.AppTransID)
		if err != nil {
			// Release the guard so the gateway's retry can settle again.
			if delErr := guard.Del(ctx, guardKey); delErr != nil {
				logg.Error(ctx, "zalopay callback: failed to release idempotency guard", delErr)
			}
			logg.Error(ctx, "zalopay callback: settlement failed", err)
			writeCallbackResponse(w, 0, "reconcile failed")
			return
		}

		logg.Info(logg.WithField(ctx, "state", result.State), "zalopay callback processed")
		writeCallbackResponse(w, 1, "success")
	}
}

func writeCallbackResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(zaloPayCallbackResponse{ReturnCode: code, ReturnMessage: message})
}
