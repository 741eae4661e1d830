package zalopay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minhtran/veloshop-backend/pkg/config"
	pkgerrors "github.com/minhtran/veloshop-backend/pkg/errors"
	"github.com/minhtran/veloshop-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// Gateway return codes. Create and query share the "1 = success" convention;
// query additionally uses 3 for an in-flight transaction.
const (
	returnCodeSuccess    = 1
	returnCodeProcessing = 3
)

// Client talks to the ZaloPay open API: create-intent, status query and
// callback signature verification. Key1 signs outbound requests, Key2 verifies
// inbound callbacks.
type Client struct {
	cfg  config.ZaloPayConfig
	http *http.Client
	logg *logger.Logger
	now  func() time.Time
}

// NewClient validates the credentials and builds a gateway client with a
// bounded request timeout.
func NewClient(cfg config.ZaloPayConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, fmt.Errorf("zalopay app id is required")
	}
	if strings.TrimSpace(cfg.Key1) == "" {
		return nil, fmt.Errorf("zalopay key1 is required")
	}
	if strings.TrimSpace(cfg.Key2) == "" {
		return nil, fmt.Errorf("zalopay key2 is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		logg: logg,
		now:  time.Now,
	}, nil
}

// NewAppTransID generates a gateway transaction reference. The gateway
// requires a yymmdd prefix; the suffix carries the uniqueness.
func NewAppTransID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%s", now.Format("060102"), suffix)
}

// CreateIntentResult reports the gateway's answer to an intent creation.
// Accepted=false is a soft failure (gateway-side rejection), not an error.
type CreateIntentResult struct {
	Accepted      bool
	RedirectURL   string
	ReturnCode    int
	ReturnMessage string
}

type createResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
	OrderURL      string `json:"order_url"`
	ZPTransToken  string `json:"zp_trans_token"`
}

// CreateIntent registers a payment intent for the given amount and reference.
// Network failures surface as dependency errors; the caller must treat them as
// a rejection and roll back any provisional state.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, appTransID string, orderID int64) (*CreateIntentResult, error) {
	embedData, err := json.Marshal(map[string]any{"orderId": orderID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode embed data")
	}

	appTime := strconv.FormatInt(c.now().UnixMilli(), 10)
	items := "[]"
	amountStr := amount.String()

	form := url.Values{}
	form.Set("app_id", c.cfg.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("app_user", strconv.FormatInt(orderID, 10))
	form.Set("app_time", appTime)
	form.Set("amount", amountStr)
	form.Set("item", items)
	form.Set("embed_data", string(embedData))
	form.Set("description", fmt.Sprintf("Order #%d", orderID))
	form.Set("bank_code", "")

	payload := strings.Join([]string{
		c.cfg.AppID, appTransID, form.Get("app_user"), amountStr, appTime, string(embedData), items,
	}, "|")
	form.Set("mac", signHMAC(c.cfg.Key1, payload))

	var decoded createResponse
	if err := c.postForm(ctx, c.cfg.CreateEndpoint, form, &decoded); err != nil {
		return nil, err
	}

	return &CreateIntentResult{
		Accepted:      decoded.ReturnCode == returnCodeSuccess,
		RedirectURL:   decoded.OrderURL,
		ReturnCode:    decoded.ReturnCode,
		ReturnMessage: decoded.ReturnMessage,
	}, nil
}

// StatusResult reports the current state of a gateway transaction.
type StatusResult struct {
	Paid          bool
	Pending       bool
	ReturnCode    int
	ReturnMessage string
}

type queryResponse struct {
	ReturnCode    int    `json:"return_code"`
	ReturnMessage string `json:"return_message"`
}

// QueryStatus polls the gateway for the transaction's outcome.
func (c *Client) QueryStatus(ctx context.Context, appTransID string) (*StatusResult, error) {
	payload := strings.Join([]string{c.cfg.AppID, appTransID, c.cfg.Key1}, "|")

	form := url.Values{}
	form.Set("app_id", c.cfg.AppID)
	form.Set("app_trans_id", appTransID)
	form.Set("mac", signHMAC(c.cfg.Key1, payload))

	var decoded queryResponse
	if err := c.postForm(ctx, c.cfg.QueryEndpoint, form, &decoded); err != nil {
		return nil, err
	}

	return &StatusResult{
		Paid:          decoded.ReturnCode == returnCodeSuccess,
		Pending:       decoded.ReturnCode == returnCodeProcessing,
		ReturnCode:    decoded.ReturnCode,
		ReturnMessage: decoded.ReturnMessage,
	}, nil
}

// VerifyCallback recomputes the HMAC over the raw callback data with Key2 and
// compares in constant time.
func (c *Client) VerifyCallback(data, mac string) bool {
	if data == "" || mac == "" {
		return false
	}
	expected := signHMAC(c.cfg.Key2, data)
	return hmac.Equal([]byte(expected), []byte(mac))
}

// CallbackData is the payload embedded in a gateway callback after the
// signature has been verified.
type CallbackData struct {
	AppTransID string          `json:"app_trans_id"`
	AppID      json.Number     `json:"app_id"`
	Amount     decimal.Decimal `json:"amount"`
	EmbedData  string          `json:"embed_data"`
}

// OrderID extracts the internal order reference carried in embed_data.
func (d CallbackData) OrderID() (int64, error) {
	var embedded struct {
		OrderID int64 `json:"orderId"`
	}
	if err := json.Unmarshal([]byte(d.EmbedData), &embedded); err != nil {
		return 0, fmt.Errorf("decode embed data: %w", err)
	}
	return embedded.OrderID, nil
}

// ParseCallbackData decodes the verified callback payload.
func ParseCallbackData(data string) (*CallbackData, error) {
	var decoded CallbackData
	if err := json.Unmarshal([]byte(data), &decoded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode callback data")
	}
	if decoded.AppTransID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback missing app_trans_id")
	}
	return &decoded, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway returned status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}

func signHMAC(key, payload string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
