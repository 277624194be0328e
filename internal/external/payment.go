package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	apperrors "cineledger/internal/errors"
	"cineledger/internal/metrics"
	"cineledger/internal/models"
)

// Callback statuses reported by the gateway
const (
	CallbackStatusSuccess = "SUCCESS"
	CallbackStatusFailed  = "FAILED"
)

type PaymentClient struct {
	baseURL      string
	merchantSlug string
	secret       string
	returnURL    string
	currency     string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[*PaymentInitResponse]
}

type PaymentConfig struct {
	BaseURL         string
	MerchantSlug    string
	Secret          string
	ReturnURL       string
	Currency        string
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

type PaymentInitRequest struct {
	MerchantSlug string `json:"merchantSlug"`
	Token        string `json:"token"`
	Amount       int64  `json:"amount"`
	OrderID      string `json:"orderId"`
	Currency     string `json:"currency"`
	Description  string `json:"description,omitempty"`
	ReturnURL    string `json:"returnURL,omitempty"`
}

type PaymentInitResponse struct {
	Success    bool   `json:"success"`
	PaymentID  string `json:"paymentId"`
	OrderID    string `json:"orderId"`
	Status     string `json:"status"`
	Amount     int64  `json:"amount"`
	PaymentURL string `json:"paymentURL"`
	Message    string `json:"message,omitempty"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A declined payment is a healthy gateway answering
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, apperrors.ErrPaymentRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordBreakerState(name, int(to))
		},
	}

	return &PaymentClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		merchantSlug: cfg.MerchantSlug,
		secret:       cfg.Secret,
		returnURL:    cfg.ReturnURL,
		currency:     cfg.Currency,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: gobreaker.NewCircuitBreaker[*PaymentInitResponse](settings),
	}
}

// generateToken signs params: values sorted by key, concatenated with the
// merchant slug and secret, SHA-256 hex encoded.
func (pc *PaymentClient) generateToken(params map[string]string) string {
	signed := make(map[string]string, len(params)+2)
	for k, v := range params {
		signed[k] = v
	}
	signed["MerchantSlug"] = pc.merchantSlug
	signed["Secret"] = pc.secret

	keys := make([]string, 0, len(signed))
	for k := range signed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		b.WriteString(signed[key])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// Initiate starts a payment for orderID. A declined request returns an error
// wrapping ErrPaymentRejected; transport failures and timeouts are returned
// as-is and count against the circuit breaker.
func (pc *PaymentClient) Initiate(ctx context.Context, amount int64, orderID, description string) (*PaymentInitResponse, error) {
	return pc.breaker.Execute(func() (*PaymentInitResponse, error) {
		return pc.initiate(ctx, amount, orderID, description)
	})
}

func (pc *PaymentClient) initiate(ctx context.Context, amount int64, orderID, description string) (*PaymentInitResponse, error) {
	params := map[string]string{
		"Amount":   strconv.FormatInt(amount, 10),
		"Currency": pc.currency,
		"OrderId":  orderID,
	}

	req := PaymentInitRequest{
		MerchantSlug: pc.merchantSlug,
		Token:        pc.generateToken(params),
		Amount:       amount,
		OrderID:      orderID,
		Currency:     pc.currency,
		Description:  description,
		ReturnURL:    pc.returnURL,
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+"/api/v1/payments/init", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to init payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("payment gateway unavailable: status %d", resp.StatusCode)
	}

	var result PaymentInitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.Success || result.PaymentURL == "" {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrPaymentRejected, result.Message)
	}

	return &result, nil
}

// VerifyCallback reports whether the callback token matches its fields.
// Missing token or unset secret never verify.
func (pc *PaymentClient) VerifyCallback(cb models.PaymentCallback) bool {
	if cb.Token == "" || pc.secret == "" {
		return false
	}

	expected := pc.generateToken(callbackParams(cb))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(cb.Token))) == 1
}

// SignCallback produces the token the gateway would attach to cb
func (pc *PaymentClient) SignCallback(cb models.PaymentCallback) string {
	return pc.generateToken(callbackParams(cb))
}

func callbackParams(cb models.PaymentCallback) map[string]string {
	return map[string]string{
		"Amount":        strconv.FormatInt(cb.Amount, 10),
		"OrderId":       cb.OrderID,
		"PaymentId":     cb.PaymentID,
		"Status":        cb.Status,
		"TransactionId": cb.TransactionID,
	}
}
