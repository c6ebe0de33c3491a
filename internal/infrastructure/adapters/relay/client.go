package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
	domainerrors "github.com/nft-bridge/bridge_client/internal/domain/errors"
	"github.com/nft-bridge/bridge_client/pkg/metrics"
)

const (
	defaultTimeout = 30 * time.Second
	maxRetries     = 3
)

// Config represents relay client configuration
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	// AuthSecret signs a short-lived HS256 bearer token per call when set
	AuthSecret string
	AuthIssuer string
	Methods    Methods
	// RetryBaseDelay is the first backoff after a 5xx, doubled per attempt
	RetryBaseDelay time.Duration
}

// Client talks to the relay's JSON call gateway
type Client struct {
	config         Config
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
	logger         *zap.Logger
}

type callRequest struct {
	Args []interface{} `json:"args"`
}

// callResponse mirrors the relay's Result: exactly one of Ok and Err is set
type callResponse struct {
	Ok   json.RawMessage `json:"ok"`
	Err  *string         `json:"err"`
	Code string          `json:"code,omitempty"`
}

// NewClient creates a new relay client
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = time.Second
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRequestsPerSecond
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	config.Methods = withDefaultMethods(config.Methods)

	cbSettings := gobreaker.Settings{
		Name:        "Relay",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		// A relay that answers with an application error is healthy
		IsSuccessful: func(err error) bool {
			var apiErr *ErrorResponse
			return err == nil || errors.As(err, &apiErr)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Relay circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Client{
		config:         config,
		httpClient:     &http.Client{Timeout: config.Timeout},
		circuitBreaker: gobreaker.NewCircuitBreaker(cbSettings),
		rateLimiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		logger:         logger,
	}
}

func withDefaultMethods(m Methods) Methods {
	d := DefaultMethods()
	if m.SubmitProof == "" {
		m.SubmitProof = d.SubmitProof
	}
	if m.MonitorForward == "" {
		m.MonitorForward = d.MonitorForward
	}
	if m.MonitorReverse == "" {
		m.MonitorReverse = d.MonitorReverse
	}
	if m.ReleaseForward == "" {
		m.ReleaseForward = d.ReleaseForward
	}
	if m.ReleaseReverse == "" {
		m.ReleaseReverse = d.ReleaseReverse
	}
	return m
}

// SubmitProof sends the confirmed block number of the lock transaction
func (c *Client) SubmitProof(ctx context.Context, blockNumber uint64) error {
	method := c.config.Methods.SubmitProof
	_, err := c.call(ctx, method, blockNumber)
	metrics.RecordRelayRequest(method, err)
	if err != nil {
		return classify("submit proof", err)
	}
	c.logger.Info("Block number submitted to relay", zap.Uint64("block_number", blockNumber))
	return nil
}

// TriggerMonitor starts the relay watcher for the given direction
func (c *Client) TriggerMonitor(ctx context.Context, direction entities.Direction) error {
	method := c.monitorMethod(direction)
	_, err := c.call(ctx, method)
	metrics.RecordRelayRequest(method, err)
	if err != nil {
		return classify("trigger monitor", err)
	}
	c.logger.Info("Relay monitor triggered", zap.String("direction", string(direction)))
	return nil
}

// QueryRelease reads the destination release hash for the direction
func (c *Client) QueryRelease(ctx context.Context, direction entities.Direction) (string, bool, error) {
	method := c.releaseMethod(direction)
	raw, err := c.call(ctx, method)
	if err != nil {
		var apiErr *ErrorResponse
		if errors.As(err, &apiErr) && apiErr.IsNotYet() {
			metrics.RecordRelayRequest(method, nil)
			return "", false, nil
		}
		metrics.RecordRelayRequest(method, err)
		return "", false, classify("query release", err)
	}
	metrics.RecordRelayRequest(method, nil)

	var txHash string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &txHash); err != nil {
			return "", false, domainerrors.RelayError("query release", fmt.Errorf("unexpected ok payload %s: %w", string(raw), err))
		}
	}
	if txHash == "" {
		return "", false, nil
	}
	return txHash, true, nil
}

func (c *Client) monitorMethod(d entities.Direction) string {
	if d == entities.DirectionReverse {
		return c.config.Methods.MonitorReverse
	}
	return c.config.Methods.MonitorForward
}

func (c *Client) releaseMethod(d entities.Direction) string {
	if d == entities.DirectionReverse {
		return c.config.Methods.ReleaseReverse
	}
	return c.config.Methods.ReleaseForward
}

// classify maps transport and relay failures onto domain errors
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *ErrorResponse
	if errors.As(err, &apiErr) {
		if apiErr.IsBusy() || apiErr.IsRateLimited() {
			return domainerrors.RelayBusyError(apiErr)
		}
		return domainerrors.RelayError(op, apiErr)
	}
	return domainerrors.TransportError("relay "+op, err)
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) (json.RawMessage, error) {
	if args == nil {
		args = []interface{}{}
	}
	body, err := json.Marshal(callRequest{Args: args})
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	var resp callResponse
	if err := c.doRequest(ctx, "/call/"+method, body, &resp); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, &ErrorResponse{StatusCode: http.StatusOK, Code: resp.Code, Message: *resp.Err}
	}
	return resp.Ok, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, body []byte, response interface{}) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, c.doRequestInternal(ctx, endpoint, body, response)
	})
	return err
}

func (c *Client) doRequestInternal(ctx context.Context, endpoint string, body []byte, response interface{}) error {
	fullURL := c.config.BaseURL + endpoint

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * c.config.RetryBaseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Content-Type", "application/json")
		if c.config.AuthSecret != "" {
			token, err := c.signToken(endpoint)
			if err != nil {
				return fmt.Errorf("sign relay token: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read body: %w", err)
			continue
		}

		// Retry on 5xx
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			c.logger.Debug("Relay server error, retrying",
				zap.String("endpoint", endpoint),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1))
			continue
		}

		if resp.StatusCode >= 400 {
			errResp := ErrorResponse{StatusCode: resp.StatusCode}
			if json.Unmarshal(respBody, &errResp) != nil || errResp.Message == "" {
				errResp.Message = strings.TrimSpace(string(respBody))
			}
			errResp.StatusCode = resp.StatusCode
			return &errResp
		}

		if response != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, response); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) signToken(endpoint string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.config.AuthIssuer,
		Subject:   endpoint,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.config.AuthSecret))
}
