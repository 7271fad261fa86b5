package facilitator

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

	"github.com/mark3labs/x402-go/retry"

	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/types"
)

// Client talks to a facilitator over HTTP. The zero value is not usable;
// set at least BaseURL.
type Client struct {
	// BaseURL is the facilitator root, e.g. DefaultURL.
	BaseURL string

	// HTTPClient defaults to a client bounded by Timeouts.RequestTimeout.
	HTTPClient *http.Client

	Timeouts TimeoutConfig

	// MaxRetries is the number of extra Verify attempts made when the
	// facilitator cannot be reached. Zero disables retries. Settle is sent
	// once: a lost response may still have settled, and a resubmission would
	// only come back as a spent-nonce rejection.
	MaxRetries int

	// RetryDelay is the first backoff delay (default 100ms), doubled per retry.
	RetryDelay time.Duration

	// Authorization is sent verbatim in the Authorization header when set.
	Authorization string

	Logger logger.Logger
}

var _ Interface = (*Client)(nil)

// NewClient returns a Client for baseURL with default timeouts.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Timeouts: DefaultTimeouts}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	if c.Timeouts.RequestTimeout > 0 {
		return &http.Client{Timeout: c.Timeouts.RequestTimeout}
	}
	return http.DefaultClient
}

func (c *Client) retryConfig() retry.Config {
	delay := c.RetryDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.Config{
		MaxAttempts:  retries + 1,
		InitialDelay: delay,
		MaxDelay:     delay * 4,
		Multiplier:   2.0,
	}
}

func isUnavailable(err error) bool {
	return errors.Is(err, types.ErrFacilitatorUnavailable)
}

func (c *Client) Verify(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirements) (*types.VerifyResponse, error) {
	body, err := c.requestBody(payload, req)
	if err != nil {
		return nil, err
	}

	var attempt int
	return retry.WithRetry(ctx, c.retryConfig(), isUnavailable, func() (*types.VerifyResponse, error) {
		attempt++
		var out types.VerifyResponse
		if err := c.post(ctx, "/verify", body, c.Timeouts.VerifyTimeout, types.ErrVerification, &out); err != nil {
			c.logFailure("verify", attempt, err)
			return nil, err
		}
		if out.Payer == "" {
			out.Payer = payload.Payload.Authorization.From
		}
		return &out, nil
	})
}

func (c *Client) Settle(ctx context.Context, payload *types.PaymentPayload, req *types.PaymentRequirements) (*types.SettleResponse, error) {
	body, err := c.requestBody(payload, req)
	if err != nil {
		return nil, err
	}

	var out types.SettleResponse
	if err := c.post(ctx, "/settle", body, c.Timeouts.SettleTimeout, types.ErrSettlement, &out); err != nil {
		c.logFailure("settle", 1, err)
		return nil, err
	}
	if out.Payer == "" {
		out.Payer = payload.Payload.Authorization.From
	}
	return &out, nil
}

// Supported lists the scheme and network pairs the facilitator accepts.
func (c *Client) Supported(ctx context.Context) (*types.SupportedResponse, error) {
	reqCtx, cancel := withDefaultTimeout(ctx, c.Timeouts.VerifyTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.BaseURL+"/supported", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuthorization(httpReq)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supported endpoint failed: status %d", resp.StatusCode)
	}
	var out types.SupportedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode supported response: %w", err)
	}
	return &out, nil
}

func (c *Client) requestBody(payload *types.PaymentPayload, req *types.PaymentRequirements) ([]byte, error) {
	if payload == nil || req == nil {
		return nil, fmt.Errorf("%w: payload and requirements are required", types.ErrPayloadInvalid)
	}
	vr := types.VerifyRequest{
		X402Version:         int(types.X402Version1),
		PaymentPayload:      *payload,
		PaymentRequirements: *req,
	}
	if err := vr.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrPayloadInvalid, err)
	}
	data, err := json.Marshal(vr)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return data, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, timeout time.Duration, failure error, out any) error {
	reqCtx, cancel := withDefaultTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuthorization(httpReq)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrFacilitatorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp, failure)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", strings.TrimPrefix(path, "/"), err)
	}
	return nil
}

func (c *Client) setAuthorization(req *http.Request) {
	if c.Authorization != "" {
		req.Header.Set("Authorization", c.Authorization)
	}
}

func (c *Client) logFailure(op string, attempt int, err error) {
	logger.OrNoop(c.Logger).Warn("facilitator call failed", map[string]any{
		"op":      op,
		"attempt": attempt,
		"error":   err,
	})
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// parseErrorResponse turns a non-200 reply into an error wrapping base,
// preferring the x402 reason fields over the raw body.
func parseErrorResponse(resp *http.Response, base error) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var reasons struct {
		InvalidReason string `json:"invalidReason"`
		ErrorReason   string `json:"errorReason"`
	}
	if err := json.Unmarshal(body, &reasons); err == nil {
		if reasons.InvalidReason != "" {
			return fmt.Errorf("%w: status %d, reason: %s", base, resp.StatusCode, reasons.InvalidReason)
		}
		if reasons.ErrorReason != "" {
			return fmt.Errorf("%w: status %d, reason: %s", base, resp.StatusCode, reasons.ErrorReason)
		}
	}
	if len(body) > 0 && len(body) < 500 {
		return fmt.Errorf("%w: status %d, body: %s", base, resp.StatusCode, string(body))
	}
	return fmt.Errorf("%w: status %d", base, resp.StatusCode)
}
