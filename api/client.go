// Package api talks to the remote payment-authorization service: SIWE login,
// spend authorization and payment lifecycle reporting.
package api

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/utils"
)

const (
	DefaultTimeout = 30 * time.Second

	pathNonce = "/api/v1/agents/auth/nonce"
	pathLogin = "/api/v1/agents/auth/login"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	// SessionKeyPrivateKey signs the SIWE login. Required for authenticated calls.
	SessionKeyPrivateKey string
	Timeout              time.Duration
	HTTPClient           *http.Client
	Logger               logger.Logger
	// Now overrides time.Now for token expiry and SIWE timestamps.
	Now func() time.Time
}

type authState struct {
	token        string
	agentAddress string
	expiresAt    time.Time
}

// Client is safe for concurrent use. Concurrent callers that find the client
// unauthenticated share a single login.
type Client struct {
	baseURL    string
	sessionKey *ecdsa.PrivateKey
	keyErr     error
	timeout    time.Duration
	http       *http.Client
	logger     logger.Logger
	now        func() time.Time

	mu    sync.RWMutex
	auth  authState
	login singleflight.Group
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		http:    opts.HTTPClient,
		logger:  logger.OrNoop(opts.Logger),
		now:     opts.Now,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.SessionKeyPrivateKey != "" {
		c.sessionKey, c.keyErr = utils.PrivateKeyFromHex(opts.SessionKeyPrivateKey)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// ClearAuth drops the cached token.
func (c *Client) ClearAuth() {
	c.mu.Lock()
	c.auth = authState{}
	c.mu.Unlock()
}

// AgentAddress is the agent address returned by the last login, or "".
func (c *Client) AgentAddress() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth.agentAddress
}

// IsAuthenticated reports whether a token is held and has not expired.
func (c *Client) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth.token != "" && c.auth.expiresAt.After(c.now())
}

// AuthorizePayment asks whether the agent may pay any of requirements.
func (c *Client) AuthorizePayment(ctx context.Context, requirements []types.PaymentRequirements, pctx map[string]any) (*AuthorizeResponse, error) {
	auth, err := c.ensureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	var out AuthorizeResponse
	err = c.fetch(ctx, http.MethodPost, "/api/v1/agents/"+auth.agentAddress+"/payment/authorize",
		authorizeRequest{Requirements: requirements, Context: pctx}, auth.token, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportPaymentEvent records a lifecycle event for payment id. Reports are
// idempotent per id on the server side.
func (c *Client) ReportPaymentEvent(ctx context.Context, id string, payment *types.PaymentPayload, event PaymentEvent) (*EventResponse, error) {
	auth, err := c.ensureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}
	var out EventResponse
	err = c.fetch(ctx, http.MethodPost, "/api/v1/agents/"+auth.agentAddress+"/payment/events",
		eventRequest{ID: id, Payment: payment, Event: event}, auth.token, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) snapshot() authState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

func (c *Client) ensureAuthenticated(ctx context.Context) (authState, error) {
	if c.IsAuthenticated() {
		return c.snapshot(), nil
	}
	// The login outlives any single caller: one caller giving up must not
	// fail the others waiting on it.
	ch := c.login.DoChan("login", func() (any, error) {
		if c.IsAuthenticated() {
			return nil, nil
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return nil, c.authenticate(lctx)
	})
	select {
	case <-ctx.Done():
		return authState{}, &APIError{Message: fmt.Sprintf("Request failed: %v", ctx.Err()), Err: ctx.Err()}
	case res := <-ch:
		if res.Shared {
			c.logger.Debug("joined in-flight login", nil)
		}
		if res.Err != nil {
			return authState{}, res.Err
		}
	}
	return c.snapshot(), nil
}

func (c *Client) authenticate(ctx context.Context) error {
	if c.sessionKey == nil {
		msg := "Session key private key is required for authentication"
		if c.keyErr != nil {
			msg = fmt.Sprintf("Authentication failed: invalid session key: %v", c.keyErr)
		}
		return &APIError{Message: msg, Err: ErrAuthentication}
	}

	var nonce nonceResponse
	if err := c.fetch(ctx, http.MethodGet, pathNonce, nil, "", &nonce); err != nil {
		return asAuthError(err)
	}
	if nonce.Nonce == "" || nonce.SessionID == "" {
		return asAuthError(errors.New("nonce response missing nonce or sessionId"))
	}

	message, err := siweMessage(c.baseURL, utils.AddressFromPrivateKey(c.sessionKey), nonce.Nonce, c.now())
	if err != nil {
		return asAuthError(err)
	}

	signature, err := utils.SignPersonalMessage(message, c.sessionKey)
	if err != nil {
		return asAuthError(err)
	}

	var login loginResponse
	err = c.fetch(ctx, http.MethodPost, pathLogin, loginRequest{
		Message:   message,
		Signature: signature,
		SessionID: nonce.SessionID,
	}, "", &login)
	if err != nil {
		return asAuthError(err)
	}

	expiresAt, err := time.Parse(time.RFC3339, login.ExpiresAt)
	if err != nil {
		return asAuthError(fmt.Errorf("invalid expiresAt %q: %w", login.ExpiresAt, err))
	}

	c.mu.Lock()
	c.auth = authState{token: login.Token, agentAddress: login.AgentAddress, expiresAt: expiresAt}
	c.mu.Unlock()

	c.logger.Info("authenticated with payment API", map[string]any{
		"agent_address": login.AgentAddress,
		"expires_at":    expiresAt,
	})
	return nil
}

func (c *Client) fetch(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: fmt.Sprintf("Request failed: %v", err), Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("Request failed: %v", err), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &APIError{Message: fmt.Sprintf("Request timeout after %s", c.timeout), Err: err}
		}
		return &APIError{Message: fmt.Sprintf("Request failed: %v", err), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Message: fmt.Sprintf("Request failed: %v", err), Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		if len(respBody) > 0 {
			msg += ": " + string(respBody)
		}
		return &APIError{Message: msg, Status: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &APIError{Message: fmt.Sprintf("Request failed: invalid response body: %v", err), Status: resp.StatusCode, Body: string(respBody), Err: err}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
