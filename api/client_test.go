package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/utils"
)

const (
	sessionKey     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	sessionAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	agentAddress   = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
)

// fakeAPI is an in-memory payment API.
type fakeAPI struct {
	t          *testing.T
	logins     atomic.Int32
	authorized bool
	expiresIn  time.Duration
	loginDelay time.Duration

	mu         sync.Mutex
	authorizes []map[string]any
	events     []map[string]any
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/agents/auth/nonce", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"nonce": "abc12345", "sessionId": "sess-1"})
	})
	mux.HandleFunc("POST /api/v1/agents/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		time.Sleep(f.loginDelay)

		var body loginRequest
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(f.t, "sess-1", body.SessionID)
		assert.Contains(f.t, body.Message, "Nonce: abc12345")
		ok, err := utils.VerifyPersonalMessage(body.Message, body.Signature, common.HexToAddress(sessionAddress))
		assert.NoError(f.t, err)
		assert.True(f.t, ok, "login signature must recover to the session key")

		expires := time.Now().Add(f.expiresIn).UTC().Format(time.RFC3339)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok", "agentAddress": agentAddress, "expiresAt": expires})
	})
	mux.HandleFunc("POST /api/v1/agents/{agent}/payment/authorize", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		assert.Equal(f.t, agentAddress, r.PathValue("agent"))
		var body map[string]any
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.authorizes = append(f.authorizes, body)
		f.mu.Unlock()

		resp := map[string]any{"authorized": f.authorized}
		if !f.authorized {
			resp["reason"] = "daily limit exceeded"
		} else {
			resp["limits"] = map[string]string{"dailyRemaining": "9000", "monthlyRemaining": "90000"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /api/v1/agents/{agent}/payment/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body map[string]any
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.events = append(f.events, body)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"received": true, "paymentId": "pay-1"})
	})
	return mux
}

func newFake(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{t: t, authorized: true, expiresIn: time.Hour}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func requirements() []types.PaymentRequirements {
	return []types.PaymentRequirements{{
		Scheme:            "exact",
		Network:           "base-sepolia",
		MaxAmountRequired: "1000",
		PayTo:             "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		MaxTimeoutSeconds: 300,
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	}}
}

func TestAuthorizePayment(t *testing.T) {
	f, srv := newFake(t)
	c := NewClient(Options{BaseURL: srv.URL + "/", SessionKeyPrivateKey: sessionKey})
	assert.Equal(t, srv.URL, c.BaseURL())
	assert.False(t, c.IsAuthenticated())

	resp, err := c.AuthorizePayment(context.Background(), requirements(), map[string]any{"task": "t-1"})
	require.NoError(t, err)
	assert.True(t, resp.Authorized)
	require.NotNil(t, resp.Limits)
	assert.Equal(t, "9000", resp.Limits.DailyRemaining)

	assert.True(t, c.IsAuthenticated())
	assert.Equal(t, agentAddress, c.AgentAddress())

	require.Len(t, f.authorizes, 1)
	assert.Equal(t, map[string]any{"task": "t-1"}, f.authorizes[0]["context"])
	reqs := f.authorizes[0]["requirements"].([]any)
	assert.Equal(t, "1000", reqs[0].(map[string]any)["maxAmountRequired"])

	// context is omitted entirely when absent
	_, err = c.AuthorizePayment(context.Background(), requirements(), nil)
	require.NoError(t, err)
	_, present := f.authorizes[1]["context"]
	assert.False(t, present)
	assert.Equal(t, int32(1), f.logins.Load())
}

func TestReportPaymentEvent(t *testing.T) {
	f, srv := newFake(t)
	c := NewClient(Options{BaseURL: srv.URL, SessionKeyPrivateKey: sessionKey})

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	resp, err := c.ReportPaymentEvent(context.Background(), "abc", &types.PaymentPayload{X402Version: 1, Scheme: "exact"},
		PaymentEvent{Type: EventSending, Timestamp: ts})
	require.NoError(t, err)
	assert.True(t, resp.Received)
	assert.Equal(t, "pay-1", resp.PaymentID)

	require.Len(t, f.events, 1)
	ev := f.events[0]
	assert.Equal(t, "abc", ev["id"])
	assert.Equal(t, "exact", ev["payment"].(map[string]any)["scheme"])
	event := ev["event"].(map[string]any)
	assert.Equal(t, "sending", event["type"])
	assert.Equal(t, "2026-01-02T03:04:05Z", event["timestamp"])
}

func TestConcurrentCallersShareLogin(t *testing.T) {
	f, srv := newFake(t)
	f.loginDelay = 50 * time.Millisecond
	c := NewClient(Options{BaseURL: srv.URL, SessionKeyPrivateKey: sessionKey})

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := c.AuthorizePayment(context.Background(), requirements(), nil)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), f.logins.Load())
	assert.Len(t, f.authorizes, 8)
}

func TestCancelledCallerDoesNotFailSharedLogin(t *testing.T) {
	f, srv := newFake(t)
	f.loginDelay = 300 * time.Millisecond
	c := NewClient(Options{BaseURL: srv.URL, SessionKeyPrivateKey: sessionKey})

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.AuthorizePayment(ctx, requirements(), nil)
		first <- err
	}()
	require.Eventually(t, func() bool { return f.logins.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := c.AuthorizePayment(context.Background(), requirements(), nil)
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-first, context.Canceled)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), f.logins.Load())
	assert.True(t, c.IsAuthenticated())
}

func TestExpiredTokenTriggersRelogin(t *testing.T) {
	f, srv := newFake(t)
	f.expiresIn = -time.Minute
	c := NewClient(Options{BaseURL: srv.URL, SessionKeyPrivateKey: sessionKey})

	_, err := c.AuthorizePayment(context.Background(), requirements(), nil)
	require.NoError(t, err)
	assert.False(t, c.IsAuthenticated())

	_, err = c.AuthorizePayment(context.Background(), requirements(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.logins.Load())

	c.ClearAuth()
	assert.Empty(t, c.AgentAddress())
}

func TestMissingSessionKey(t *testing.T) {
	f, srv := newFake(t)
	c := NewClient(Options{BaseURL: srv.URL})

	_, err := c.AuthorizePayment(context.Background(), requirements(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Contains(t, err.Error(), "Session key private key is required")
	assert.Zero(t, f.logins.Load())
}

func TestHTTPErrorSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, SessionKeyPrivateKey: sessionKey})

	_, err := c.AuthorizePayment(context.Background(), requirements(), nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.True(t, strings.HasPrefix(apiErr.Message, "HTTP 500 Internal Server Error: boom"))
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{BaseURL: srv.URL, SessionKeyPrivateKey: sessionKey, Timeout: 20 * time.Millisecond})

	_, err := c.AuthorizePayment(context.Background(), requirements(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Request timeout after 20ms")
}

func TestSIWEMessageLayout(t *testing.T) {
	msg, err := siweMessage("https://api.example.com", common.HexToAddress(sessionAddress),
		"abc12345", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	want := "api.example.com wants you to sign in with your Ethereum account:\n" +
		sessionAddress + "\n\n" +
		"Sign in to API\n\n" +
		"URI: https://api.example.com\n" +
		"Version: 1\n" +
		"Chain ID: 1\n" +
		"Nonce: abc12345\n" +
		"Issued At: 2026-01-02T03:04:05.000Z"
	assert.Equal(t, want, msg)
}
