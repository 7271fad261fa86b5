package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kmjones1979/ampersend-sdk/a2a"
	"github.com/kmjones1979/ampersend-sdk/logger"
	"github.com/kmjones1979/ampersend-sdk/metrics"
	"github.com/kmjones1979/ampersend-sdk/treasurer"
	"github.com/kmjones1979/ampersend-sdk/types"
	"github.com/kmjones1979/ampersend-sdk/wallet"
)

const (
	taskID    = "task-1"
	contextID = "ctx-1"
)

// scriptedTransport answers the n-th SendMessage with responses[n].
type scriptedTransport struct {
	responses [][]a2a.Event
	sent      []*a2a.Message
	streams   []*trackedStream
	failAt    int
}

type trackedStream struct {
	*a2a.SliceStream
	closed bool
}

func (s *trackedStream) Close() error {
	s.closed = true
	return s.SliceStream.Close()
}

func (t *scriptedTransport) SendMessage(_ context.Context, msg *a2a.Message) (a2a.EventStream, error) {
	t.sent = append(t.sent, msg)
	n := len(t.sent)
	if t.failAt == n {
		return nil, errors.New("connection reset")
	}
	var events []a2a.Event
	if n <= len(t.responses) {
		events = t.responses[n-1]
	}
	s := &trackedStream{SliceStream: a2a.NewSliceStream(events...)}
	t.streams = append(t.streams, s)
	return s, nil
}

type stubTreasurer struct {
	auth      *treasurer.Authorization
	err       error
	statusErr error

	required []*types.PaymentRequiredResponse
	statuses []types.PaymentStatus
	pctx     []map[string]any
}

func (s *stubTreasurer) OnPaymentRequired(_ context.Context, required *types.PaymentRequiredResponse, pctx map[string]any) (*treasurer.Authorization, error) {
	s.required = append(s.required, required)
	s.pctx = append(s.pctx, pctx)
	return s.auth, s.err
}

func (s *stubTreasurer) OnStatus(_ context.Context, status types.PaymentStatus, _ *treasurer.Authorization, _ map[string]any) error {
	s.statuses = append(s.statuses, status)
	return s.statusErr
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) IncCounter(name string, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = map[string]int{}
	}
	r.counts[name]++
}

func (r *countingRecorder) ObserveLatency(string, time.Duration, map[string]string) {}

func (r *countingRecorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

func requirements() *types.PaymentRequiredResponse {
	return &types.PaymentRequiredResponse{
		X402Version: 1,
		Accepts: []types.PaymentRequirements{{
			Scheme:            "exact",
			Network:           "base-sepolia",
			MaxAmountRequired: "1000",
			Resource:          "https://dev.local/a2a/task",
			PayTo:             "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			MaxTimeoutSeconds: 600,
			Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Extra:             map[string]any{"name": "USDC", "version": "2"},
		}},
		Error: "Payment required for task",
	}
}

func paymentRequired() a2a.Event {
	return a2a.PaymentStatusUpdate(taskID, contextID, a2a.TaskStateInputRequired, types.PaymentRequired,
		"Payment required", map[string]any{a2a.MetadataRequired: requirements()}, true)
}

func paymentCompleted() a2a.Event {
	return a2a.PaymentStatusUpdate(taskID, contextID, a2a.TaskStateCompleted, types.PaymentCompleted,
		"done", map[string]any{a2a.MetadataReceipts: []types.SettleResponse{{Success: true, Transaction: "0xabc", Network: "base-sepolia"}}}, true)
}

func plainTask() a2a.Event {
	return &a2a.Task{Kind: a2a.KindTask, ID: taskID, ContextID: contextID, Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
}

func userMessage() *a2a.Message {
	return &a2a.Message{Kind: a2a.KindMessage, MessageID: "m-1", Role: a2a.RoleUser, Parts: []a2a.Part{a2a.TextPart("hi")}}
}

func authorization() *treasurer.Authorization {
	return &treasurer.Authorization{ID: "auth-1", Payment: &types.PaymentPayload{X402Version: 1, Scheme: "exact", Network: "base-sepolia"}}
}

func observed() (logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return logger.NewZapLoggerFrom(zap.New(core)), logs
}

func newClient(t *testing.T, tr Transport, tres treasurer.Treasurer, opts ...Option) *Client {
	t.Helper()
	c, err := New(tr, tres, opts...)
	require.NoError(t, err)
	return c
}

func send(t *testing.T, c *Client, opts ...CallOption) []a2a.Event {
	t.Helper()
	s, err := c.SendMessage(context.Background(), userMessage(), opts...)
	require.NoError(t, err)
	events, err := a2a.Collect(s)
	require.NoError(t, err)
	return events
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, &stubTreasurer{})
	assert.ErrorIs(t, err, ErrNilTransport)
	_, err = New(&scriptedTransport{}, nil)
	assert.ErrorIs(t, err, ErrNilTreasurer)
}

func TestPassThroughWithoutPaymentMetadata(t *testing.T) {
	msg := a2a.NewAgentMessage(taskID, contextID, "hello")
	tr := &scriptedTransport{responses: [][]a2a.Event{{msg, plainTask()}}}
	tres := &stubTreasurer{auth: authorization()}

	events := send(t, newClient(t, tr, tres))
	require.Len(t, events, 2)
	assert.Same(t, msg, events[0])
	assert.Len(t, tr.sent, 1)
	assert.Empty(t, tres.required)
	assert.Empty(t, tres.statuses)
}

func TestDeclinedPaymentForwardsEventUnchanged(t *testing.T) {
	required := paymentRequired()
	tr := &scriptedTransport{responses: [][]a2a.Event{{required}}}
	tres := &stubTreasurer{}
	rec := &countingRecorder{}

	events := send(t, newClient(t, tr, tres, WithMetrics(rec)))
	require.Len(t, events, 1)
	assert.Same(t, required, events[0])
	assert.Len(t, tr.sent, 1, "no submission after a decline")
	require.Len(t, tres.required, 1)
	assert.Equal(t, "1000", tres.required[0].Accepts[0].MaxAmountRequired)
	assert.Equal(t, 1, rec.count(metrics.PaymentDeclined))
}

func TestPaymentRoundTrip(t *testing.T) {
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired()}, {paymentCompleted()}}}
	auth := authorization()
	tres := &stubTreasurer{auth: auth}
	rec := &countingRecorder{}

	events := send(t, newClient(t, tr, tres, WithMetrics(rec)))
	require.Len(t, events, 2)

	first, _ := a2a.TaskOf(events[0])
	s, _ := a2a.PaymentStatusOf(first)
	assert.Equal(t, types.PaymentRequired, s)
	second, _ := a2a.TaskOf(events[1])
	s, _ = a2a.PaymentStatusOf(second)
	assert.Equal(t, types.PaymentCompleted, s)

	require.Len(t, tr.sent, 2)
	sub := tr.sent[1]
	assert.Equal(t, a2a.RoleUser, sub.Role)
	assert.Equal(t, taskID, sub.TaskID)
	assert.Equal(t, contextID, sub.ContextID)
	assert.NotEmpty(t, sub.MessageID)
	assert.Equal(t, a2a.PaymentSubmissionText, sub.Text())
	status, _ := a2a.MessagePaymentStatus(sub)
	assert.Equal(t, types.PaymentSubmitted, status)
	payload, err := a2a.PaymentPayloadOf(sub)
	require.NoError(t, err)
	assert.Same(t, auth.Payment, payload)

	assert.Equal(t, []types.PaymentStatus{types.PaymentCompleted}, tres.statuses)
	assert.Equal(t, 1, rec.count(metrics.PaymentAuthorized))
	for _, s := range tr.streams {
		assert.True(t, s.closed)
	}
}

func TestSubmissionIsSentLazily(t *testing.T) {
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired()}, {paymentCompleted()}}}
	c := newClient(t, tr, &stubTreasurer{auth: authorization()})

	s, err := c.SendMessage(context.Background(), userMessage())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Recv()
	require.NoError(t, err)
	assert.Len(t, tr.sent, 1)

	_, err = s.Recv()
	require.NoError(t, err)
	assert.Len(t, tr.sent, 2)
}

func TestOuterStreamResumesAfterSubmission(t *testing.T) {
	trailing := a2a.NewAgentMessage(taskID, contextID, "trailing")
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired(), trailing}, {paymentCompleted()}}}
	c := newClient(t, tr, &stubTreasurer{auth: authorization()})

	events := send(t, c)
	require.Len(t, events, 3)
	assert.Equal(t, a2a.KindStatusUpdate, events[1].EventKind())
	assert.Same(t, trailing, events[2])
}

func TestRepeatedPaymentRequiredIsNotPaidTwice(t *testing.T) {
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired()}, {paymentRequired()}}}
	tres := &stubTreasurer{auth: authorization()}
	log, logs := observed()
	rec := &countingRecorder{}

	events := send(t, newClient(t, tr, tres, WithLogger(log), WithMetrics(rec)))
	require.Len(t, events, 2)
	assert.Len(t, tres.required, 1)
	assert.Len(t, tr.sent, 2)
	assert.Equal(t, []types.PaymentStatus{types.PaymentRequired}, tres.statuses)

	assert.Equal(t, 1, logs.FilterMessage("payment required but have already paid").Len())
	assert.Equal(t, 1, rec.count(metrics.ProtocolViolation))
}

func TestMissingRequirementsIsForwarded(t *testing.T) {
	ev := a2a.PaymentStatusUpdate(taskID, contextID, a2a.TaskStateInputRequired, types.PaymentRequired, "pay", nil, true)
	tr := &scriptedTransport{responses: [][]a2a.Event{{ev}}}
	tres := &stubTreasurer{auth: authorization()}
	log, logs := observed()

	events := send(t, newClient(t, tr, tres, WithLogger(log)))
	require.Len(t, events, 1)
	assert.Empty(t, tres.required)
	assert.Len(t, tr.sent, 1)
	assert.Equal(t, 1, logs.FilterMessage("payment required without requirements").Len())
}

func TestTreasurerErrorIsForwarded(t *testing.T) {
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired()}}}
	tres := &stubTreasurer{err: errors.New("out of budget")}
	rec := &countingRecorder{}

	events := send(t, newClient(t, tr, tres, WithMetrics(rec)))
	assert.Len(t, events, 1)
	assert.Len(t, tr.sent, 1)
	assert.Equal(t, 1, rec.count(metrics.TreasurerError))
}

func TestStatusCallbackErrorsAreSwallowed(t *testing.T) {
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired()}, {paymentCompleted()}}}
	tres := &stubTreasurer{auth: authorization(), statusErr: errors.New("api down")}
	log, logs := observed()

	events := send(t, newClient(t, tr, tres, WithLogger(log)))
	assert.Len(t, events, 2)
	assert.Equal(t, 1, logs.FilterMessage("treasurer status callback failed").Len())
}

func TestPaymentContextReachesTreasurer(t *testing.T) {
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired()}}}
	tres := &stubTreasurer{}
	pctx := map[string]any{"user": "u-1"}

	send(t, newClient(t, tr, tres), WithPaymentContext(pctx))
	require.Len(t, tres.pctx, 1)
	assert.Equal(t, pctx, tres.pctx[0])
}

func TestSubmissionTransportError(t *testing.T) {
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired()}}, failAt: 2}
	c := newClient(t, tr, &stubTreasurer{auth: authorization()})

	s, err := c.SendMessage(context.Background(), userMessage())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Recv()
	require.NoError(t, err)
	_, err = s.Recv()
	assert.ErrorContains(t, err, "connection reset")
}

func TestCancelStopsExchange(t *testing.T) {
	tr := &scriptedTransport{responses: [][]a2a.Event{{plainTask(), plainTask()}}}
	c := newClient(t, tr, &stubTreasurer{})

	ctx, cancel := context.WithCancel(context.Background())
	s, err := c.SendMessage(ctx, userMessage())
	require.NoError(t, err)

	_, err = s.Recv()
	require.NoError(t, err)
	cancel()
	_, err = s.Recv()
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Close())
	assert.True(t, tr.streams[0].closed)
	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestNaiveTreasurerEndToEnd(t *testing.T) {
	w, err := wallet.NewAccountWallet("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	tr := &scriptedTransport{responses: [][]a2a.Event{{paymentRequired()}, {paymentCompleted()}}}

	events := send(t, newClient(t, tr, treasurer.NewNaiveTreasurer(w)))
	require.Len(t, events, 2)

	payload, err := a2a.PaymentPayloadOf(tr.sent[1])
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", payload.Payload.Authorization.From)
	assert.Equal(t, "1000", payload.Payload.Authorization.Value)
}

func TestExtensionsTransportMergesHeader(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get(a2a.HeaderExtensions))
	}))
	t.Cleanup(srv.Close)

	hc := NewHTTPClient(nil)

	resp, err := hc.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(a2a.HeaderExtensions, "https://example.com/ext, "+a2a.X402ExtensionURI)
	resp, err = hc.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, got, 2)
	assert.Equal(t, a2a.X402ExtensionURI, got[0])
	assert.Equal(t, a2a.X402ExtensionURI+", https://example.com/ext", got[1])
	assert.Equal(t, "https://example.com/ext, "+a2a.X402ExtensionURI, req.Header.Get(a2a.HeaderExtensions), "caller's request is not mutated")
}
