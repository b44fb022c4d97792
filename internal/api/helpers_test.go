package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inappkit/internal/messaging"
	"inappkit/internal/types"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type recordingNotifier struct {
	mu       sync.Mutex
	consumed []string
	removed  []string
}

func (n *recordingNotifier) NotifyConsumed(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.consumed = append(n.consumed, id)
	return nil
}

func (n *recordingNotifier) NotifyRemoved(_ context.Context, id string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.removed = append(n.removed, id)
	return nil
}

func (n *recordingNotifier) Consumed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.consumed...)
}

func (n *recordingNotifier) Removed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.removed...)
}

type apiFixture struct {
	srv      *Server
	bridge   *DisplayBridge
	inApp    *messaging.InAppManager
	inbox    *messaging.InboxManager
	notifier *recordingNotifier
	actions  *[]types.ActionResult
}

// newAPIFixture wires real managers to a DisplayBridge. Automatic display is
// paused so tests decide when a pass runs.
func newAPIFixture(t *testing.T, token types.SecretString, configure ...func(*Server)) *apiFixture {
	t.Helper()

	clock := fixedClock{now: testNow}
	bridge := NewDisplayBridge(clock, types.NopLogger{})
	notifier := &recordingNotifier{}

	var (
		mu      sync.Mutex
		actions []types.ActionResult
	)
	handler := messaging.ActionHandlerFunc(func(_ context.Context, _ types.MessageCore, result types.ActionResult) {
		mu.Lock()
		actions = append(actions, result)
		mu.Unlock()
	})

	opts := []messaging.Option{
		messaging.WithClock(clock),
		messaging.WithDisplayInterval(0),
		messaging.WithAutoDisplay(false),
		messaging.WithScheduler(func(time.Duration, func()) {}),
		messaging.WithActionHandlers(handler),
	}
	inApp := messaging.NewInAppManager(bridge, notifier, types.NopLogger{}, opts...)
	inbox := messaging.NewInboxManager(bridge, notifier, types.NopLogger{}, opts...)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(inApp, inbox, bridge, token, logger)
	require.NoError(t, err)
	for _, fn := range configure {
		fn(srv)
	}
	srv.MountRoutes()

	return &apiFixture{
		srv:      srv,
		bridge:   bridge,
		inApp:    inApp,
		inbox:    inbox,
		notifier: notifier,
		actions:  &actions,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	return serve(f.srv, httptest.NewRequest(method, path, reader))
}

func httptestRequest(method, path, authorization string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func htmlMessage(id string, trigger types.TriggerType) types.InAppMessage {
	return types.InAppMessage{
		MessageCore: types.MessageCore{
			MessageID:  id,
			CampaignID: "camp-" + id,
			Content:    types.NewHTMLContent("<p>"+id+"</p>", types.Insets{}, 0.5),
			ReceivedAt: testNow,
		},
		Trigger: types.Trigger{Type: trigger},
	}
}

func inboxMessage(id string, read bool) types.InboxMessage {
	return types.InboxMessage{
		MessageCore: types.MessageCore{
			MessageID:  id,
			Content:    types.NewHTMLContent("<p>"+id+"</p>", types.Insets{}, 0.5),
			ReceivedAt: testNow,
		},
		State: types.MessageState{Read: read},
	}
}

// decodeData unmarshals the data field of an APIResponse into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var env APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error
}
