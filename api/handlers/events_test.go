package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/parley/api"
	"github.com/BaSui01/parley/events"
	"github.com/BaSui01/parley/testutil"
	"github.com/BaSui01/parley/types"
)

// dialEvents opens the event stream of one session against a live test
// server.
func dialEvents(t *testing.T, ctx context.Context, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + sessionID + "/events"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func TestHandleEvents_StreamsUntilSessionEnds(t *testing.T) {
	inv := testutil.NewScriptedInvoker()
	// A slow first dispatch leaves the client time to connect before any
	// turn is published.
	inv.Delay = 200 * time.Millisecond
	f := newSessionFixture(t, inv)

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	startW := f.do(t, http.MethodPost, "/api/v1/sessions",
		api.StartSessionRequest{SessionConfig: testutil.RingRelayConfig(2, 2)})
	require.Equal(t, http.StatusAccepted, startW.Code)
	var started api.StartSessionResponse
	decodeData(t, startW, &started)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	conn := dialEvents(t, ctx, srv, started.SessionID)

	var turns int
	var ended *events.Event
	for ended == nil {
		var ev events.Event
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		assert.Equal(t, started.SessionID, ev.SessionID)
		switch ev.Type {
		case events.TypeTurn:
			turns++
			require.NotNil(t, ev.Turn)
			assert.NotEmpty(t, ev.Turn.Content)
		case events.TypeSessionEnded:
			ended = &ev
		}
	}

	assert.Equal(t, 2, turns)
	assert.Equal(t, types.StatusCompleted, ended.Status)
	assert.Equal(t, types.ReasonRoundsLimit, ended.Reason)

	// The server closes the stream normally after session_ended.
	var ev events.Event
	err := wsjson.Read(ctx, conn, &ev)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestHandleEvents_CancelledSessionEndsStream(t *testing.T) {
	inv := testutil.NewScriptedInvoker()
	inv.Delay = 50 * time.Millisecond
	f := newSessionFixture(t, inv)

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	startW := f.do(t, http.MethodPost, "/api/v1/sessions",
		api.StartSessionRequest{SessionConfig: testutil.MeshConfig(2, 500, types.ParadigmRelay)})
	require.Equal(t, http.StatusAccepted, startW.Code)
	var started api.StartSessionResponse
	decodeData(t, startW, &started)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	conn := dialEvents(t, ctx, srv, started.SessionID)

	// Read until the first turn so the session is demonstrably mid-flight,
	// then cancel it out from under the stream.
	for {
		var ev events.Event
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		if ev.Type == events.TypeTurn {
			break
		}
	}
	cancelW := f.do(t, http.MethodPost, "/api/v1/sessions/"+started.SessionID+"/cancel",
		api.CancelSessionRequest{Mode: "hard"})
	require.Equal(t, http.StatusOK, cancelW.Code)

	for {
		var ev events.Event
		require.NoError(t, wsjson.Read(ctx, conn, &ev))
		if ev.Type == events.TypeSessionEnded {
			assert.Equal(t, types.StatusCancelled, ev.Status)
			assert.Equal(t, types.ReasonCancelled, ev.Reason)
			return
		}
	}
}

func TestHandleEvents_TerminalSessionGetsClosingEvent(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	startW := f.do(t, http.MethodPost, "/api/v1/sessions",
		api.StartSessionRequest{SessionConfig: testutil.RingRelayConfig(2, 1)})
	var started api.StartSessionResponse
	decodeData(t, startW, &started)
	f.waitTerminal(t, started.SessionID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn := dialEvents(t, ctx, srv, started.SessionID)

	var ev events.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, events.TypeSessionEnded, ev.Type)
	assert.Equal(t, started.SessionID, ev.SessionID)
	assert.Equal(t, types.StatusCompleted, ev.Status)

	err := wsjson.Read(ctx, conn, &ev)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestHandleEvents_UnknownSessionRejectedBeforeUpgrade(t *testing.T) {
	f := newSessionFixture(t, testutil.NewScriptedInvoker())

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/no-such-session/events"
	conn, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	if conn != nil {
		_ = conn.CloseNow()
	}
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
