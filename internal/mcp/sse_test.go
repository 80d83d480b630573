package mcp_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/lager/v3/lagertest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vito/go-sse/sse"

	"github.com/petasbytes/mcp-chat/internal/mcp"
	"github.com/petasbytes/mcp-chat/internal/metrics"
)

func newSSEServer(t *testing.T) (*mcp.SSEServer, *httptest.Server) {
	t.Helper()
	ex, _ := newExecutor(t)
	logger := lagertest.NewTestLogger("sse")
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)

	s := mcp.NewSSEServer(func() *mcp.Dispatcher {
		return mcp.NewDispatcher(ex, logger, mcp.WithMetrics(rec))
	}, logger, mcp.WithSSEMetrics(rec, reg))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func TestSSE_ClientRoundTrip(t *testing.T) {
	s, srv := newSSEServer(t)
	ctx := context.Background()

	client, err := mcp.DialSSE(ctx, srv.URL, lagertest.NewTestLogger("client"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.SessionCount())
	assert.Equal(t, mcp.DefaultServerInfo, client.ServerInfo())

	out, err := client.CallTool(ctx, "calculator", map[string]any{"expression": "2 ^ 10"})
	require.NoError(t, err)
	assert.Equal(t, "Result: 1024", out)

	_, err = client.CallTool(ctx, "nope", nil)
	var tcErr *mcp.ToolCallError
	require.ErrorAs(t, err, &tcErr)
	assert.Equal(t, mcp.CodeInvalidParams, tcErr.Code)

	require.NoError(t, client.Close())
	assert.Eventually(t, func() bool { return s.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSSE_RawStream(t *testing.T) {
	_, srv := newSSEServer(t)

	resp, err := http.Get(srv.URL + "/sse")
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	stream := sse.NewReadCloser(resp.Body)
	defer stream.Close()

	ev, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, mcp.EventEndpoint, ev.Name)
	endpoint := string(ev.Data)
	require.True(t, strings.HasPrefix(endpoint, "/messages?session_id="), endpoint)

	post := func(body string) *http.Response {
		r, err := http.Post(srv.URL+endpoint, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		r.Body.Close()
		return r
	}

	assert.Equal(t, http.StatusAccepted, post(`{"jsonrpc":"2.0","id":"a","method":"tools/list"}`).StatusCode)
	ev, err = stream.Next()
	require.NoError(t, err)
	assert.Equal(t, mcp.EventMessage, ev.Name)
	var listResp mcp.Response
	require.NoError(t, json.Unmarshal(ev.Data, &listResp))
	assert.Equal(t, `"a"`, string(listResp.ID))
	assert.Len(t, decodeResult[mcp.ListToolsResult](t, listResp).Tools, 5)

	// Garbage is answered on the stream, not with an HTTP error.
	assert.Equal(t, http.StatusAccepted, post(`{{{`).StatusCode)
	ev, err = stream.Next()
	require.NoError(t, err)
	var parseResp mcp.Response
	require.NoError(t, json.Unmarshal(ev.Data, &parseResp))
	require.NotNil(t, parseResp.Error)
	assert.Equal(t, mcp.CodeParseError, parseResp.Error.Code)

	// Notifications are accepted without producing an event.
	assert.Equal(t, http.StatusAccepted, post(`{"jsonrpc":"2.0","method":"notifications/initialized"}`).StatusCode)
	assert.Equal(t, http.StatusAccepted, post(`{"jsonrpc":"2.0","id":2,"method":"ping"}`).StatusCode)
	ev, err = stream.Next()
	require.NoError(t, err)
	var pingResp mcp.Response
	require.NoError(t, json.Unmarshal(ev.Data, &pingResp))
	assert.Equal(t, "2", string(pingResp.ID))
}

func TestSSE_UnknownSession(t *testing.T) {
	_, srv := newSSEServer(t)
	resp, err := http.Post(srv.URL+"/messages?session_id=missing", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSSE_HealthAndMetrics(t *testing.T) {
	_, srv := newSSEServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health["status"])

	client, err := mcp.DialSSE(context.Background(), srv.URL, lagertest.NewTestLogger("client"))
	require.NoError(t, err)
	defer client.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "mcp_open_sessions 1")
	assert.Contains(t, string(body), `mcp_rpc_requests_total{code="0",method="initialize"} 1`)
}
