package mcp_test

import (
	"encoding/json"
	"testing"
	"time"

	"code.cloudfoundry.org/lager/v3/lagertest"
	"github.com/stretchr/testify/require"

	"github.com/petasbytes/mcp-chat/internal/fsops"
	"github.com/petasbytes/mcp-chat/internal/mcp"
	"github.com/petasbytes/mcp-chat/tools"
)

func newExecutor(t *testing.T) (*tools.Executor, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := fsops.New(dir, dir)
	require.NoError(t, err)
	return tools.NewExecutor(tools.Default(fs), tools.WithTimeout(5*time.Second)), fs.ReadRoot()
}

func newDispatcher(t *testing.T, opts ...mcp.DispatcherOption) (*mcp.Dispatcher, string) {
	t.Helper()
	ex, root := newExecutor(t)
	return mcp.NewDispatcher(ex, lagertest.NewTestLogger("test"), opts...), root
}

func request(t *testing.T, id any, method string, params any) mcp.Request {
	t.Helper()
	req := mcp.Request{JSONRPC: mcp.JSONRPCVersion, Method: method}
	if id != nil {
		b, err := json.Marshal(id)
		require.NoError(t, err)
		req.ID = b
	}
	if params != nil {
		b, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = b
	}
	return req
}

func decodeResult[T any](t *testing.T, resp mcp.Response) T {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error response: %+v", resp.Error)
	var v T
	require.NoError(t, json.Unmarshal(resp.Result, &v))
	return v
}
