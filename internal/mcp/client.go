package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/petasbytes/mcp-chat/tools"
)

// ClientInfo identifies this client in initialize requests.
var ClientInfo = ImplementationInfo{Name: "mcp-chat", Version: "1.0.0"}

const (
	toolListTTL = 5 * time.Minute
	toolListKey = "tools"
)

// ToolCallError is a tool failure reported by the server, either as an RPC
// error or as an isError result.
type ToolCallError struct {
	Tool    string
	Code    int
	Message string
}

func (e *ToolCallError) Error() string { return e.Message }

// Client is a long-lived connection to one tool server.
type Client struct {
	conn   Conn
	logger lager.Logger
	tools  *cache.Cache
	server InitializeResult
}

func NewClient(conn Conn, logger lager.Logger) *Client {
	return &Client{
		conn:   conn,
		logger: logger.Session("mcp-client"),
		tools:  cache.New(toolListTTL, 2*toolListTTL),
	}
}

// Connect performs the initialize handshake and primes the tool list.
func (c *Client) Connect(ctx context.Context) error {
	var res InitializeResult
	err := c.call(ctx, MethodInitialize, InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      ClientInfo,
	}, &res)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	c.server = res
	c.logger.Info("connected", lager.Data{"server": res.ServerInfo.Name, "version": res.ServerInfo.Version})

	if err := c.conn.Notify(ctx, Request{JSONRPC: JSONRPCVersion, Method: NotifyInitialized}); err != nil {
		return fmt.Errorf("notify initialized: %w", err)
	}
	if _, err := c.ListTools(ctx); err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	return nil
}

// ServerInfo returns the identity reported by the server.
func (c *Client) ServerInfo() ImplementationInfo { return c.server.ServerInfo }

// ListTools returns the server's catalogue, cached for a few minutes.
func (c *Client) ListTools(ctx context.Context) ([]tools.Descriptor, error) {
	if v, ok := c.tools.Get(toolListKey); ok {
		return v.([]tools.Descriptor), nil
	}
	var res ListToolsResult
	if err := c.call(ctx, MethodToolsList, nil, &res); err != nil {
		return nil, err
	}
	c.tools.Set(toolListKey, res.Tools, cache.DefaultExpiration)
	return res.Tools, nil
}

// CallTool invokes a tool and returns its text output. Failures reported by
// the server come back as *ToolCallError; transport failures are returned as is.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	var res CallToolResult
	err := c.call(ctx, MethodToolsCall, CallToolParams{Name: name, Arguments: args}, &res)
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			if rpcErr.Code == CodeInvalidParams {
				// The catalogue may have changed under us.
				c.tools.Delete(toolListKey)
			}
			return "", &ToolCallError{Tool: name, Code: rpcErr.Code, Message: rpcErr.Message}
		}
		return "", err
	}
	if res.IsError {
		return "", &ToolCallError{Tool: name, Code: CodeInternalError, Message: res.Text()}
	}
	return res.Text(), nil
}

// Ping checks the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, MethodPing, nil, nil)
}

// Close releases the connection.
func (c *Client) Close() error {
	c.logger.Debug("closing")
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	req := Request{JSONRPC: JSONRPCVersion, Method: method}
	id, err := json.Marshal(uuid.NewString())
	if err != nil {
		return err
	}
	req.ID = id
	if params != nil {
		if req.Params, err = json.Marshal(params); err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
	}

	resp, err := c.conn.Send(ctx, req)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
