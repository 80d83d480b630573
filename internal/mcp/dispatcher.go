package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"code.cloudfoundry.org/lager/v3/lagerctx"

	"github.com/petasbytes/mcp-chat/internal/metrics"
	"github.com/petasbytes/mcp-chat/internal/telemetry"
	"github.com/petasbytes/mcp-chat/tools"
)

// SessionState is the lifecycle state of one dispatcher session.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateReady
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultServerInfo identifies this server in initialize results.
var DefaultServerInfo = ImplementationInfo{Name: "mcp-chat-tools", Version: "1.0.0"}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, *Error)

// Dispatcher routes requests of one session through a fixed method table.
// It is safe for concurrent use, though transports dispatch serially.
type Dispatcher struct {
	executor *tools.Executor
	logger   lager.Logger
	recorder *metrics.Recorder
	strict   bool
	info     ImplementationInfo

	mu    sync.Mutex
	state SessionState

	handlers map[string]handlerFunc
}

type DispatcherOption func(*Dispatcher)

// WithStrictSession rejects tools/* requests until initialize has succeeded.
func WithStrictSession(strict bool) DispatcherOption {
	return func(d *Dispatcher) { d.strict = strict }
}

// WithMetrics records dispatched requests.
func WithMetrics(r *metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithServerInfo overrides the reported server identity.
func WithServerInfo(info ImplementationInfo) DispatcherOption {
	return func(d *Dispatcher) { d.info = info }
}

func NewDispatcher(executor *tools.Executor, logger lager.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		executor: executor,
		logger:   logger,
		info:     DefaultServerInfo,
		state:    StateUninitialized,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.handlers = map[string]handlerFunc{
		MethodInitialize: d.initialize,
		MethodPing:       d.ping,
		MethodToolsList:  d.listTools,
		MethodToolsCall:  d.callTool,
	}
	return d
}

// State returns the current session state.
func (d *Dispatcher) State() SessionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Close ends the session; later requests fail with CodeInvalidRequest.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = StateClosed
}

// HandleMessage decodes one raw message and dispatches it. Undecodable input
// yields a parse error addressed to UnknownID. ok is false when no response
// is due.
func (d *Dispatcher) HandleMessage(ctx context.Context, raw []byte) (resp Response, ok bool) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return d.parseFailure(err, len(raw)), true
	}
	return d.Dispatch(ctx, req)
}

func (d *Dispatcher) parseFailure(err error, size int) Response {
	d.logger.Info("parse-error", lager.Data{"error": err.Error(), "size": size})
	d.recorder.ObserveRPC("invalid", CodeParseError)
	return NewError(UnknownID, CodeParseError, fmt.Sprintf("Parse error: %v", err))
}

// Dispatch handles one decoded request.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, bool) {
	start := time.Now()
	id := req.ID
	if !req.HasID() {
		if strings.HasPrefix(req.Method, "notifications/") {
			d.logger.Debug("notification", lager.Data{"method": req.Method})
			return Response{}, false
		}
		id = UnknownID
	}

	logger := d.logger.Session("dispatch", lager.Data{"method": req.Method, "id": string(id)})
	resp := d.dispatch(lagerctx.NewContext(ctx, logger), logger, id, req)

	code := 0
	if resp.Error != nil {
		code = resp.Error.Code
	}
	method := req.Method
	if _, known := d.handlers[method]; !known {
		method = "unknown"
	}
	d.recorder.ObserveRPC(method, code)
	telemetry.Emit("rpc_request", map[string]any{
		"method":      method,
		"code":        code,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return resp, true
}

func (d *Dispatcher) dispatch(ctx context.Context, logger lager.Logger, id json.RawMessage, req Request) (resp Response) {
	if req.Method == "" {
		return NewError(id, CodeInvalidRequest, "Invalid request: missing method")
	}

	handler, ok := d.handlers[req.Method]
	if !ok {
		logger.Info("method-not-found")
		return NewError(id, CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	switch state := d.State(); {
	case state == StateClosed:
		return NewError(id, CodeInvalidRequest, "session closed")
	case d.strict && state == StateUninitialized && req.Method != MethodInitialize && req.Method != MethodPing:
		return NewError(id, CodeInvalidRequest, "session not initialized")
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler-panic", fmt.Errorf("%v", r))
			resp = NewError(id, CodeInternalError, fmt.Sprintf("Internal error: %v", r))
		}
	}()

	result, rpcErr := handler(ctx, req.Params)
	if rpcErr != nil {
		return NewError(id, rpcErr.Code, rpcErr.Message)
	}
	resp, err := NewResult(id, result)
	if err != nil {
		logger.Error("encode-result", err)
		return NewError(id, CodeInternalError, err.Error())
	}
	return resp
}

func (d *Dispatcher) initialize(_ context.Context, params json.RawMessage) (any, *Error) {
	var p InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("Invalid params: %v", err)}
		}
	}

	d.mu.Lock()
	if d.state == StateUninitialized {
		d.state = StateReady
	}
	d.mu.Unlock()

	d.logger.Info("initialized", lager.Data{
		"client":           p.ClientInfo.Name,
		"client-version":   p.ClientInfo.Version,
		"protocol-version": p.ProtocolVersion,
	})
	return InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ServerCapabilities{Tools: map[string]any{}},
		ServerInfo:      d.info,
	}, nil
}

func (d *Dispatcher) ping(context.Context, json.RawMessage) (any, *Error) {
	return struct{}{}, nil
}

func (d *Dispatcher) listTools(context.Context, json.RawMessage) (any, *Error) {
	return ListToolsResult{Tools: d.executor.Registry().Describe()}, nil
}

func (d *Dispatcher) callTool(ctx context.Context, params json.RawMessage) (any, *Error) {
	var p CallToolParams
	if len(params) == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "Invalid params: missing tool name"}
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("Invalid params: %v", err)}
	}
	if p.Name == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "Invalid params: missing tool name"}
	}

	out, err := d.executor.Execute(ctx, p.Name, p.Arguments)
	switch {
	case err == nil:
		return CallToolResult{Content: []ContentItem{{Type: "text", Text: out}}}, nil
	case errors.Is(err, tools.ErrUnknownTool), errors.Is(err, tools.ErrInvalidArguments):
		return nil, &Error{Code: CodeInvalidParams, Message: err.Error()}
	default:
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
}
