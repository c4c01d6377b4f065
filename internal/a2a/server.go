package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
)

// WellKnownCardPath is where an agent serves its card.
const WellKnownCardPath = "/.well-known/agent-card.json"

// Handler processes incoming A2A requests.
type Handler interface {
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)
	HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error)
}

// Server exposes a Handler over HTTP/JSON-RPC.
type Server struct {
	card    AgentCard
	handler Handler
	logger  *zap.Logger
	http    *http.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the server's logger.
func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates an A2A server for the given agent.
func NewServer(card AgentCard, handler Handler, opts ...ServerOption) *Server {
	s := &Server{card: card, handler: handler, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HTTPHandler returns the routes of the server.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+WellKnownCardPath, s.handleAgentCard)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// Start listens on addr and serves in a background goroutine. It returns the
// bound address, which differs from addr when addr has port 0.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("a2a: listen %s: %w", addr, err)
	}
	s.http = &http.Server{Handler: s.HTTPHandler()}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("a2a: serve failed", zap.Error(err))
		}
	}()
	s.logger.Info("a2a: agent listening", zap.String("addr", ln.Addr().String()), zap.String("agent", s.card.Name))
	return ln.Addr().String(), nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleJSONRPC decodes a JSON-RPC 2.0 request and dispatches it.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req JSONRPCRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}
	s.logger.Debug("a2a: request", zap.String("method", req.Method), zap.Any("id", req.ID))

	ctx := r.Context()
	switch req.Method {
	case MethodSendMessage:
		var params SendMessageRequest
		if !decodeParams(w, &req, &params) {
			return
		}
		s.reply(w, req.ID, func() (any, error) { return s.handler.HandleSendMessage(ctx, params) })
	case MethodGetTask:
		var params GetTaskRequest
		if !decodeParams(w, &req, &params) {
			return
		}
		s.reply(w, req.ID, func() (any, error) { return s.handler.HandleGetTask(ctx, params) })
	default:
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func decodeParams(w http.ResponseWriter, req *JSONRPCRequest, v any) bool {
	if err := json.Unmarshal(req.Params, v); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, id any, fn func() (any, error)) {
	result, err := fn()
	if err != nil {
		writeJSONRPCError(w, id, errorCode(err), err.Error())
		return
	}
	writeJSONRPCResult(w, id, result)
}

func writeJSONRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeJSONRPCError(w, id, ErrCodeInternal, "Failed to marshal result: "+err.Error())
		return
	}
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: data})
}

func writeJSONRPCError(w http.ResponseWriter, id any, code int, message string) {
	_ = json.NewEncoder(w).Encode(JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   &JSONRPCError{Code: code, Message: message},
	})
}
