package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/lager/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vito/go-sse/sse"

	"github.com/petasbytes/mcp-chat/internal/metrics"
)

// SSE event names.
const (
	EventEndpoint = "endpoint"
	EventMessage  = "message"
)

const (
	sessionQueueSize  = 16
	keepAliveInterval = 15 * time.Second
)

// SSEServer serves sessions over Server-Sent Events: a client opens GET /sse,
// receives an endpoint event naming its POST URL, posts one request per call
// and receives each response as a message event on the stream.
type SSEServer struct {
	newDispatcher func() *Dispatcher
	logger        lager.Logger
	recorder      *metrics.Recorder
	gatherer      prometheus.Gatherer

	mu       sync.Mutex
	sessions map[string]*sseSession
}

type sseSession struct {
	id         string
	dispatcher *Dispatcher
	events     chan sse.Event
	done       chan struct{}
	nextEvent  atomic.Int64

	// serializes dispatch so one session handles one request at a time
	dispatchMu sync.Mutex
}

type SSEOption func(*SSEServer)

// WithSSEMetrics records session counts and exposes gatherer on /metrics.
func WithSSEMetrics(r *metrics.Recorder, g prometheus.Gatherer) SSEOption {
	return func(s *SSEServer) {
		s.recorder = r
		s.gatherer = g
	}
}

// NewSSEServer builds a server that creates one dispatcher per session.
func NewSSEServer(newDispatcher func() *Dispatcher, logger lager.Logger, opts ...SSEOption) *SSEServer {
	s := &SSEServer{
		newDispatcher: newDispatcher,
		logger:        logger.Session("sse"),
		sessions:      map[string]*sseSession{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes.
func (s *SSEServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/sse", s.handleStream)
	r.Post("/messages", s.handleMessage)
	return r
}

// SessionCount returns the number of open sessions.
func (s *SSEServer) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SSEServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", lager.Data{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request-id": middleware.GetReqID(r.Context()),
			"remote":     r.RemoteAddr,
		})
		next.ServeHTTP(w, r)
	})
}

func (s *SSEServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "sessions": s.SessionCount()})
}

func (s *SSEServer) open() *sseSession {
	sess := &sseSession{
		id:         uuid.NewString(),
		dispatcher: s.newDispatcher(),
		events:     make(chan sse.Event, sessionQueueSize),
		done:       make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	s.recorder.SessionOpened()
	return sess
}

func (s *SSEServer) close(sess *sseSession) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	close(sess.done)
	sess.dispatcher.Close()
	s.recorder.SessionClosed()
}

func (s *SSEServer) lookup(id string) (*sseSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (sess *sseSession) event(name string, data []byte) sse.Event {
	return sse.Event{
		ID:   strconv.FormatInt(sess.nextEvent.Add(1), 10),
		Name: name,
		Data: data,
	}
}

func (s *SSEServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sess := s.open()
	defer s.close(sess)
	logger := s.logger.Session("stream", lager.Data{"session": sess.id})
	logger.Info("opened")
	defer logger.Info("closed")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	endpoint := sess.event(EventEndpoint, []byte("/messages?session_id="+sess.id))
	if err := endpoint.Write(w); err != nil {
		logger.Error("write-endpoint", err)
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-sess.events:
			if err := ev.Write(w); err != nil {
				logger.Error("write-event", err)
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session_id")
	sess, ok := s.lookup(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxMessageBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "message too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	sess.dispatchMu.Lock()
	defer sess.dispatchMu.Unlock()

	resp, ok := sess.dispatcher.HandleMessage(r.Context(), body)
	if ok {
		data, err := json.Marshal(resp)
		if err != nil {
			http.Error(w, "encode response", http.StatusInternalServerError)
			return
		}
		select {
		case sess.events <- sess.event(EventMessage, data):
		case <-sess.done:
			http.Error(w, "session closed", http.StatusGone)
			return
		case <-r.Context().Done():
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}
