// Package server exposes the bot over HTTP: the webhook sink, the rebase
// archaeology views linked from pull request comments, and the delivery
// event stream.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aasharkey/gitbot/internal/github"
	"github.com/aasharkey/gitbot/web"
)

// DefaultTimeout bounds the handling of one webhook delivery. A delivery
// fetches twice and may post a status per violated rule, with a pause after
// each post.
const DefaultTimeout = 5 * time.Minute

// Dispatcher handles parsed webhook deliveries.
type Dispatcher interface {
	HandlePullRequest(ctx context.Context, deliveryID string, ev github.PullRequestOpened) error
	HandlePush(ctx context.Context, deliveryID string, ev github.Push) error
}

// Config holds server configuration.
type Config struct {
	// Dispatcher processes webhook deliveries. Required.
	Dispatcher Dispatcher
	// Views serves the rebase archaeology pages. When nil the view routes
	// are not registered.
	Views *Views
	// Hub is the WebSocket hub for the delivery event stream. When non-nil,
	// the /events endpoint is registered to serve WebSocket connections.
	Hub *Hub
	// Timeout bounds the handling of one delivery. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Server wraps the bot's HTTP server.
type Server struct {
	mux      *http.ServeMux
	listener net.Listener
}

// New creates a Server bound to the given address (e.g. "127.0.0.1:8080").
// It does not start serving; call Serve() for that.
func New(addr string, cfg Config) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	s := &Server{mux: mux, listener: ln}
	s.registerRoutes(cfg)
	return s, nil
}

// Addr returns the listener's address (useful when binding to :0 in tests).
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve starts accepting connections. It blocks until the listener is closed.
func (s *Server) Serve() error {
	return http.Serve(s.listener, s.mux)
}

// Close shuts down the listener.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) registerRoutes(cfg Config) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	sink := &webhookSink{dispatcher: cfg.Dispatcher, timeout: timeout}
	s.mux.HandleFunc("POST /check_rebase", sink.handleDelivery)

	if cfg.Views != nil {
		s.mux.HandleFunc("GET /rebase_diff", cfg.Views.handleDiff)
		s.mux.HandleFunc("GET /rebase_commit_log_diff", cfg.Views.handleLogDiff)
		s.mux.HandleFunc("GET /rebase_diff_series", cfg.Views.handleDiffSeries)
		s.mux.HandleFunc("GET /rebase_commit_log_series", cfg.Views.handleLogSeries)
	}

	if cfg.Hub != nil {
		s.mux.HandleFunc("GET /events", cfg.Hub.ServeWS)
		s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFileFS(w, r, web.Content(), "index.html")
		})
	}

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	})
}

// webhookSink accepts platform deliveries and hands them to the dispatcher.
// Deliveries are processed synchronously: the platform's redelivery UI then
// shows real outcomes, and its timeout is far above a delivery's worst case.
type webhookSink struct {
	dispatcher Dispatcher
	timeout    time.Duration
}

func (h *webhookSink) handleDelivery(w http.ResponseWriter, r *http.Request) {
	eventType := r.Header.Get("X-Github-Event")
	deliveryID := r.Header.Get("X-Github-Delivery")
	if deliveryID == "" {
		deliveryID = uuid.NewString()
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "reading delivery body", http.StatusBadRequest)
		return
	}

	parsed, err := github.ParseWebhook(eventType, body)
	var payloadErr *github.PayloadError
	if errors.As(err, &payloadErr) {
		http.Error(w, payloadErr.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("parsing webhook delivery", "delivery", deliveryID, "event", eventType, "error", err)
		http.Error(w, "parsing delivery failed", http.StatusInternalServerError)
		return
	}
	if parsed == nil {
		// An event or action the bot does not act on. Acknowledge it so the
		// platform does not redeliver.
		w.WriteHeader(http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	switch ev := parsed.(type) {
	case *github.PullRequestOpened:
		err = h.dispatcher.HandlePullRequest(ctx, deliveryID, *ev)
	case *github.Push:
		err = h.dispatcher.HandlePush(ctx, deliveryID, *ev)
	}
	if err != nil {
		slog.Error("handling webhook delivery", "delivery", deliveryID, "event", eventType, "error", err)
		http.Error(w, "handling delivery failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
