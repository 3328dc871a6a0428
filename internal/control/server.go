// Package control exposes the vqueue command surface of the host CLI over
// HTTP and WebSocket.
//
// The protocol carries exactly the textual commands of the scheduler:
//
//	vqueue_enqueue <priority> <mode>+ <atom>+
//	vqueue_stop    <id>
//	vqueue_cancel  <priority>
//
// Each command names the call it operates on via the `call` query
// parameter. Replies are JSON objects {"id": N}; enqueue answers the
// molecule id (0 with an error string on a rejected command), stop and
// cancel answer 0 with no error.
//
// Besides the command endpoints the server mounts /healthz, /readyz, and
// the Prometheus /metrics endpoint, all wrapped in the observe middleware.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/voxqueue/internal/observe"
)

// maxCommandBytes bounds a single command line.
const maxCommandBytes = 4096

// shutdownTimeout bounds the graceful drain on Run cancellation.
const shutdownTimeout = 5 * time.Second

// Commander executes one vqueue command line against the session of the
// given call. It returns the enqueued molecule's id (≥ 1), or 0 for stop
// and cancel commands, or 0 with an error for a rejected command.
type Commander interface {
	Command(callID, line string) (int64, error)
}

// Config holds the collaborators of a [Server].
type Config struct {
	// Addr is the TCP listen address.
	Addr string

	// Commander routes commands to call sessions. Required.
	Commander Commander

	// Metrics feeds the HTTP middleware. Nil selects the default.
	Metrics *observe.Metrics

	// Checkers are mounted on /readyz.
	Checkers []Checker

	// Sessions reports the number of open call sessions for the health
	// endpoints. Nil reports zero.
	Sessions func() int

	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string
}

// Server is the control-plane HTTP server.
type Server struct {
	cfg     Config
	httpSrv *http.Server
}

// New creates the server. Call [Server.Run] to start serving.
func New(cfg Config) *Server {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	s := &Server{cfg: cfg}
	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the full route tree. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	// route mounts h on the exact path and answers 405 to other methods.
	route := func(method, path string, h http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				w.Header().Set("Allow", method)
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		})
	}
	route(http.MethodGet, "/healthz", s.handleHealthz)
	route(http.MethodGet, "/readyz", s.handleReadyz)
	route(http.MethodGet, "/metrics", promhttp.Handler().ServeHTTP)
	route(http.MethodPost, "/command", s.handleCommand)
	route(http.MethodGet, "/ws", s.handleWS)
	return observe.Middleware(s.cfg.Metrics)(mux)
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.CertFile != "" && s.cfg.KeyFile != "" {
			err = s.httpSrv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

// reply is the JSON response for one command.
type reply struct {
	ID    int64  `json:"id"`
	Error string `json:"error,omitempty"`
}

// execute runs one command line and builds its reply.
func (s *Server) execute(callID, line string) reply {
	id, err := s.cfg.Commander.Command(callID, line)
	if err != nil {
		slog.Warn("control: command rejected", "call", callID, "err", err)
		return reply{ID: 0, Error: err.Error()}
	}
	return reply{ID: id}
}

// handleCommand executes a single command from the request body.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call")
	if callID == "" {
		http.Error(w, `{"error":"missing call parameter"}`, http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		http.Error(w, `{"error":"read body"}`, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(s.execute(callID, string(body))); err != nil {
		slog.Warn("control: encode reply", "err", err)
	}
}

// handleWS upgrades to a WebSocket command stream bound to one call. Every
// text frame is one command line; every command gets one JSON reply frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call")
	if callID == "" {
		http.Error(w, `{"error":"missing call parameter"}`, http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("control: websocket accept", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")
	conn.SetReadLimit(maxCommandBytes)

	ctx := r.Context()
	slog.Debug("control: command stream opened", "call", callID)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			slog.Debug("control: command stream closed", "call", callID, "err", err)
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		out, err := json.Marshal(s.execute(callID, string(data)))
		if err != nil {
			conn.Close(websocket.StatusInternalError, "encode reply")
			return
		}
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			slog.Debug("control: write reply", "call", callID, "err", err)
			return
		}
	}
}
