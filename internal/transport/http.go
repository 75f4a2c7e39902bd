package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/dispatch"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
)

// HTTPConfig configures the development-only HTTP/SSE transport (spec.md
// §4.2). EchoToken is required; the server refuses to start without one.
type HTTPConfig struct {
	Host         string
	Port         int
	EchoToken    string
	BindAll      bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultHTTPConfig binds to loopback only, per the "binds to loopback by
// default" requirement.
func DefaultHTTPConfig(echoToken string) HTTPConfig {
	return HTTPConfig{
		Host:         "127.0.0.1",
		Port:         8799,
		EchoToken:    echoToken,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // SSE streams must not be write-deadlined
	}
}

// HTTP is the development-mode transport: POST /command, GET /events (SSE).
type HTTP struct {
	cfg     HTTPConfig
	table   *dispatch.Table
	events  *Broadcaster
	metrics http.Handler
	server  *http.Server
}

// NewHTTP builds the dev HTTP/SSE transport. It returns an error immediately
// if no shared-secret token is configured — the transport must never start
// open to the loopback interface without one. metrics is optional; when nil,
// /metrics is not registered.
func NewHTTP(cfg HTTPConfig, table *dispatch.Table, events *Broadcaster, metrics http.Handler) (*HTTP, error) {
	if cfg.EchoToken == "" {
		return nil, fmt.Errorf("transport: HTTP/SSE transport requires a shared-secret token")
	}
	if cfg.BindAll {
		log.Warn().Msg("HTTP/SSE transport is binding to all interfaces — this exposes the command channel beyond localhost")
	}

	h := &HTTP{cfg: cfg, table: table, events: events, metrics: metrics}

	router := mux.NewRouter()
	router.Use(h.authMiddleware)
	router.HandleFunc("/command", h.handleCommand).Methods(http.MethodPost)
	router.HandleFunc("/events", h.handleEvents).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}

	host := cfg.Host
	if cfg.BindAll {
		host = "0.0.0.0"
	}
	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return h, nil
}

func (h *HTTP) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Prism-Token") != h.cfg.EchoToken {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTP) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, protocol.MaxFrameBytes+1))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) > protocol.MaxFrameBytes {
		writeJSON(w, http.StatusBadRequest, protocol.FailRaw(nil, "", protocol.CodePayloadTooLarge, "request body exceeds maximum size"))
		return
	}

	cmd, err := protocol.DecodeCommand(body)
	if err != nil {
		de, _ := err.(*protocol.DecodeError)
		code := protocol.CodeInvalidCommand
		if de != nil {
			code = de.Code
		}
		writeJSON(w, http.StatusBadRequest, protocol.FailRaw(nil, "", code, err.Error()))
		return
	}

	resp := h.table.Dispatch(r.Context(), cmd)
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *HTTP) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch, unsubscribe := h.events.Subscribe(32)
	defer unsubscribe()

	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return
			}
			body, err := json.Marshal(p)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", body)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// Serve starts the HTTP transport and blocks until ctx is cancelled or the
// server fails.
func (h *HTTP) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Addr reports the configured listen address (host:port). A requested
// ephemeral port (0) is reported as 0, not as the port actually bound.
func (h *HTTP) Addr() string { return h.server.Addr }
