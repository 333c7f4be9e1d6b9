// ABOUTME: Webhook HTTP server receiving Telegram updates over chi
// ABOUTME: Verifies the shared secret header before dispatching

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// secretTokenHeader is set by Telegram on every webhook delivery when a
// secret_token was registered.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookServer receives updates pushed by Telegram. Each update is
// answered 200 immediately after dispatch; Telegram retries on anything
// else, which would duplicate provider calls.
type WebhookServer struct {
	dispatcher *Dispatcher
	addr       string
	secret     string
	logger     *slog.Logger
}

// NewWebhookServer creates a WebhookServer listening on addr.
func NewWebhookServer(dispatcher *Dispatcher, addr, secret string, logger *slog.Logger) *WebhookServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookServer{
		dispatcher: dispatcher,
		addr:       addr,
		secret:     secret,
		logger:     logger.With("component", "webhook"),
	}
}

// Handler builds the HTTP routes.
func (s *WebhookServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/telegram", func(w http.ResponseWriter, r *http.Request) {
		if s.secret != "" && r.Header.Get(secretTokenHeader) != s.secret {
			s.logger.Warn("webhook request with bad secret token", "remote", r.RemoteAddr)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var update Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			s.logger.Warn("undecodable webhook payload", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		s.dispatcher.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *WebhookServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
