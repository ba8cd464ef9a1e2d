// ABOUTME: Gateway orchestrator wiring store, tokens, rate limiter, and events
// ABOUTME: Owns the HTTP server lifecycle for the Activity API

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/greentic/messaging-gateway/internal/auth"
	"github.com/greentic/messaging-gateway/internal/events"
	"github.com/greentic/messaging-gateway/internal/ratelimit"
	"github.com/greentic/messaging-gateway/internal/store"
)

// Gateway serves the Direct-Line style polling transport: token issuance,
// conversation creation, activity post, and fetch-since-watermark.
type Gateway struct {
	store      store.Store
	tokens     *auth.Service
	limiter    ratelimit.Limiter
	events     events.Publisher
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a gateway. limiter and publisher may be nil; nil means
// no rate limiting and no event publishing.
func New(st store.Store, tokens *auth.Service, limiter ratelimit.Limiter, publisher events.Publisher, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Gateway{
		store:   st,
		tokens:  tokens,
		limiter: limiter,
		events:  publisher,
		logger:  logger.With("component", "gateway"),
	}
}

// Handler returns the HTTP handler serving the Activity API routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/tokens/generate", g.handleGenerateToken)
	mux.HandleFunc("/conversations", g.handleCreateConversation)
	mux.HandleFunc("/conversations/", g.handleConversationRoutes)
	return mux
}

// Serve runs the HTTP server on addr until ctx is canceled, then shuts
// down gracefully.
func (g *Gateway) Serve(ctx context.Context, addr string) error {
	g.httpServer = &http.Server{
		Addr:              addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("http server listening", "addr", addr)
		errCh <- g.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, `{"status":"ok"}`)
}
