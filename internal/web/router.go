// Package web exposes the bot's HTTP surface: health probes and, when
// enabled, the webhook receive path.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/telepost-io/telepost/internal/bot"
	"github.com/telepost-io/telepost/internal/store"
	"github.com/telepost-io/telepost/internal/telegram"
)

// RouterDeps holds all dependencies needed to build the router.
type RouterDeps struct {
	Dispatcher *bot.Dispatcher
	Store      store.SettingsStore
	// WebhookToken guards the webhook path. Empty disables webhook receive.
	WebhookToken string
}

// NewRouter wires the ops routes into a Chi router.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RealIP)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.Store.Ping(req.Context()); err != nil {
			slog.Error("readiness check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.WebhookToken != "" {
		r.Post("/telegram/webhook/{token}", handleWebhook(deps))
	}

	return r
}

// handleWebhook accepts a Bot API update pushed by Telegram and feeds it to
// the dispatcher. A wrong token gets a 404, indistinguishable from an unknown
// path.
func handleWebhook(deps RouterDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		token := chi.URLParam(req, "token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(deps.WebhookToken)) != 1 {
			http.NotFound(w, req)
			return
		}

		var update telegram.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			http.Error(w, "malformed update", http.StatusBadRequest)
			return
		}

		deps.Dispatcher.HandleUpdate(req.Context(), update)
		w.WriteHeader(http.StatusOK)
	}
}
