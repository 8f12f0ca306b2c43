// Package adminapi exposes the administrative endpoints of the encryption
// layer. The only mutating operation is the key-cache reload, which clears
// every cached key version and eagerly re-exports them from the secret
// service.
package adminapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hengadev/fieldvault"
)

// NewRouter builds the admin router around a transit orchestrator.
func NewRouter(transit *fieldvault.Transit, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/reload-keys", func(w http.ResponseWriter, req *http.Request) {
		if err := transit.ReloadKeys(req.Context()); err != nil {
			logger.Error("key reload failed", "error", err)
			http.Error(w, "key reload failed", http.StatusInternalServerError)
			return
		}
		logger.Info("encryption keys reloaded", "versions", transit.CachedVersions())
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}
