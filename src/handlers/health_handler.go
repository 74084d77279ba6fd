package handlers

import (
	"context"
	"net/http"
	"time"

	"expenses-server/src/db"
	"expenses-server/src/logging"
)

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}
}

// Ready reports whether the store answers within two seconds.
func Ready(store db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ready"))
	}
}
