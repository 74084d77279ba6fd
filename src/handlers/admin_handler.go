package handlers

import (
	"net/http"

	"expenses-server/src/db"
	"expenses-server/src/logging"
	"expenses-server/src/models"
	"expenses-server/src/util"
)

// AdminListExpenses lists every owner's expenses.
func AdminListExpenses(store db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expenses, err := store.ListExpenses(r.Context(), "")
		if err != nil {
			logging.FromContext(r.Context()).Error("Failed to list all expenses", "error", err)
			http.Error(w, "failed to list expenses", http.StatusInternalServerError)
			return
		}
		util.WriteJSON(w, http.StatusOK, models.ExpensesResponse{Expenses: expenses})
	}
}

type cacheClearer interface {
	Clear()
}

func ClearCache(store db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cache, ok := store.(cacheClearer)
		if !ok {
			http.Error(w, "cache not enabled", http.StatusNotFound)
			return
		}
		cache.Clear()
		logging.FromContext(r.Context()).Info("Cleared cache via admin request")
		w.WriteHeader(http.StatusNoContent)
	}
}
