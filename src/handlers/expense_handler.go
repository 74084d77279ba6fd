package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"expenses-server/src/db"
	"expenses-server/src/events"
	"expenses-server/src/logging"
	"expenses-server/src/metrics"
	"expenses-server/src/middleware"
	"expenses-server/src/models"
	"expenses-server/src/schema"
	"expenses-server/src/util"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	maxBodyBytes = 1 << 20
)

func ListExpenses(store db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}
		expenses, err := store.ListExpenses(r.Context(), userID)
		if err != nil {
			logging.FromContext(r.Context()).Error("Failed to list expenses", "user_id", userID, "error", err)
			http.Error(w, "failed to list expenses", http.StatusInternalServerError)
			return
		}
		util.WriteJSON(w, http.StatusOK, models.ExpensesResponse{Expenses: expenses})
	}
}

func TotalSpent(store db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}
		total, err := store.TotalSpent(r.Context(), userID)
		if err != nil {
			logging.FromContext(r.Context()).Error("Failed to get total spent", "user_id", userID, "error", err)
			http.Error(w, "failed to get total spent", http.StatusInternalServerError)
			return
		}
		util.WriteJSON(w, http.StatusOK, models.TotalSpentResponse{TotalSpent: total})
	}
}

func CreateExpense(store db.Store, publisher events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		var in models.ExpenseInput
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
			log.Warn("Failed to decode create expense request body", "user_id", userID, "error", err)
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key != "" {
			if _, err := uuid.Parse(key); err != nil {
				http.Error(w, "invalid idempotency key", http.StatusBadRequest)
				return
			}
		}

		ne, fieldErrs := schema.NormalizeInsert(in)
		if fieldErrs != nil {
			for field := range fieldErrs {
				metrics.ValidationFailures.WithLabelValues(field).Inc()
			}
			log.Info("Rejected expense", "user_id", userID, "fields", fieldErrs.Error())
			util.WriteValidationError(w, fieldErrs)
			return
		}
		ne.IdempotencyKey = key

		created, replayed, err := store.InsertExpense(r.Context(), userID, ne)
		if err != nil {
			log.Error("Failed to create expense", "user_id", userID, "error", err)
			http.Error(w, "failed to create expense", http.StatusInternalServerError)
			return
		}

		if replayed {
			metrics.ExpensesReplayed.Inc()
			log.Info("Replayed expense create", "user_id", userID, "expense_id", created.ID)
			w.Header().Set(ReplayedHeader, "true")
		} else {
			metrics.ExpensesCreated.Inc()
			log.Info("Created expense", "user_id", userID, "expense_id", created.ID)
			publish(r.Context(), publisher, events.New(events.ExpenseCreated, *created))
		}
		util.WriteJSON(w, http.StatusCreated, created)
	}
}

func GetExpense(store db.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}
		id, found := expenseID(r)
		if !found {
			http.Error(w, "expense not found", http.StatusNotFound)
			return
		}

		expense, err := store.GetExpense(r.Context(), userID, id)
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "expense not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logging.FromContext(r.Context()).Error("Failed to get expense", "user_id", userID, "expense_id", id, "error", err)
			http.Error(w, "failed to get expense", http.StatusInternalServerError)
			return
		}
		util.WriteJSON(w, http.StatusOK, models.ExpenseResponse{Expense: *expense})
	}
}

func DeleteExpense(store db.Store, publisher events.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logging.FromContext(r.Context())
		userID, ok := callerID(w, r)
		if !ok {
			return
		}
		id, found := expenseID(r)
		if !found {
			http.Error(w, "expense not found", http.StatusNotFound)
			return
		}

		deleted, err := store.DeleteExpense(r.Context(), userID, id)
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "expense not found", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("Failed to delete expense", "user_id", userID, "expense_id", id, "error", err)
			http.Error(w, "failed to delete expense", http.StatusInternalServerError)
			return
		}

		metrics.ExpensesDeleted.Inc()
		log.Info("Deleted expense", "user_id", userID, "expense_id", id)
		publish(r.Context(), publisher, events.New(events.ExpenseDeleted, *deleted))
		util.WriteJSON(w, http.StatusOK, models.ExpenseResponse{Expense: *deleted})
	}
}

// callerID answers 401 when no authenticated caller is on the request, so an
// unscoped store query is never issued from here.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return userID, ok
}

// expenseID reads the {id} route param. Digit-only ids too large for int64 are
// treated as absent.
func expenseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// publish never fails the request; the row is already committed.
func publish(ctx context.Context, publisher events.Publisher, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		metrics.EventPublishFailures.WithLabelValues(event.Type).Inc()
		logging.FromContext(ctx).Error("Failed to publish expense event", "type", event.Type, "expense_id", event.Expense.ID, "error", err)
	}
}
