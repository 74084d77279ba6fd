// Package client is the typed data layer over the expenses API: an HTTP client plus
// a cached service with an optimistic create flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"expenses-server/src/models"
	"expenses-server/src/schema"
)

var ErrNotFound = errors.New("expense not found")

// ValidationError is a 400 answer to a create request.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + schema.FieldErrors(e.Fields).Error()
}

// StatusError is any other non-2xx answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

type API struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPI returns a client for the server at baseURL. A nil httpClient gets a default
// with a 10 second timeout.
func NewAPI(baseURL, token string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), token: token, httpClient: httpClient}
}

func (a *API) ListExpenses(ctx context.Context) ([]models.Expense, error) {
	var resp models.ExpensesResponse
	if err := a.do(ctx, http.MethodGet, "/api/expenses", nil, nil, &resp); err != nil {
		return nil, err
	}
	for _, e := range resp.Expenses {
		if err := checkRecord(e); err != nil {
			return nil, err
		}
	}
	if resp.Expenses == nil {
		resp.Expenses = []models.Expense{}
	}
	return resp.Expenses, nil
}

func (a *API) TotalSpent(ctx context.Context) (models.Amount, error) {
	var resp models.TotalSpentResponse
	if err := a.do(ctx, http.MethodGet, "/api/expenses/total-spent", nil, nil, &resp); err != nil {
		return models.Amount{}, err
	}
	return resp.TotalSpent, nil
}

// CreateExpense posts in. A non-empty idempotencyKey makes a retried request return
// the row created by the first one.
func (a *API) CreateExpense(ctx context.Context, in models.ExpenseInput, idempotencyKey string) (*models.Expense, error) {
	headers := map[string]string{}
	if idempotencyKey != "" {
		headers["Idempotency-Key"] = idempotencyKey
	}

	var created models.Expense
	if err := a.do(ctx, http.MethodPost, "/api/expenses", in, headers, &created); err != nil {
		return nil, err
	}
	if err := checkRecord(created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (a *API) GetExpense(ctx context.Context, id int64) (*models.Expense, error) {
	return a.expenseByID(ctx, http.MethodGet, id)
}

func (a *API) DeleteExpense(ctx context.Context, id int64) (*models.Expense, error) {
	return a.expenseByID(ctx, http.MethodDelete, id)
}

func (a *API) expenseByID(ctx context.Context, method string, id int64) (*models.Expense, error) {
	var resp models.ExpenseResponse
	if err := a.do(ctx, method, "/api/expenses/"+strconv.FormatInt(id, 10), nil, nil, &resp); err != nil {
		return nil, err
	}
	if err := checkRecord(resp.Expense); err != nil {
		return nil, err
	}
	return &resp.Expense, nil
}

func (a *API) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusBadRequest {
		var body models.ErrorResponse
		if json.Unmarshal(b, &body) == nil && len(body.Fields) > 0 {
			return &ValidationError{Fields: body.Fields}
		}
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// checkRecord holds decoded rows to the same rules the server stores them under.
func checkRecord(e models.Expense) error {
	if errs := schema.ValidateRecord(e); errs != nil {
		return fmt.Errorf("invalid expense in response: %w", errs)
	}
	return nil
}
