package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"expenses-server/src/api"
	"expenses-server/src/db"
	"expenses-server/src/events"
	"expenses-server/src/middleware"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "cli-test-secret"

// newServer starts an API backed by a temp SQLite file and returns the global
// flags that point expensectl at it.
func newServer(t *testing.T) []string {
	t.Helper()
	store, err := db.Open(context.Background(), db.DriverSQLite, filepath.Join(t.TempDir(), "expenses.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(api.NewRouter(store, events.Nop{}, logger, api.Options{JWTSecret: testSecret}))
	t.Cleanup(srv.Close)

	token, err := middleware.IssueToken(testSecret, "cli-user", false, time.Hour)
	require.NoError(t, err)
	return []string{"-server", srv.URL, "-token", token}
}

func runCmd(t *testing.T, global []string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	err := run(append(append([]string{}, global...), args...), bytes.NewBufferString(stdin), stdout, stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_MissingCommand(t *testing.T) {
	stdout, _, err := runCmd(t, nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing command")
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "<server>/api/expenses")
}

func TestRun_UnknownCommand(t *testing.T) {
	_, _, err := runCmd(t, nil, "", "frobnicate")
	assert.ErrorContains(t, err, `unknown command "frobnicate"`)
}

func TestRun_CreateWithFlags(t *testing.T) {
	global := newServer(t)

	stdout, _, err := runCmd(t, global, "", "create", "-title", "Groceries", "-amount", "42.50", "-date", "2024-05-01")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Opening /expenses")
	assert.Contains(t, stdout, "Successfully created new expense: 1")
	assert.Contains(t, stdout, "Groceries")

	stdout, _, err = runCmd(t, global, "", "total")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Total spent: 42.50")

	stdout, _, err = runCmd(t, global, "", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2024-05-01")
}

func TestRun_CreateInteractiveReprompts(t *testing.T) {
	global := newServer(t)

	// too short, then valid title; invalid then valid amount; keep default date
	stdin := "ab\nRent\n0\n900\n\n"
	stdout, _, err := runCmd(t, global, stdin, "create")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Title: ")
	assert.Contains(t, stdout, "Title must be at least 3 characters")
	assert.Contains(t, stdout, "Amount must be a valid monetary value")
	assert.Contains(t, stdout, "Date [")
	assert.Contains(t, stdout, "Successfully created new expense")
}

func TestRun_CreateInteractiveRunsOutOfInput(t *testing.T) {
	global := newServer(t)

	_, _, err := runCmd(t, global, "ab\n", "create")
	assert.ErrorContains(t, err, "no valid title given")
}

func TestRun_CreateInvalidFlags(t *testing.T) {
	global := newServer(t)

	_, stderr, err := runCmd(t, global, "", "create", "-title", "Groceries", "-amount", "12.345", "-date", "2024-05-01")
	require.Error(t, err)
	assert.Contains(t, stderr, "amount: Amount must be a valid monetary value")
}

func TestRun_GetAndDelete(t *testing.T) {
	global := newServer(t)
	_, _, err := runCmd(t, global, "", "create", "-title", "Groceries", "-amount", "42.50", "-date", "2024-05-01")
	require.NoError(t, err)

	stdout, _, err := runCmd(t, global, "", "get", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Groceries")

	stdout, _, err = runCmd(t, global, "", "delete", "1")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Deleted expense 1")

	_, _, err = runCmd(t, global, "", "delete", "1")
	assert.ErrorContains(t, err, "expense not found")

	_, _, err = runCmd(t, global, "", "get", "abc")
	assert.ErrorContains(t, err, `invalid id "abc"`)
}

func TestRun_ListEmpty(t *testing.T) {
	stdout, _, err := runCmd(t, newServer(t), "", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No expenses yet")
}

func TestRun_Token(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	stdout, _, err := runCmd(t, nil, "s3cret\n", "token", "-user", "u1", "-admin")
	require.NoError(t, err)
	assert.Contains(t, stdout, "JWT secret: ")

	lines := bytes.Split(bytes.TrimSpace([]byte(stdout)), []byte("\n"))
	token := string(bytes.TrimSpace(lines[len(lines)-1]))
	claims, err := middleware.ParseToken(token, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.True(t, claims.SuperAdmin)

	_, _, err = runCmd(t, nil, "", "token")
	assert.ErrorContains(t, err, "missing required flags: user")
}
