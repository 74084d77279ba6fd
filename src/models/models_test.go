package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountJSON(t *testing.T) {
	a, err := ParseAmount("42.5")
	require.NoError(t, err)

	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"42.50"`, string(b))

	var fromString, fromNumber Amount
	require.NoError(t, json.Unmarshal([]byte(`"350.50"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`350.5`), &fromNumber))
	assert.True(t, fromString.Equal(fromNumber.Decimal))

	var bad Amount
	assert.Error(t, json.Unmarshal([]byte(`"ten"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`true`), &bad))
}

func TestZeroAmountString(t *testing.T) {
	assert.Equal(t, "0.00", Amount{}.String())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.May, 1), d)

	// the date is taken as written, not shifted to UTC
	d, err = ParseDate("2024-05-01T23:30:00-04:00")
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", d.String())

	_, err = ParseDate("May 1st")
	assert.Error(t, err)
}

func TestExpenseJSONShape(t *testing.T) {
	amount, err := ParseAmount("42.50")
	require.NoError(t, err)

	e := Expense{
		ID:        7,
		UserID:    "u1",
		Title:     "Groceries",
		Amount:    amount,
		Date:      NewDate(2024, time.May, 1),
		CreatedAt: time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"userId":"u1","title":"Groceries","amount":"42.50","date":"2024-05-01","createdAt":"2024-05-01T10:00:00Z"}`, string(b))
}
