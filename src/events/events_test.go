package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"expenses-server/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleExpense(t *testing.T) models.Expense {
	amount, err := models.ParseAmount("42.50")
	require.NoError(t, err)
	return models.Expense{ID: 3, UserID: "u1", Title: "Groceries", Amount: amount, Date: models.NewDate(2024, time.May, 1)}
}

func TestEventJSON(t *testing.T) {
	event := New(ExpenseCreated, sampleExpense(t))

	body, err := event.ToJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "expense.created", decoded["type"])
	expense := decoded["expense"].(map[string]any)
	assert.Equal(t, "42.50", expense["amount"])
	assert.Equal(t, "2024-05-01", expense["date"])
	assert.NotEmpty(t, decoded["occurredAt"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), New(ExpenseDeleted, sampleExpense(t))))
	assert.NoError(t, p.Close())
}

func TestNewAMQPPublisherInvalidURL(t *testing.T) {
	_, err := NewAMQPPublisher("amqp://invalid-host-that-does-not-exist:5672/", "expenses")
	assert.Error(t, err)
}

func TestAMQPPublisherIntegration(t *testing.T) {
	url := os.Getenv("TEST_AMQP_URL")
	if url == "" {
		t.Skip("TEST_AMQP_URL not set")
	}
	p, err := NewAMQPPublisher(url, "expenses_test")
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.Publish(context.Background(), New(ExpenseCreated, sampleExpense(t))))
}
