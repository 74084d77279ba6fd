package models

import "time"

// Expense is a persisted expense row as returned by the API.
type Expense struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Amount    Amount    `json:"amount"`
	Date      Date      `json:"date"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExpenseInput is the caller-supplied part of an expense. The validate tags are the
// single source of the field rules for both the API and the form.
type ExpenseInput struct {
	Title  string `json:"title" validate:"required,min=3"`
	Amount string `json:"amount" validate:"required,money"`
	Date   string `json:"date" validate:"required,isodate"`
}

// NewExpense is a validated ExpenseInput ready for insertion.
type NewExpense struct {
	Title          string
	Amount         Amount
	Date           Date
	IdempotencyKey string
}
