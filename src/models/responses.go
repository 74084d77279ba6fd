package models

type ExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type ExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type TotalSpentResponse struct {
	TotalSpent Amount `json:"totalSpent"`
}

// ErrorResponse is the body of every non-2xx JSON reply. Fields is set only for
// validation failures and maps json field names to messages.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}
