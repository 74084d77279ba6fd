// Package form is a controlled expense form bound to the shared field rules.
package form

import (
	"context"
	"errors"
	"sync"
	"time"

	"expenses-server/src/models"
	"expenses-server/src/schema"
)

const (
	Title  = "title"
	Amount = "amount"
	Date   = "date"
)

// Fields lists the form fields in display order.
var Fields = []string{Title, Amount, Date}

var (
	ErrInvalid    = errors.New("form has invalid fields")
	ErrSubmitting = errors.New("form is already submitting")
)

// SubmitFunc receives the whole record once per successful Submit.
type SubmitFunc func(ctx context.Context, in models.ExpenseInput) error

type Form struct {
	mu         sync.Mutex
	values     map[string]string
	touched    map[string]bool
	submitting bool
	loc        *time.Location
}

// New returns a form with the default values. The date defaults to today in loc;
// a nil loc means time.Local.
func New(now time.Time, loc *time.Location) *Form {
	if loc == nil {
		loc = time.Local
	}
	return &Form{
		values: map[string]string{
			Title:  "",
			Amount: "0",
			Date:   now.In(loc).Format(models.DateLayout),
		},
		touched: map[string]bool{},
		loc:     loc,
	}
}

func (f *Form) Value(field string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[field]
}

// Change sets field and marks it touched.
func (f *Form) Change(field, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[field]; !ok {
		return
	}
	f.values[field] = value
	f.touched[field] = true
}

func (f *Form) Blur(field string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[field]; ok {
		f.touched[field] = true
	}
}

// SetDate stores the calendar date t falls on in the form's location, so a date
// picked late in the evening is not moved by a UTC conversion.
func (f *Form) SetDate(t time.Time) {
	f.Change(Date, t.In(f.location()).Format(models.DateLayout))
}

// DisplayDate renders the date field for the user's locale, or the raw value when
// it does not parse.
func (f *Form) DisplayDate(layout string) string {
	raw := f.Value(Date)
	d, err := models.ParseDate(raw)
	if err != nil {
		return raw
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, f.location()).Format(layout)
}

func (f *Form) location() *time.Location {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loc
}

// Errors returns the messages for field, or nil until the field is touched.
func (f *Form) Errors(field string) []string {
	f.mu.Lock()
	touched, value := f.touched[field], f.values[field]
	f.mu.Unlock()

	if !touched {
		return nil
	}
	return schema.ValidateField(field, value)
}

func (f *Form) Touched(field string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched[field]
}

func (f *Form) Input() models.ExpenseInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.input()
}

func (f *Form) input() models.ExpenseInput {
	return models.ExpenseInput{Title: f.values[Title], Amount: f.values[Amount], Date: f.values[Date]}
}

// Valid reports whether every field passes, touched or not.
func (f *Form) Valid() bool {
	return schema.ValidateInsert(f.Input()) == nil
}

func (f *Form) IsSubmitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

func (f *Form) CanSubmit() bool {
	return f.Valid() && !f.IsSubmitting()
}

// Submit touches every field, then hands the record to submit exactly once. It
// refuses while another submission is running or while any field is invalid.
func (f *Form) Submit(ctx context.Context, submit SubmitFunc) error {
	f.mu.Lock()
	for _, field := range Fields {
		f.touched[field] = true
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitting
	}
	in := f.input()
	if schema.ValidateInsert(in) != nil {
		f.mu.Unlock()
		return ErrInvalid
	}
	f.submitting = true
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()
	return submit(ctx, in)
}
