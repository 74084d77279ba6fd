// Package schema holds the expense field rules shared by the API and the form.
//
// The rules live in the validate tags of models.ExpenseInput. The insert variant is
// read from those tags; the select variant adds the server-assigned fields on top, so
// both variants and both tiers run the same rule text through the same validator.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"expenses-server/src/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// numeric(12,2) leaves ten digits before the point.
const maxIntegerDigits = 10

var moneyPattern = regexp.MustCompile(`^(0|[1-9][0-9]*)(\.[0-9]{1,2})?$`)

var (
	validate = newValidator()

	insertRules = rulesFor(reflect.TypeOf(models.ExpenseInput{}))
	selectRules = withServerFields(insertRules)
)

// FieldErrors maps json field names to their validation messages.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(fe[f], ", ")))
	}
	return strings.Join(parts, "; ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	mustRegister(v, "money", func(fl validator.FieldLevel) bool {
		return IsMoney(fl.Field().String())
	})
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, err := models.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("schema: register %s: %v", tag, err))
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func rulesFor(t reflect.Type) map[string]string {
	rules := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if tag := f.Tag.Get("validate"); tag != "" {
			rules[jsonName(f)] = tag
		}
	}
	return rules
}

func withServerFields(base map[string]string) map[string]string {
	rules := map[string]string{
		"id":        "gt=0",
		"userId":    "required",
		"createdAt": "required",
	}
	for k, v := range base {
		rules[k] = v
	}
	return rules
}

// IsMoney reports whether s is a positive amount with at most two fractional digits
// and no leading zeros.
func IsMoney(s string) bool {
	if !moneyPattern.MatchString(s) {
		return false
	}
	if len(strings.SplitN(s, ".", 2)[0]) > maxIntegerDigits {
		return false
	}
	d, err := decimal.NewFromString(s)
	return err == nil && d.IsPositive()
}

// InsertFields lists the caller-supplied fields in a stable order.
func InsertFields() []string {
	return sortedKeys(insertRules)
}

// SelectFields lists every field of a stored record in a stable order.
func SelectFields() []string {
	return sortedKeys(selectRules)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidateInsert checks a create payload. It returns nil when the payload is valid.
func ValidateInsert(in models.ExpenseInput) FieldErrors {
	return toFieldErrors("", validate.Struct(in))
}

// ValidateField checks a single insert field the way ValidateInsert would.
// Unknown field names have no rules and always pass.
func ValidateField(name, value string) []string {
	tag, ok := insertRules[name]
	if !ok {
		return nil
	}
	return toFieldErrors(name, validate.Var(value, tag))[name]
}

// ValidateRecord checks a stored record against the select variant.
func ValidateRecord(e models.Expense) FieldErrors {
	values := map[string]any{
		"id":        e.ID,
		"userId":    e.UserID,
		"title":     e.Title,
		"amount":    e.Amount.String(),
		"date":      e.Date.String(),
		"createdAt": e.CreatedAt,
	}
	errs := FieldErrors{}
	for _, name := range SelectFields() {
		for field, msgs := range toFieldErrors(name, validate.Var(values[name], selectRules[name])) {
			for _, m := range msgs {
				errs.Add(field, m)
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// NormalizeInsert validates in and converts it to typed values.
func NormalizeInsert(in models.ExpenseInput) (models.NewExpense, FieldErrors) {
	if errs := ValidateInsert(in); errs != nil {
		return models.NewExpense{}, errs
	}

	amount, err := models.ParseAmount(in.Amount)
	if err != nil {
		return models.NewExpense{}, FieldErrors{"amount": {message("amount", "money")}}
	}
	date, err := models.ParseDate(in.Date)
	if err != nil {
		return models.NewExpense{}, FieldErrors{"date": {message("date", "isodate")}}
	}

	return models.NewExpense{Title: in.Title, Amount: amount, Date: date}, nil
}

// toFieldErrors converts validator output. field names the value for Var calls, where
// the validator has no struct field to report.
func toFieldErrors(field string, err error) FieldErrors {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{field: {err.Error()}}
	}

	errs := FieldErrors{}
	for _, fe := range verrs {
		name := fe.Field()
		if field != "" {
			name = field
		}
		errs.Add(name, message(name, fe.Tag()))
	}
	return errs
}
