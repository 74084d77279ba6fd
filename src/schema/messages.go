package schema

import (
	"fmt"
	"strings"
	"unicode"
)

var messages = map[string]map[string]string{
	"title":  {"min": "Title must be at least 3 characters"},
	"amount": {"money": "Amount must be a valid monetary value"},
	"date":   {"isodate": "Date must be a valid ISO-8601 date"},
	"id":     {"gt": "Id must be a positive integer"},
}

func message(field, tag string) string {
	if m, ok := messages[field][tag]; ok {
		return m
	}
	if tag == "required" {
		return label(field) + " is required"
	}
	return fmt.Sprintf("%s is invalid (%s)", label(field), tag)
}

// label turns a json name like createdAt into "Created at".
func label(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
