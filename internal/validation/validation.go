// Package validation provides input validation helpers for the Yrdly API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB).
const MaxRequestSize = 1 << 20

// MaxNoteLength is the maximum length for free-text fields (dispute reasons, delivery notes).
const MaxNoteLength = 2000

// idRegex validates opaque record IDs (prefix + hex, e.g. "txn_a1b2...").
var idRegex = regexp.MustCompile(`^[a-z]{2,8}_[a-f0-9]{8,32}$`)

// RequestSizeMiddleware limits request body size.
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidID checks if a string is a well-formed record ID.
func IsValidID(id string) bool {
	return idRegex.MatchString(id)
}

// SanitizeString trims whitespace, removes null bytes, and limits length.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// FieldError represents a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors is a collection of field errors.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Check is a reusable field validation.
type Check func() *FieldError

// Validate runs checks and collects the failures.
func Validate(checks ...Check) FieldErrors {
	var errs FieldErrors
	for _, check := range checks {
		if fe := check(); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}

// NonEmpty requires a non-blank string field.
func NonEmpty(field, value string) Check {
	return func() *FieldError {
		if strings.TrimSpace(value) == "" {
			return &FieldError{Field: field, Message: "must not be empty"}
		}
		return nil
	}
}

// PositiveAmount requires a positive minor-unit amount.
func PositiveAmount(field string, amount int64) Check {
	return func() *FieldError {
		if amount <= 0 {
			return &FieldError{Field: field, Message: "must be a positive amount in minor units"}
		}
		return nil
	}
}
