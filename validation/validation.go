// Package validation collects field-level violations before any store call.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Violations maps a field name to a violation code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Error implements error so violations can travel through error returns.
func (v Violations) Error() string {
	var b strings.Builder
	b.WriteString("validation failed:")
	for f, c := range v {
		b.WriteString(" " + f + "=" + c)
	}
	return b.String()
}

// Err returns v as an error, or nil when empty.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func MaxLen(field, value string, max int, v Violations) {
	if len([]rune(value)) > max {
		v[field] = "too_long"
	}
}

func Email(field, value string, v Violations) {
	if value == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v[field] = "invalid_email"
	}
}

var (
	companyCodeRe = regexp.MustCompile(`^[A-Z0-9]{8}$`)
	siretRe       = regexp.MustCompile(`^[0-9]{14}$`)
)

// CompanyCode checks the 8 upper-case alphanumeric join code.
func CompanyCode(field, value string, v Violations) {
	if !companyCodeRe.MatchString(value) {
		v[field] = "invalid_code"
	}
}

// SIRET checks an optional 14 digit registration number.
func SIRET(field, value string, v Violations) {
	if value != "" && !siretRe.MatchString(value) {
		v[field] = "invalid_siret"
	}
}

func NonNegative(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v[field] = "must_not_be_negative"
	}
}

func RangeDecimal(field string, val, minVal, maxVal decimal.Decimal, v Violations) {
	if val.LessThan(minVal) || val.GreaterThan(maxVal) {
		v[field] = "out_of_range"
	}
}

// After checks that end is strictly later than start.
func After(field string, start, end time.Time, v Violations) {
	if !end.After(start) {
		v[field] = "must_be_after_start"
	}
}

// OneOf checks value against the allowed set.
func OneOf[T ~string](field string, value T, allowed []T, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}
