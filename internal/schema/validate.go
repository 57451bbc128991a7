package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"resoluciones/internal/core"
	"resoluciones/internal/log"
)

const (
	minPlausibleYear   = 2020
	yearsAheadAllowed  = 5
	maxTitleBaseLength = 200
	maxRationaleLength = 1000
	maxArticleLength   = 500
)

// Result is the outcome of validating one record. Errors block generation,
// warnings do not.
type Result struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// OK reports whether no errors were found.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Summary is a one line human readable description of r.
func (r Result) Summary() string {
	if r.OK() {
		if len(r.Warnings) > 0 {
			return fmt.Sprintf("record validation passed with %d warnings", len(r.Warnings))
		}
		return "record validation passed"
	}
	msg := fmt.Sprintf("record validation failed: %d errors", len(r.Errors))
	if len(r.Warnings) > 0 {
		msg += fmt.Sprintf(", %d warnings", len(r.Warnings))
	}
	return msg
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validator checks records against the budget record schema. It never
// mutates its input.
type Validator struct {
	logger *log.Logger
	now    func() time.Time
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithValidatorClock pins the clock used for the plausible year window.
func WithValidatorClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a Validator. A nil logger discards output.
func NewValidator(logger *log.Logger, opts ...ValidatorOption) *Validator {
	v := &Validator{
		logger: log.OrNop(logger).WithComponent(log.ComponentValidator),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks record and returns every problem it finds. Only missing or
// null top-level fields stop validation early.
func Validate(record map[string]any) Result {
	return NewValidator(nil).Validate(record)
}

// Validate checks record and returns every problem it finds. Only missing or
// null top-level fields stop validation early.
func (v *Validator) Validate(record map[string]any) Result {
	var res Result

	for _, field := range RequiredFields {
		value, ok := record[field]
		switch {
		case !ok:
			res.errorf("Missing required field: %s", field)
		case value == nil:
			res.errorf("Field cannot be null: %s", field)
		}
	}
	if !res.OK() {
		v.logger.Warn("record is missing top-level fields", log.FieldErrors, len(res.Errors))
		return res
	}

	v.validatePeriod(record[KeyPeriod], &res)
	validateText(KeyTitleBase, record[KeyTitleBase], maxTitleBaseLength, &res)
	validateText(KeyRationale, record[KeyRationale], maxRationaleLength, &res)
	validateConsiderations(record[KeyConsiderations], &res)
	validateArticles(record[KeyArticles], &res)
	validateAnnex(record[KeyAnnex], &res)

	v.logger.Debug("record validated",
		log.FieldErrors, len(res.Errors),
		log.FieldWarnings, len(res.Warnings))
	return res
}

func (v *Validator) validatePeriod(value any, res *Result) {
	s, ok := value.(string)
	if !ok {
		res.errorf("%s must be a string", KeyPeriod)
		return
	}
	if !core.IsPeriodFormat(s) {
		res.errorf("%s must be in YYYY-MM format", KeyPeriod)
		return
	}
	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[5:])

	maxYear := v.now().Year() + yearsAheadAllowed
	if year < minPlausibleYear || year > maxYear {
		res.warnf("%s year %d seems unusual (expected %d-%d)", KeyPeriod, year, minPlausibleYear, maxYear)
	}
	if month < 1 || month > 12 {
		res.errorf("%s month %d is invalid (must be 1-12)", KeyPeriod, month)
	}
}

func validateText(field string, value any, maxLen int, res *Result) {
	s, ok := value.(string)
	switch {
	case !ok:
		res.errorf("%s must be a string", field)
	case strings.TrimSpace(s) == "":
		res.errorf("%s cannot be empty", field)
	case utf8.RuneCountInString(s) > maxLen:
		res.warnf("%s is very long (>%d characters)", field, maxLen)
	}
}

func validateConsiderations(value any, res *Result) {
	list, ok := value.([]any)
	if !ok {
		res.errorf("%s must be an array", KeyConsiderations)
		return
	}
	if len(list) == 0 {
		res.warnf("%s array is empty", KeyConsiderations)
	}

	for i, raw := range list {
		entry, ok := raw.(map[string]any)
		if !ok {
			res.errorf("%s[%d] must be an object", KeyConsiderations, i)
			continue
		}

		kindValue, hasKind := entry[KeyKind]
		kind, _ := kindValue.(string)
		if !hasKind {
			res.errorf("%s[%d] missing required field '%s'", KeyConsiderations, i, KeyKind)
		} else if !core.ConsiderationKind(kind).Valid() {
			res.errorf("%s[%d] %s must be '%s' or '%s'", KeyConsiderations, i, KeyKind, core.KindPriorExpense, core.KindText)
		}

		switch core.ConsiderationKind(kind) {
		case core.KindPriorExpense:
			if d, ok := entry[KeyDescription]; !ok {
				res.errorf("%s[%d] with %s '%s' missing '%s'", KeyConsiderations, i, KeyKind, kind, KeyDescription)
			} else if !isNonEmptyString(d) {
				res.errorf("%s[%d] %s must be a non-empty string", KeyConsiderations, i, KeyDescription)
			}
			if m, ok := entry[KeyAmount]; !ok {
				res.errorf("%s[%d] with %s '%s' missing '%s'", KeyConsiderations, i, KeyKind, kind, KeyAmount)
			} else if !isAmount(m) {
				res.errorf("%s[%d] %s must be a valid numeric string", KeyConsiderations, i, KeyAmount)
			}
			if _, ok := entry[KeyContent]; ok {
				res.warnf("%s[%d] with %s '%s' has unexpected '%s' field", KeyConsiderations, i, KeyKind, kind, KeyContent)
			}
		case core.KindText:
			if c, ok := entry[KeyContent]; !ok {
				res.errorf("%s[%d] with %s '%s' missing '%s'", KeyConsiderations, i, KeyKind, kind, KeyContent)
			} else if !isNonEmptyString(c) {
				res.errorf("%s[%d] %s must be a non-empty string", KeyConsiderations, i, KeyContent)
			}
			_, hasDesc := entry[KeyDescription]
			_, hasAmount := entry[KeyAmount]
			if hasDesc || hasAmount {
				res.warnf("%s[%d] with %s '%s' has unexpected fields (%s/%s)", KeyConsiderations, i, KeyKind, kind, KeyDescription, KeyAmount)
			}
		}
	}
}

func validateArticles(value any, res *Result) {
	list, ok := value.([]any)
	if !ok {
		res.errorf("%s must be an array", KeyArticles)
		return
	}
	if len(list) == 0 {
		res.warnf("%s array is empty", KeyArticles)
	}
	for i, raw := range list {
		s, ok := raw.(string)
		switch {
		case !ok:
			res.errorf("%s[%d] must be a string", KeyArticles, i)
		case strings.TrimSpace(s) == "":
			res.errorf("%s[%d] cannot be empty", KeyArticles, i)
		case utf8.RuneCountInString(s) > maxArticleLength:
			res.warnf("%s[%d] is very long (>%d characters)", KeyArticles, i, maxArticleLength)
		}
	}
}

func validateAnnex(value any, res *Result) {
	annex, ok := value.(map[string]any)
	if !ok {
		res.errorf("%s must be an object", KeyAnnex)
		return
	}

	for _, field := range []string{KeyAnnexTitle, KeyPenalties, KeyClosingNote} {
		if _, ok := annex[field]; !ok {
			res.errorf("%s missing required field: %s", KeyAnnex, field)
		}
	}

	_, hasCanonical := annex[KeyLineItems]
	_, hasAlias := annex[KeyLineItemsAlias]
	switch {
	case !hasCanonical && !hasAlias:
		res.errorf("%s missing required field: '%s' or '%s'", KeyAnnex, KeyLineItems, KeyLineItemsAlias)
	case hasCanonical && hasAlias:
		res.warnf("%s has both '%s' and '%s' fields - '%s' will be used", KeyAnnex, KeyLineItems, KeyLineItemsAlias, KeyLineItems)
	}

	if title, ok := annex[KeyAnnexTitle]; ok {
		s, isString := title.(string)
		switch {
		case !isString:
			res.errorf("%s.%s must be a string", KeyAnnex, KeyAnnexTitle)
		case strings.TrimSpace(s) == "":
			res.errorf("%s.%s cannot be empty", KeyAnnex, KeyAnnexTitle)
		}
	}

	itemsField := KeyLineItems
	if !hasCanonical {
		itemsField = KeyLineItemsAlias
	}
	if items, ok := annex[itemsField]; ok {
		validateItems(itemsField, items, res)
	}
	if penalties, ok := annex[KeyPenalties]; ok {
		validateItems(KeyPenalties, penalties, res)
	}

	if note, ok := annex[KeyClosingNote]; ok {
		if _, isString := note.(string); !isString {
			res.errorf("%s.%s must be a string", KeyAnnex, KeyClosingNote)
		}
	}
}

func validateItems(field string, value any, res *Result) {
	list, ok := value.([]any)
	if !ok {
		res.errorf("%s.%s must be an array", KeyAnnex, field)
		return
	}
	for i, raw := range list {
		item, ok := raw.(map[string]any)
		if !ok {
			res.errorf("%s.%s[%d] must be an object", KeyAnnex, field, i)
			continue
		}

		if c, ok := item[KeyCategory]; !ok {
			res.errorf("%s.%s[%d] missing required field '%s'", KeyAnnex, field, i, KeyCategory)
		} else if !isNonEmptyString(c) {
			res.errorf("%s.%s[%d] %s must be a non-empty string", KeyAnnex, field, i, KeyCategory)
		}

		m, hasAmount := item[KeyAmount]
		if !hasAmount {
			res.errorf("%s.%s[%d] missing required field '%s'", KeyAnnex, field, i, KeyAmount)
			continue
		}
		if !isAmount(m) {
			res.errorf("%s.%s[%d] %s must be a valid numeric string", KeyAnnex, field, i, KeyAmount)
			continue
		}
		if field == KeyPenalties {
			if d, err := core.ParseAmount(m.(string)); err == nil && d.IsPositive() {
				res.warnf("%s.%s[%d] %s is positive (%s are typically negative)", KeyAnnex, field, i, KeyAmount, KeyPenalties)
			}
		}
	}
}

func isNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

func isAmount(v any) bool {
	s, ok := v.(string)
	return ok && core.IsValidAmount(s)
}
