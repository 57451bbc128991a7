package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ConsiderationKind discriminates the two consideration shapes.
type ConsiderationKind string

const (
	KindPriorExpense ConsiderationKind = "gasto_anterior"
	KindText         ConsiderationKind = "texto"
)

// Valid reports whether k is one of the known literals.
func (k ConsiderationKind) Valid() bool {
	return k == KindPriorExpense || k == KindText
}

// Consideration is a narrative justification entry of a resolution. The set
// of implementations is closed: PriorExpense and TextConsideration.
type Consideration interface {
	Kind() ConsiderationKind
	consideration()
}

type (
	// PriorExpense references money spent in an earlier period.
	PriorExpense struct {
		Description string
		Amount      string
	}

	// TextConsideration is free text.
	TextConsideration struct {
		Content string
	}

	LineItem struct {
		Category string
		Amount   string
	}

	Annex struct {
		Title       string
		LineItems   []LineItem
		Penalties   []LineItem
		ClosingNote string
	}

	// Record is the typed view of a monthly budget record.
	Record struct {
		Period         string
		TitleBase      string
		Rationale      string
		Considerations []Consideration
		Articles       []string
		Annex          Annex
	}

	// Totals are always derived from an Annex, never supplied by callers.
	Totals struct {
		Subtotal     decimal.Decimal
		PenaltyTotal decimal.Decimal
		NetTotal     decimal.Decimal
	}

	Date struct {
		time.Time
	}

	// Expense is a single ledger entry.
	Expense struct {
		Date        Date
		Category    string
		Description string
		Amount      decimal.Decimal
	}
)

func (PriorExpense) Kind() ConsiderationKind      { return KindPriorExpense }
func (PriorExpense) consideration()               {}
func (TextConsideration) Kind() ConsiderationKind { return KindText }
func (TextConsideration) consideration()          {}

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyCategory     = errors.New("empty category")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
)

// Formatted returns the totals as whole-number strings ready for template
// interpolation. Halves round to even.
func (t Totals) Formatted() (subtotal, penaltyTotal, netTotal string) {
	return FormatWhole(t.Subtotal), FormatWhole(t.PenaltyTotal), FormatWhole(t.NetTotal)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Period returns the calendar month the date falls in.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLength
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
