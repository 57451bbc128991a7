package core

import (
	"fmt"
	"strconv"
	"time"
)

var monthNames = [12]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var romanMonths = [12]string{
	"I", "II", "III", "IV", "V", "VI", "VII", "VIII", "IX", "X", "XI", "XII",
}

// MonthName returns the Spanish name of m, or "" when m is out of range.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// RomanMonth returns m as a roman numeral, or "" when m is out of range.
func RomanMonth(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return romanMonths[m-1]
}

// Period is a calendar month, written "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

// IsPeriodFormat reports whether s is exactly four digits, a dash and two
// digits. Signs and spaces are rejected.
func IsPeriodFormat(s string) bool {
	if len(s) != 7 || s[4] != '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i != 4 && (s[i] < '0' || s[i] > '9') {
			return false
		}
	}
	return true
}

// ParsePeriod parses the exact seven character "YYYY-MM" form.
func ParsePeriod(s string) (Period, error) {
	if !IsPeriodFormat(s) {
		return Period{}, fmt.Errorf("%w: %q is not in YYYY-MM format", ErrInvalidPeriod, s)
	}
	year, _ := strconv.Atoi(s[:4])
	month, _ := strconv.Atoi(s[5:])
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d", ErrInvalidMonth, month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// MonthName returns the Spanish month name of p.
func (p Period) MonthName() string {
	return MonthName(p.Month)
}

// ResolutionCode builds the code stamped on a document generated at t:
// r{day}e{ROMAN month}s{two digit year}, e.g. r5eVIIs25.
func ResolutionCode(t time.Time) string {
	return fmt.Sprintf("r%de%ss%02d", t.Day(), RomanMonth(t.Month()), t.Year()%100)
}

// LongDate formats t as "05 de julio de 2025" using the given month name.
func LongDate(t time.Time, monthName string) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), monthName, t.Year())
}
