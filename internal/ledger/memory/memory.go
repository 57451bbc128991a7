// Package memory is an in-process ledger used for development and tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"resoluciones/internal/core"
	"resoluciones/internal/ledger"
)

var _ ledger.Ledger = (*Store)(nil)

// DefaultCategories seed a store created without a seed file.
var DefaultCategories = []string{"Transporte", "Comida", "Materiales", "Servicios"}

type Store struct {
	mu    sync.Mutex
	cats  []string
	items []core.Expense
}

func New(cats []string) *Store {
	return &Store{cats: ledger.Dedupe(cats)}
}

// NewFromFile seeds categories from base/seed_categories.txt, one per line.
func NewFromFile(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	return New(cats)
}

// Append stores the expense and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// ListExpenses returns the expenses dated in the given month, in insertion
// order.
func (s *Store) ListExpenses(_ context.Context, year int, month int) ([]core.Expense, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.items {
		if e.Date.Year() == year && int(e.Date.Month()) == month {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) Categories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cats...), nil
}

func readLines(path string) []string {
	// #nosec G304 -- seed path comes from configuration.
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, strings.TrimSpace(sc.Text()))
	}
	return ledger.Dedupe(out)
}
