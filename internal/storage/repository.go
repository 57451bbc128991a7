// Package storage keeps the expense ledger in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"resoluciones/internal/core"
	"resoluciones/internal/ledger"
	"resoluciones/internal/log"
)

var _ ledger.Ledger = (*SQLiteRepository)(nil)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db     *sql.DB
	logger *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}

	r := &SQLiteRepository{
		db:     db,
		logger: log.OrNop(logger).WithComponent(log.ComponentStorage),
	}
	r.logger.Debug("ledger schema ready", log.FieldFile, dbPath, "schema_version", version)
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements ledger.ExpenseWriter. The category is registered as a
// side effect.
func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (fecha, categoria, descripcion, monto_ars) VALUES (?, ?, ?, ?)`,
		e.Date.Format(dateLayout), e.Category, e.Description, e.Amount.String())
	if err != nil {
		return "", fmt.Errorf("create expense: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, e.Category); err != nil {
		return "", fmt.Errorf("register category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit expense: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("read expense id: %w", err)
	}
	r.logger.InfoContext(ctx, "expense saved",
		"id", id,
		"category", e.Category,
		"amount", e.Amount.String(),
		"date", e.Date.Format(dateLayout))
	return strconv.FormatInt(id, 10), nil
}

// ListExpenses implements ledger.ExpenseLister.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, year int, month int) ([]core.Expense, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	prefix := fmt.Sprintf("%04d-%02d-", year, month)

	rows, err := r.db.QueryContext(ctx,
		`SELECT fecha, categoria, descripcion, monto_ars FROM expenses
		 WHERE fecha LIKE ? || '%' ORDER BY fecha, id`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var fecha, categoria, descripcion, monto string
		if err := rows.Scan(&fecha, &categoria, &descripcion, &monto); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		date, err := time.Parse(dateLayout, fecha)
		if err != nil {
			return nil, fmt.Errorf("parse expense date %q: %w", fecha, err)
		}
		amount, err := decimal.NewFromString(monto)
		if err != nil {
			return nil, fmt.Errorf("parse expense amount %q: %w", monto, err)
		}
		out = append(out, core.Expense{
			Date:        core.Date{Time: date},
			Category:    categoria,
			Description: descripcion,
			Amount:      amount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// Categories implements ledger.CategoryLister.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// SyncCategories registers categories, ignoring those already present.
func (r *SQLiteRepository) SyncCategories(ctx context.Context, categories []string) error {
	for _, name := range ledger.Dedupe(categories) {
		if _, err := r.db.ExecContext(ctx, `INSERT OR IGNORE INTO categories (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("sync category %s: %w", name, err)
		}
	}
	return nil
}
