// Package storage implements the persistence access layer on SQLite.
// All reads that cross entities (transaction + category) are explicit
// joins; there is no lazy relationship traversal.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"smartfinance/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates a record does not exist. Ownership-scoped lookups
// return it for foreign rows too, so absence and foreign ownership are
// indistinguishable to callers.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

type SQLiteRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath, enables foreign
// key enforcement, and runs pending migrations.
func Open(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Cascade deletes depend on foreign_keys being enabled per connection.
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---- users ----

// CreateUser inserts a new user row. A username or email collision maps
// to ErrAlreadyExists.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error) {
	u := core.User{Username: username, Email: email, PasswordHash: passwordHash}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)
		 RETURNING id, created_at`,
		username, email, passwordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, ErrAlreadyExists
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID, "username", u.Username)
	return u, nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

// GetUserByLogin fetches the user whose username or email matches the
// identifier.
func (r *SQLiteRepository) GetUserByLogin(ctx context.Context, identifier string) (core.User, error) {
	return r.scanUser(r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users
		 WHERE username = ? OR email = ? LIMIT 1`, identifier, identifier))
}

// DeleteUser removes a user. Owned transactions are removed by the
// ON DELETE CASCADE rule on transactions.user_id.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "User deleted", "id", id)
	return nil
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, ErrNotFound
		}
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// ---- categories ----

// ListCategories returns all categories, or only those of the given type
// when typ is non-empty. Categories are global, not user-scoped.
func (r *SQLiteRepository) ListCategories(ctx context.Context, typ core.CategoryType) ([]core.Category, error) {
	query := `SELECT id, name, type, icon, color FROM categories`
	args := []any{}
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, string(typ))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &c.Icon, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type, icon, color FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Type, &c.Icon, &c.Color)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, ErrNotFound
		}
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// SeedCategories inserts the given categories if the table is empty.
// A populated table makes this a no-op so redeploys don't duplicate rows.
func (r *SQLiteRepository) SeedCategories(ctx context.Context, categories []core.Category) error {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	if count > 0 {
		slog.DebugContext(ctx, "Categories already seeded", "count", count)
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer tx.Rollback()

	for _, c := range categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (name, type, icon, color) VALUES (?, ?, ?, ?)`,
			c.Name, string(c.Type), c.Icon, c.Color,
		); err != nil {
			return fmt.Errorf("insert category %q: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}

	slog.InfoContext(ctx, "Categories seeded", "count", len(categories))
	return nil
}

// ---- transactions ----

const transactionColumns = `
	t.id, t.amount_cents, t.date, t.description, t.user_id, t.category_id, t.created_at,
	c.id, c.name, c.type, c.icon, c.color`

// CreateTransaction persists a transaction for its owning user. The
// referenced category must exist; otherwise ErrNotFound is returned
// before anything is written.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	category, err := r.GetCategory(ctx, t.CategoryID)
	if err != nil {
		return core.Transaction{}, err
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO transactions (amount_cents, date, description, user_id, category_id)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING id, created_at`,
		t.Amount.Cents, t.Date.String(), t.Description, t.UserID, t.CategoryID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	t.Category = category
	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID,
		"user_id", t.UserID,
		"category_id", t.CategoryID,
		"amount_cents", t.Amount.Cents)
	return t, nil
}

// GetTransaction returns the transaction only when it exists and belongs
// to userID.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ? AND t.user_id = ?`, id, userID)
	return scanTransaction(row)
}

// ListTransactions returns userID's transactions, newest date first,
// narrowed by the filter.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ?`
	args := []any{userID}

	// ISO dates compare correctly as strings, so range filters are plain
	// string comparisons.
	if f.StartDate != nil {
		query += ` AND t.date >= ?`
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		query += ` AND t.date <= ?`
		args = append(args, f.EndDate.String())
	}
	if f.CategoryID != nil {
		query += ` AND t.category_id = ?`
		args = append(args, *f.CategoryID)
	}
	if f.Type != "" {
		query += ` AND c.type = ?`
		args = append(args, string(f.Type))
	}
	query += ` ORDER BY t.date DESC, t.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// UpdateTransaction applies the non-nil fields of patch to an owned
// transaction and returns the updated row. A missing or foreign row, or
// a patched category id that does not exist, yields ErrNotFound.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, userID, id int64, patch core.TransactionPatch) (core.Transaction, error) {
	if patch.CategoryID != nil {
		if _, err := r.GetCategory(ctx, *patch.CategoryID); err != nil {
			return core.Transaction{}, err
		}
	}
	if patch.IsEmpty() {
		return r.GetTransaction(ctx, userID, id)
	}

	sets := []string{}
	args := []any{}
	if patch.Amount != nil {
		sets = append(sets, "amount_cents = ?")
		args = append(args, patch.Amount.Cents)
	}
	if patch.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, patch.Date.String())
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *patch.CategoryID)
	}
	args = append(args, id, userID)

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`,
		args...)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Transaction{}, ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction updated", "id", id, "user_id", userID)
	return r.GetTransaction(ctx, userID, id)
}

// DeleteTransaction removes an owned transaction; ErrNotFound for a
// missing or foreign row.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	return nil
}

// CountTransactionsForUser returns the number of transactions owned by a
// user, regardless of filters.
func (r *SQLiteRepository) CountTransactionsForUser(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		dateStr string
	)
	err := row.Scan(
		&t.ID, &t.Amount.Cents, &dateStr, &t.Description, &t.UserID, &t.CategoryID, &t.CreatedAt,
		&t.Category.ID, &t.Category.Name, &t.Category.Type, &t.Category.Icon, &t.Category.Color,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Date, err = core.ParseDate(dateStr)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	return t, nil
}

// ---- dashboard aggregation ----

// Summary computes the income/expense totals and balance for one user.
// Users without transactions get zero totals, not an error.
func (r *SQLiteRepository) Summary(ctx context.Context, userID int64) (core.Summary, error) {
	var income, expenses int64
	err := r.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN c.type = 'income' THEN t.amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN c.type = 'expense' THEN t.amount_cents ELSE 0 END), 0)
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ?`, userID,
	).Scan(&income, &expenses)
	if err != nil {
		return core.Summary{}, fmt.Errorf("summary: %w", err)
	}

	totalIncome := core.Money{Cents: income}
	totalExpenses := core.Money{Cents: expenses}
	return core.Summary{
		TotalIncome:   totalIncome,
		TotalExpenses: totalExpenses,
		Balance:       totalIncome.Sub(totalExpenses),
	}, nil
}

// CategoryBreakdown sums one user's transactions per category, restricted
// to categories of the given type. Categories without matching rows are
// absent from the result.
func (r *SQLiteRepository) CategoryBreakdown(ctx context.Context, userID int64, typ core.CategoryType) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.name, c.type, c.color, SUM(t.amount_cents)
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND c.type = ?
		 GROUP BY c.id, c.name, c.color
		 ORDER BY SUM(t.amount_cents) DESC`,
		userID, string(typ))
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryAmount
	for rows.Next() {
		var (
			cat   core.Category
			cents int64
		)
		if err := rows.Scan(&cat.Name, &cat.Type, &cat.Color, &cents); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		out = append(out, core.CategoryAmount{
			Category: cat.Name,
			Amount:   core.Money{Cents: cents},
			Color:    cat.ChartColor(),
		})
	}
	return out, rows.Err()
}
