// Package sqlstore keeps account records in a SQL database. SQLite is the
// default backend; PostgreSQL is available through the pgx driver.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"blikterminal/internal/server/models"
	"blikterminal/internal/server/repository"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

type dialect struct {
	schema []string
	rebind func(string) string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id INTEGER PRIMARY KEY,
				login TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				balance TEXT NOT NULL,
				active_code TEXT NOT NULL DEFAULT '',
				code_expiry INTEGER NOT NULL DEFAULT 0,
				expired_code TEXT NOT NULL DEFAULT '',
				expired_at INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS accounts_active_code ON accounts(active_code) WHERE active_code <> ''`,
			`CREATE INDEX IF NOT EXISTS accounts_expired_code ON accounts(expired_code)`,
		},
		rebind: func(q string) string { return q },
	},
	DriverPostgres: {
		schema: []string{
			`CREATE TABLE IF NOT EXISTS accounts (
				id BIGINT PRIMARY KEY,
				login TEXT UNIQUE NOT NULL,
				password_hash TEXT NOT NULL,
				balance NUMERIC(18,2) NOT NULL,
				active_code TEXT NOT NULL DEFAULT '',
				code_expiry BIGINT NOT NULL DEFAULT 0,
				expired_code TEXT NOT NULL DEFAULT '',
				expired_at BIGINT NOT NULL DEFAULT 0
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS accounts_active_code ON accounts(active_code) WHERE active_code <> ''`,
			`CREATE INDEX IF NOT EXISTS accounts_expired_code ON accounts(expired_code)`,
		},
		rebind: numberedPlaceholders,
	},
}

// numberedPlaceholders rewrites ? placeholders into $1, $2, ...
func numberedPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const accountColumns = `id, login, password_hash, balance, active_code, code_expiry, expired_code`

type Store struct {
	db      *sql.DB
	dialect dialect
}

// New opens the database with driver ("sqlite" or "pgx") and makes sure the
// schema exists.
func New(driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One connection: SQLite serializes writers anyway and a shared
		// in-memory database must not see table locks between connections.
		db.SetMaxOpenConns(1)
	}
	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Login, &a.PasswordHash, &a.Balance, &a.ActiveCode, &a.CodeExpiry, &a.ExpiredCode)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, repository.ErrNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	return a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a models.Account) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO accounts(`+accountColumns+`) VALUES(?,?,?,?,?,?,?)`),
		a.ID, a.Login, a.PasswordHash, a.Balance, a.ActiveCode, a.CodeExpiry, a.ExpiredCode)
	return err
}

func (s *Store) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

func (s *Store) GetAccount(ctx context.Context, id int64) (models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`), id))
}

func (s *Store) GetAccountByLogin(ctx context.Context, login string) (models.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM accounts WHERE login = ?`), login))
}

// GetAccountByCode looks an account up by its live code. The partial unique
// index on active_code keeps this to a single row.
func (s *Store) GetAccountByCode(ctx context.Context, code string) (models.Account, error) {
	if code == "" {
		return models.Account{}, repository.ErrNotFound
	}
	return scanAccount(s.db.QueryRowContext(ctx, s.q(`SELECT `+accountColumns+` FROM accounts WHERE active_code = ?`), code))
}

// HasExpiredCode reports whether code was cleared from some account because
// it expired and has not been replaced by a fresh code since.
func (s *Store) HasExpiredCode(ctx context.Context, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	var n int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM accounts WHERE expired_code = ?`), code).Scan(&n)
	return n > 0, err
}

func (s *Store) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE accounts SET balance = ? WHERE id = ?`), balance, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetCode replaces the account's code and expiry in one write. An empty code
// with zero expiry clears it. The account's expired-code marker is dropped,
// and so is any other account's marker for the same digits.
func (s *Store) SetCode(ctx context.Context, id int64, code string, expiry int64) error {
	if (code == "") != (expiry == 0) {
		return fmt.Errorf("code and expiry must be set together")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if code != "" {
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE accounts SET expired_code = '', expired_at = 0 WHERE expired_code = ? AND id <> ?`), code, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, s.q(`UPDATE accounts SET active_code = ?, code_expiry = ?, expired_code = '', expired_at = 0 WHERE id = ?`), code, expiry, id)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrCodeTaken
		}
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// ExpireCode clears the live code of one account, keeping it as the
// expired-code marker stamped with now. It is a no-op when the account holds
// no code.
func (s *Store) ExpireCode(ctx context.Context, id int64, now int64) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE accounts SET expired_code = active_code, expired_at = ?, active_code = '', code_expiry = 0 WHERE id = ? AND active_code <> ''`), now, id)
	return err
}

// SweepExpired expires every code whose window ended before now.
func (s *Store) SweepExpired(ctx context.Context, now int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE accounts SET expired_code = active_code, expired_at = ?, active_code = '', code_expiry = 0 WHERE active_code <> '' AND code_expiry < ?`), now, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ForgetExpired drops expired-code markers set before the given time, after
// which those digits answer as unknown.
func (s *Store) ForgetExpired(ctx context.Context, before int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE accounts SET expired_code = '', expired_at = 0 WHERE expired_code <> '' AND expired_at < ?`), before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
