package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"sheetexpense/internal/log"
)

// User is a signed-in Google account and its stored OAuth credentials.
type User struct {
	ID           int64
	GoogleID     string
	Email        string
	AccessToken  string
	RefreshToken string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserSpreadsheet maps (user, year) to a remote spreadsheet.
type UserSpreadsheet struct {
	ID            int64
	UserID        int64
	Year          int
	SpreadsheetID string
	CreatedAt     time.Time
}

// UserSheet maps (spreadsheet row, month) to a remote tab id.
type UserSheet struct {
	ID               int64
	SpreadsheetRowID int64
	Month            string
	SheetID          int64
	CreatedAt        time.Time
}

// Repository is the identifier cache. It never stores financial data.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// Open connects to DATABASE_URL, verifies the connection and applies migrations.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := openDB(dialect, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.InfoContext(ctx, "Database ready", log.FieldDialect, dialect)

	return &Repository{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks database connectivity for readiness probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Dialect reports which backend the repository talks to.
func (r *Repository) Dialect() Dialect {
	return r.dialect
}

func (r *Repository) q(query string) string {
	return rebind(r.dialect, query)
}

const userColumns = `id, google_id, email, access_token, refresh_token, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.GoogleID, &u.Email, &u.AccessToken, &u.RefreshToken, &u.CreatedAt, &u.UpdatedAt)
	return u, mapError(err)
}

// UpsertUser finds a user by Google id or creates it, storing fresh tokens.
// An empty refresh token keeps the one already on file, since Google only
// issues a refresh token on the first consent.
func (r *Repository) UpsertUser(ctx context.Context, googleID, email, accessToken, refreshToken string) (User, error) {
	now := r.now()
	row := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO users (google_id, email, access_token, refresh_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (google_id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = CASE WHEN excluded.refresh_token <> '' THEN excluded.refresh_token ELSE users.refresh_token END,
			updated_at = excluded.updated_at
		RETURNING `+userColumns),
		googleID, email, accessToken, refreshToken, now, now)
	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// GetUser loads a user by local id.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// UpdateTokens persists refreshed credentials. An empty refresh token
// leaves the stored one untouched.
func (r *Repository) UpdateTokens(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	res, err := r.db.ExecContext(ctx, r.q(`
		UPDATE users SET
			access_token = ?,
			refresh_token = CASE WHEN CAST(? AS TEXT) <> '' THEN CAST(? AS TEXT) ELSE refresh_token END,
			updated_at = ?
		WHERE id = ?`),
		accessToken, refreshToken, refreshToken, r.now(), userID)
	if err != nil {
		return fmt.Errorf("update tokens: %w", mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update tokens for user %d: %w", userID, ErrNotFound)
	}
	return nil
}

// ListUserIDs returns every known user id, for maintenance commands.
func (r *Repository) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const spreadsheetColumns = `id, user_id, year, spreadsheet_id, created_at`

func scanSpreadsheet(row interface{ Scan(...any) error }) (UserSpreadsheet, error) {
	var s UserSpreadsheet
	err := row.Scan(&s.ID, &s.UserID, &s.Year, &s.SpreadsheetID, &s.CreatedAt)
	return s, mapError(err)
}

// GetSpreadsheet looks up the cached spreadsheet for (user, year).
func (r *Repository) GetSpreadsheet(ctx context.Context, userID int64, year int) (UserSpreadsheet, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+spreadsheetColumns+` FROM user_spreadsheets WHERE user_id = ? AND year = ?`), userID, year)
	s, err := scanSpreadsheet(row)
	if err != nil {
		return UserSpreadsheet{}, fmt.Errorf("get spreadsheet %d/%d: %w", userID, year, err)
	}
	return s, nil
}

// CreateSpreadsheet records a new (user, year) mapping. A concurrent insert
// for the same pair fails with ErrConflict.
func (r *Repository) CreateSpreadsheet(ctx context.Context, userID int64, year int, spreadsheetID string) (UserSpreadsheet, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO user_spreadsheets (user_id, year, spreadsheet_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING `+spreadsheetColumns),
		userID, year, spreadsheetID, r.now())
	s, err := scanSpreadsheet(row)
	if err != nil {
		return UserSpreadsheet{}, fmt.Errorf("create spreadsheet %d/%d: %w", userID, year, err)
	}
	return s, nil
}

// ListSpreadsheets returns every cached year for a user.
func (r *Repository) ListSpreadsheets(ctx context.Context, userID int64) ([]UserSpreadsheet, error) {
	rows, err := r.db.QueryContext(ctx, r.q(`SELECT `+spreadsheetColumns+` FROM user_spreadsheets WHERE user_id = ? ORDER BY year`), userID)
	if err != nil {
		return nil, fmt.Errorf("list spreadsheets: %w", err)
	}
	defer rows.Close()
	var out []UserSpreadsheet
	for rows.Next() {
		s, err := scanSpreadsheet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan spreadsheet: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const sheetColumns = `id, spreadsheet_id, month, sheet_id, created_at`

func scanSheet(row interface{ Scan(...any) error }) (UserSheet, error) {
	var s UserSheet
	err := row.Scan(&s.ID, &s.SpreadsheetRowID, &s.Month, &s.SheetID, &s.CreatedAt)
	return s, mapError(err)
}

// GetSheet looks up the cached tab id for (spreadsheet row, month).
func (r *Repository) GetSheet(ctx context.Context, spreadsheetRowID int64, month string) (UserSheet, error) {
	row := r.db.QueryRowContext(ctx, r.q(`SELECT `+sheetColumns+` FROM user_sheets WHERE spreadsheet_id = ? AND month = ?`), spreadsheetRowID, month)
	s, err := scanSheet(row)
	if err != nil {
		return UserSheet{}, fmt.Errorf("get sheet %d/%s: %w", spreadsheetRowID, month, err)
	}
	return s, nil
}

// CreateSheet records a (spreadsheet row, month) mapping.
func (r *Repository) CreateSheet(ctx context.Context, spreadsheetRowID int64, month string, sheetID int64) (UserSheet, error) {
	row := r.db.QueryRowContext(ctx, r.q(`
		INSERT INTO user_sheets (spreadsheet_id, month, sheet_id, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING `+sheetColumns),
		spreadsheetRowID, month, sheetID, r.now())
	s, err := scanSheet(row)
	if err != nil {
		return UserSheet{}, fmt.Errorf("create sheet %d/%s: %w", spreadsheetRowID, month, err)
	}
	return s, nil
}

// DeleteSheet drops a stale mapping. Deleting a missing row is not an error.
func (r *Repository) DeleteSheet(ctx context.Context, spreadsheetRowID int64, month string) error {
	_, err := r.db.ExecContext(ctx, r.q(`DELETE FROM user_sheets WHERE spreadsheet_id = ? AND month = ?`), spreadsheetRowID, month)
	if err != nil {
		return fmt.Errorf("delete sheet %d/%s: %w", spreadsheetRowID, month, mapError(err))
	}
	return nil
}

// DeleteSpreadsheet drops the (user, year) mapping and its tab mappings
// after the remote spreadsheet was deleted. Only a row still pointing at
// spreadsheetID is removed, so a replacement written meanwhile survives. A
// missing row is not an error.
func (r *Repository) DeleteSpreadsheet(ctx context.Context, userID int64, year int, spreadsheetID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.q(`
		DELETE FROM user_sheets WHERE spreadsheet_id IN
			(SELECT id FROM user_spreadsheets WHERE user_id = ? AND year = ? AND spreadsheet_id = ?)`),
		userID, year, spreadsheetID); err != nil {
		return fmt.Errorf("delete sheets of %d/%d: %w", userID, year, mapError(err))
	}
	if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM user_spreadsheets WHERE user_id = ? AND year = ? AND spreadsheet_id = ?`),
		userID, year, spreadsheetID); err != nil {
		return fmt.Errorf("delete spreadsheet %d/%d: %w", userID, year, mapError(err))
	}
	return tx.Commit()
}

// IsNotFound reports whether err is a cache miss.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is a unique-constraint race.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
