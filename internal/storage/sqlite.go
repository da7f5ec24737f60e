package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS tasks (
	position INTEGER PRIMARY KEY,
	id       TEXT NOT NULL,
	body     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	position INTEGER PRIMARY KEY,
	id       TEXT NOT NULL,
	body     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
	collection TEXT PRIMARY KEY,
	saved_at   DATETIME NOT NULL
);
`

// SQLiteGateway stores each snapshot record as a JSON row, keeping the
// collection order in a position column.
type SQLiteGateway struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteGateway opens (or creates) a SQLite database at dbPath and ensures
// the schema exists. The caller is responsible for calling Close.
func NewSQLiteGateway(dbPath string, logger *slog.Logger) (*SQLiteGateway, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // prevent SQLITE_BUSY
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteGateway{db: db, logger: logger}, nil
}

// Close releases the underlying database connection.
func (g *SQLiteGateway) Close() error { return g.db.Close() }

// LoadTasks returns the stored tasks. A collection that was never saved, or
// cannot be read, yields the default snapshot.
func (g *SQLiteGateway) LoadTasks(ctx context.Context) ([]model.Task, error) {
	rows, saved, err := g.load(ctx, "tasks")
	if err == nil && saved {
		tasks := make([]model.Task, 0, len(rows))
		for _, body := range rows {
			var r taskRecord
			if err = json.Unmarshal(body, &r); err != nil {
				break
			}
			tasks = append(tasks, fromTaskRecord(r))
		}
		if err == nil {
			return tasks, nil
		}
	}
	if err != nil {
		g.logger.WarnContext(ctx, "unreadable task snapshot, using defaults", slog.Any("error", err))
	}

	tasks := DefaultTasks()
	if err := g.SaveTasks(ctx, tasks); err != nil {
		g.logger.WarnContext(ctx, "failed to write default task snapshot", slog.Any("error", err))
	}
	return tasks, nil
}

// SaveTasks replaces the task collection in one transaction.
func (g *SQLiteGateway) SaveTasks(ctx context.Context, tasks []model.Task) error {
	bodies := make([]row, 0, len(tasks))
	for _, t := range tasks {
		b, err := json.Marshal(toTaskRecord(t))
		if err != nil {
			return fmt.Errorf("encode task %s: %w", t.ID, err)
		}
		bodies = append(bodies, row{id: t.ID, body: b})
	}
	return g.replace(ctx, "tasks", bodies)
}

// LoadUsers returns the stored users, or none if they cannot be read.
func (g *SQLiteGateway) LoadUsers(ctx context.Context) ([]model.User, error) {
	rows, _, err := g.load(ctx, "users")
	users := make([]model.User, 0, len(rows))
	if err == nil {
		for _, body := range rows {
			var r userRecord
			if err = json.Unmarshal(body, &r); err != nil {
				break
			}
			users = append(users, fromUserRecord(r))
		}
	}
	if err != nil {
		g.logger.WarnContext(ctx, "unreadable user snapshot, starting empty", slog.Any("error", err))
		return []model.User{}, nil
	}
	return users, nil
}

// SaveUsers replaces the user collection in one transaction.
func (g *SQLiteGateway) SaveUsers(ctx context.Context, users []model.User) error {
	bodies := make([]row, 0, len(users))
	for _, u := range users {
		b, err := json.Marshal(toUserRecord(u))
		if err != nil {
			return fmt.Errorf("encode user %s: %w", u.ID, err)
		}
		bodies = append(bodies, row{id: u.ID, body: b})
	}
	return g.replace(ctx, "users", bodies)
}

type row struct {
	id   string
	body []byte
}

// load returns the JSON bodies of a collection in position order and whether
// the collection has ever been saved.
func (g *SQLiteGateway) load(ctx context.Context, table string) ([][]byte, bool, error) {
	var savedAt time.Time
	err := g.db.QueryRowContext(ctx, `SELECT saved_at FROM snapshots WHERE collection = ?`, table).Scan(&savedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot marker: %w", err)
	}

	rows, err := g.db.QueryContext(ctx, `SELECT body FROM `+table+` ORDER BY position ASC`)
	if err != nil {
		return nil, true, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var bodies [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, true, err
		}
		bodies = append(bodies, []byte(body))
	}
	return bodies, true, rows.Err()
}

func (g *SQLiteGateway) replace(ctx context.Context, table string, rows []row) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+table+` (id, position, body) VALUES (?, ?, ?)`,
			r.id, i, string(r.body),
		); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (collection, saved_at) VALUES (?, ?)
		 ON CONFLICT(collection) DO UPDATE SET saved_at = excluded.saved_at`,
		table, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("mark %s snapshot: %w", table, err)
	}
	return tx.Commit()
}
