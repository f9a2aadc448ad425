package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"deadlinemaster/internal/domain"
)

const settingsKey = "notificationSettings"

// EnsureSchema creates tables if they don't exist.
func EnsureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA journal_mode=WAL;
CREATE TABLE IF NOT EXISTS assignments (
  id TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  title TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  due_date TEXT NOT NULL,
  priority TEXT NOT NULL CHECK(priority IN ('High','Medium','Low')) DEFAULT 'Medium',
  completed INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_assignments_position ON assignments(position);
CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS alert_history (
  id TEXT PRIMARY KEY,
  assignment_id TEXT NOT NULL DEFAULT '',
  threshold TEXT NOT NULL,
  heading TEXT NOT NULL,
  message TEXT NOT NULL,
  channel TEXT NOT NULL DEFAULT '',
  delivered INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT '',
  fired_at TEXT NOT NULL,
  delivered_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alert_history_fired ON alert_history(fired_at DESC);
`
	_, err := db.Exec(schema)
	return err
}

type SQLite struct{ db *sqlx.DB }

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// DB returns the underlying connection.
func (s *SQLite) DB() *sqlx.DB { return s.db }

func (s *SQLite) Close() error { return s.db.Close() }

type assignmentRow struct {
	ID          string `db:"id"`
	Position    int    `db:"position"`
	Title       string `db:"title"`
	Subject     string `db:"subject"`
	Description string `db:"description"`
	DueDate     string `db:"due_date"`
	Priority    string `db:"priority"`
	Completed   bool   `db:"completed"`
}

// Save replaces the stored collection in one transaction.
func (s *SQLite) Save(ctx context.Context, list []domain.Assignment) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM assignments`); err != nil {
		return err
	}
	for i, a := range list {
		row := assignmentRow{
			ID: a.ID, Position: i, Title: a.Title, Subject: a.Subject, Description: a.Description,
			DueDate: a.DueDate.Format(time.RFC3339Nano), Priority: string(a.Priority), Completed: a.Completed,
		}
		if _, err = tx.NamedExecContext(ctx, `
INSERT INTO assignments (id,position,title,subject,description,due_date,priority,completed)
VALUES (:id,:position,:title,:subject,:description,:due_date,:priority,:completed)`, row); err != nil {
			return fmt.Errorf("insert %s: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Load(ctx context.Context) []domain.Assignment {
	var rows []assignmentRow
	err := s.db.SelectContext(ctx, &rows, `
SELECT id,position,title,subject,description,due_date,priority,completed
FROM assignments ORDER BY position`)
	if err != nil {
		log.Error().Err(err).Msg("load assignments from sqlite, starting empty")
		return []domain.Assignment{}
	}

	out := make([]domain.Assignment, 0, len(rows))
	for _, r := range rows {
		due, err := domain.ParseDue(r.DueDate)
		if err != nil {
			log.Warn().Err(err).Str("assignment_id", r.ID).Msg("skipping assignment with bad due date")
			continue
		}
		out = append(out, domain.Assignment{
			ID: r.ID, Title: r.Title, Subject: r.Subject, Description: r.Description,
			DueDate: due, Priority: domain.Priority(r.Priority), Completed: r.Completed,
		})
	}
	return out
}

func (s *SQLite) LoadSettings(ctx context.Context) (domain.NotificationSettings, bool, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT value FROM settings WHERE key=?`, settingsKey)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotificationSettings{}, false, nil
	}
	if err != nil {
		return domain.NotificationSettings{}, false, err
	}
	var ns domain.NotificationSettings
	if err := json.Unmarshal([]byte(raw), &ns); err != nil {
		return domain.NotificationSettings{}, true, fmt.Errorf("decode settings: %w", err)
	}
	return ns, true, nil
}

func (s *SQLite) SaveSettings(ctx context.Context, ns domain.NotificationSettings) error {
	data, err := json.Marshal(ns)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO settings (key,value,updated_at) VALUES (?,?,CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=CURRENT_TIMESTAMP`, settingsKey, string(data))
	return err
}

type alertRow struct {
	ID           string `db:"id"`
	AssignmentID string `db:"assignment_id"`
	Threshold    string `db:"threshold"`
	Heading      string `db:"heading"`
	Message      string `db:"message"`
	Channel      string `db:"channel"`
	Delivered    bool   `db:"delivered"`
	Error        string `db:"error"`
	FiredAt      string `db:"fired_at"`
	DeliveredAt  string `db:"delivered_at"`
}

func (s *SQLite) Record(ctx context.Context, r domain.AlertRecord) error {
	row := alertRow{
		ID: r.ID, AssignmentID: r.AssignmentID, Threshold: r.Threshold, Heading: r.Heading,
		Message: r.Message, Channel: r.Channel, Delivered: r.Delivered, Error: r.Error,
		FiredAt: historyTime(r.FiredAt), DeliveredAt: historyTime(r.DeliveredAt),
	}
	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO alert_history (id,assignment_id,threshold,heading,message,channel,delivered,error,fired_at,delivered_at)
VALUES (:id,:assignment_id,:threshold,:heading,:message,:channel,:delivered,:error,:fired_at,:delivered_at)`, row)
	return err
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]domain.AlertRecord, error) {
	var rows []alertRow
	if err := s.db.SelectContext(ctx, &rows, `
SELECT id,assignment_id,threshold,heading,message,channel,delivered,error,fired_at,delivered_at
FROM alert_history ORDER BY fired_at DESC, id DESC LIMIT ?`, limit); err != nil {
		return nil, err
	}
	out := make([]domain.AlertRecord, 0, len(rows))
	for _, r := range rows {
		fired, _ := time.Parse(historyLayout, r.FiredAt)
		delivered, _ := time.Parse(historyLayout, r.DeliveredAt)
		out = append(out, domain.AlertRecord{
			ID: r.ID, AssignmentID: r.AssignmentID, Threshold: r.Threshold, Heading: r.Heading,
			Message: r.Message, Channel: r.Channel, Delivered: r.Delivered, Error: r.Error,
			FiredAt: fired, DeliveredAt: delivered,
		})
	}
	return out, nil
}

// historyLayout is fixed width so that text order matches time order.
const historyLayout = "2006-01-02T15:04:05.000000000Z07:00"

func historyTime(t time.Time) string {
	return t.UTC().Format(historyLayout)
}
