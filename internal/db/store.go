package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/pulse/internal/events"
	"github.com/energizer-project/pulse/internal/util"
)

// Store persists the latest host variables and the alert history.
type Store struct {
	db     *Database
	logger zerolog.Logger
	now    func() time.Time
}

// Alert is one stored lifecycle alert.
type Alert struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	Source       string          `json:"source"`
	Message      string          `json:"message"`
	Payload      json.RawMessage `json:"payload"`
	Acknowledged bool            `json:"acknowledged"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewStore opens the database at dbPath and migrates its schema.
func NewStore(dbPath string) (*Store, error) {
	database, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:     database,
		logger: util.ComponentLogger("store"),
		now:    time.Now,
	}

	if err := s.migrate(context.Background()); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS variables (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			acknowledged INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(type);
		CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
	`

	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}

	s.logger.Debug().Msg("database schema migrated")
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetVariables upserts every variable in vars in one transaction. Values
// are stored as JSON.
func (s *Store) SetVariables(ctx context.Context, vars events.Variables) error {
	now := s.now().UnixMilli()
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO variables (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare variable upsert: %w", err)
		}
		defer stmt.Close()

		for k, v := range vars {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to encode variable %s: %w", k, err)
			}
			if _, err := stmt.ExecContext(ctx, k, string(data), now); err != nil {
				return fmt.Errorf("failed to store variable %s: %w", k, err)
			}
		}
		return nil
	})
}

// Variables returns every stored variable. Numbers decode as float64.
func (s *Store) Variables(ctx context.Context) (events.Variables, error) {
	rows, err := s.db.Query(ctx, "SELECT key, value FROM variables")
	if err != nil {
		return nil, fmt.Errorf("failed to query variables: %w", err)
	}
	defer rows.Close()

	vars := make(events.Variables)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan variable: %w", err)
		}
		var v interface{}
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("skipping undecodable variable")
			continue
		}
		vars[key] = v
	}
	return vars, rows.Err()
}

// RecordAlert stores one lifecycle event and returns its id.
func (s *Store) RecordAlert(ctx context.Context, e events.Event) (int64, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode alert payload: %w", err)
	}

	res, err := s.db.Exec(ctx,
		"INSERT INTO alerts (type, source, message, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		string(e.Type), e.Source, e.Summary(), string(payload), s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}
	return res.LastInsertId()
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, type, source, message, payload, acknowledged, created_at
		FROM alerts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]Alert, 0, limit)
	for rows.Next() {
		var a Alert
		var payload string
		var created int64
		if err := rows.Scan(&a.ID, &a.Type, &a.Source, &a.Message, &payload, &a.Acknowledged, &created); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Payload = json.RawMessage(payload)
		a.CreatedAt = time.UnixMilli(created)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// AcknowledgeAlert marks an alert as acknowledged.
func (s *Store) AcknowledgeAlert(ctx context.Context, id int64) error {
	res, err := s.db.Exec(ctx, "UPDATE alerts SET acknowledged = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("alert %d not found", id)
	}
	return nil
}

// PruneAlerts deletes alerts created before the cutoff and returns how
// many were removed.
func (s *Store) PruneAlerts(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.Exec(ctx, "DELETE FROM alerts WHERE created_at < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune alerts: %w", err)
	}
	return res.RowsAffected()
}

// AlertCounts returns the number of alerts per type created at or after since.
func (s *Store) AlertCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.Query(ctx,
		"SELECT type, COUNT(*) FROM alerts WHERE created_at >= ? GROUP BY type", since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan alert count: %w", err)
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}
