package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/norway-alerts/pkg/model"

	_ "modernc.org/sqlite"
)

// DefaultNotificationLimit caps notification queries without an explicit limit.
const DefaultNotificationLimit = 100

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap.InstanceID == "" {
		return fmt.Errorf("save snapshot: empty instance id")
	}
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	alerts := snap.Alerts
	if alerts == nil {
		alerts = []model.Alert{}
	}
	data, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("encode snapshot alerts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, instance_id, alerts, fetched_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(instance_id) DO UPDATE SET
		   alerts = excluded.alerts,
		   fetched_at = excluded.fetched_at,
		   updated_at = excluded.updated_at`,
		snap.ID, snap.InstanceID, string(data), snap.FetchedAt.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *SQLite) LatestSnapshot(ctx context.Context, instanceID string) (*model.Snapshot, error) {
	var (
		snap model.Snapshot
		data string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, instance_id, alerts, fetched_at FROM snapshots WHERE instance_id = ?`, instanceID,
	).Scan(&snap.ID, &snap.InstanceID, &data, &snap.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for %q: %w", instanceID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &snap.Alerts); err != nil {
		return nil, fmt.Errorf("decode snapshot alerts: %w", err)
	}
	return &snap, nil
}

func (s *SQLite) SaveAlertStates(ctx context.Context, instanceID string, states []model.AlertState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save alert states: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM alert_states WHERE instance_id = ?`, instanceID); err != nil {
		return fmt.Errorf("clear alert states: %w", err)
	}
	for _, st := range states {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO alert_states (instance_id, warning_type, alert_id, level, region)
			 VALUES (?, ?, ?, ?, ?)`,
			instanceID, string(st.WarningType), st.AlertID, int(st.Level), st.Region,
		); err != nil {
			return fmt.Errorf("insert alert state: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit alert states: %w", err)
	}
	return nil
}

func (s *SQLite) LoadAlertStates(ctx context.Context, instanceID string) ([]model.AlertState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT warning_type, alert_id, level, region FROM alert_states
		 WHERE instance_id = ? ORDER BY warning_type, alert_id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load alert states: %w", err)
	}
	defer rows.Close()

	var states []model.AlertState
	for rows.Next() {
		var (
			st          model.AlertState
			warningType string
			level       int
		)
		if err := rows.Scan(&warningType, &st.AlertID, &level, &st.Region); err != nil {
			return nil, fmt.Errorf("scan alert state row: %w", err)
		}
		st.WarningType = model.WarningType(warningType)
		st.Level = model.Level(level)
		states = append(states, st)
	}
	return states, rows.Err()
}

func (s *SQLite) RecordNotification(ctx context.Context, n *model.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, instance_id, kind, warning_type, alert_id, level, region, title, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.InstanceID, string(n.Kind), string(n.WarningType), n.AlertID,
		int(n.Level), n.Region, n.Title, n.Message, n.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *SQLite) QueryNotifications(ctx context.Context, filter model.NotificationFilter) ([]model.Notification, error) {
	query := `SELECT id, instance_id, kind, warning_type, alert_id, level, region, title, message, created_at
		FROM notifications`
	where, args := buildWhereClause(filter)
	if where != "" {
		query += " WHERE " + where
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n                 model.Notification
			kind, warningType string
			level             int
		)
		if err := rows.Scan(&n.ID, &n.InstanceID, &kind, &warningType, &n.AlertID,
			&level, &n.Region, &n.Title, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		n.Kind = model.NotificationKind(kind)
		n.WarningType = model.WarningType(warningType)
		n.Level = model.Level(level)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// buildWhereClause constructs a SQL WHERE clause from a NotificationFilter.
func buildWhereClause(filter model.NotificationFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.InstanceID != "" {
		conditions = append(conditions, "instance_id = ?")
		args = append(args, filter.InstanceID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	return strings.Join(conditions, " AND "), args
}
