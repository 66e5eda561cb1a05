package events

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Action types recorded in the audit trail. One record is written for
// every mutating decision, whether executed or suppressed by dry-run.
const (
	ActionMove      = "move"
	ActionDelete    = "delete"
	ActionEnqueue   = "enqueue"
	ActionStar      = "star"
	ActionUnstar    = "unstar"
	ActionUnmonitor = "unmonitor"
)

// Action statuses.
const (
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusVetoed  = "vetoed"
)

// Action is one structured audit record.
type Action struct {
	ID        int64
	Action    string
	Source    string
	Target    string
	Status    string
	Detail    string
	DryRun    bool
	StartedAt time.Time
	Duration  time.Duration
}

// ActionLog persists the audit trail of mutating decisions. Dry-run and
// live runs write identical records apart from the dry_run flag, so their
// decision logs can be diffed.
type ActionLog struct {
	db     *sql.DB
	logger *slog.Logger
	dryRun bool
}

// NewActionLog creates a new action log.
func NewActionLog(db *sql.DB, logger *slog.Logger, dryRun bool) *ActionLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActionLog{db: db, logger: logger, dryRun: dryRun}
}

// DryRun reports whether this log belongs to a dry run.
func (l *ActionLog) DryRun() bool { return l.dryRun }

// Record persists one action record and mirrors it to the logger.
func (l *ActionLog) Record(a Action) error {
	if a.StartedAt.IsZero() {
		a.StartedAt = time.Now()
	}
	a.DryRun = l.dryRun

	l.logger.Info("action",
		"action", a.Action,
		"source", a.Source,
		"target", a.Target,
		"status", a.Status,
		"dry_run", a.DryRun,
	)

	_, err := l.db.Exec(`
		INSERT INTO actions (action, source, target, status, detail, dry_run, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Action, a.Source, a.Target, a.Status, a.Detail, a.DryRun, a.StartedAt, a.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// Since returns all actions recorded since the given time, oldest first.
func (l *ActionLog) Since(t time.Time) ([]Action, error) {
	rows, err := l.db.Query(`
		SELECT id, action, source, target, status, detail, dry_run, started_at, duration_ms
		FROM actions
		WHERE started_at >= ?
		ORDER BY id ASC`,
		t,
	)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var a Action
		var ms int64
		if err := rows.Scan(&a.ID, &a.Action, &a.Source, &a.Target, &a.Status, &a.Detail, &a.DryRun, &a.StartedAt, &ms); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Duration = time.Duration(ms) * time.Millisecond
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// Prune removes action records older than the given duration.
func (l *ActionLog) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := l.db.Exec(`DELETE FROM actions WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune actions: %w", err)
	}
	return result.RowsAffected()
}
