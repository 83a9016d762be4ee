package store

import (
	"database/sql"
	"strings"
)

// schemaStatements are the CREATE TABLE IF NOT EXISTS statements run
// unconditionally on every store open (spec.md §4.1 "Schema initialisation
// discipline"). Order matters only for readability; sqlite has no foreign
// key constraints enforced across these tables so there is no dependency
// ordering requirement.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invariant_name TEXT NOT NULL,
		subject_name TEXT NOT NULL,
		violation_key TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		opened_at TEXT NOT NULL,
		resolved_at TEXT,
		violation_details TEXT NOT NULL DEFAULT '{}',
		diagnosis TEXT NOT NULL DEFAULT '',
		assigned_session_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_dedup
		ON tickets(invariant_name, subject_name, status, violation_key)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_opened_at ON tickets(opened_at)`,

	`CREATE TABLE IF NOT EXISTS agent_sessions (
		session_id TEXT PRIMARY KEY,
		ticket_id INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		status TEXT NOT NULL,
		outcome_summary TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_sessions_ticket ON agent_sessions(ticket_id)`,

	`CREATE TABLE IF NOT EXISTS agent_log_entries (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		tool_name TEXT NOT NULL DEFAULT '',
		tool_params TEXT NOT NULL DEFAULT '{}',
		content TEXT NOT NULL DEFAULT '',
		exit_code INTEGER,
		duration_ms INTEGER,
		PRIMARY KEY (session_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agent_log_entries_timestamp ON agent_log_entries(timestamp)`,

	`CREATE TABLE IF NOT EXISTS action_proposals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_id INTEGER NOT NULL,
		action_name TEXT NOT NULL,
		params TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		proposed_at TEXT NOT NULL,
		validated_at TEXT,
		approved_at TEXT,
		approved_by TEXT NOT NULL DEFAULT '',
		rejected_at TEXT,
		rejected_by TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS campaigns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		subject_name TEXT NOT NULL,
		chaos_type TEXT NOT NULL,
		variant TEXT NOT NULL DEFAULT '',
		is_baseline INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		cooldown_seconds INTEGER NOT NULL DEFAULT 0,
		detect_timeout_seconds INTEGER NOT NULL DEFAULT 60,
		resolve_timeout_seconds INTEGER NOT NULL DEFAULT 180,
		parallelism INTEGER NOT NULL DEFAULT 1
	)`,

	`CREATE TABLE IF NOT EXISTS trials (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign_id INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		chaos_injected_at TEXT NOT NULL,
		chaos_metadata TEXT NOT NULL DEFAULT '{}',
		ticket_created_at TEXT,
		resolved_at TEXT,
		ended_at TEXT NOT NULL,
		outcome TEXT NOT NULL,
		initial_state TEXT NOT NULL DEFAULT '{}',
		final_state TEXT NOT NULL DEFAULT '{}',
		commands_json TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trials_campaign ON trials(campaign_id)`,

	`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`,
}

// additiveColumns lists columns added after the initial schema, applied via
// best-effort ALTER TABLE on every open. This is how the store evolves
// without a migration framework: attempt the ADD COLUMN, swallow the
// "duplicate column name" failure modernc.org/sqlite returns when it
// already exists (spec.md §4.1 "Schema evolution").
var additiveColumns = []struct {
	table, column, ddl string
}{
	// Reserved for future additive columns. None needed yet beyond the
	// initial schema above; kept as a worked example of the pattern so a
	// future column addition doesn't require a new migration mechanism.
}

func initSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	for _, c := range additiveColumns {
		ddl := "ALTER TABLE " + c.table + " ADD COLUMN " + c.ddl
		if _, err := db.Exec(ddl); err != nil {
			if isDuplicateColumnErr(err) {
				continue
			}
			return err
		}
	}
	return nil
}

// isDuplicateColumnErr reports whether err is sqlite's "duplicate column
// name" failure, the only ADD COLUMN error this store swallows.
func isDuplicateColumnErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate column name")
}
