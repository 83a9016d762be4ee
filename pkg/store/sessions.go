package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/operator/pkg/errtypes"
	"github.com/codeready-toolchain/operator/pkg/model"
)

// NewSessionID generates a session identifier in the spec's
// {iso-timestamp}-{random8} format.
func NewSessionID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405.000Z"), hex.EncodeToString(buf))
}

// StartSession creates a running AgentSession under sessionID (normally the
// same id just assigned to the ticket by ClaimOpenTicket) bound to
// ticketID.
func (s *Store) StartSession(ctx context.Context, sessionID string, ticketID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO agent_sessions (session_id, ticket_id, started_at, status)
		VALUES (?, ?, ?, 'running')
	`, sessionID, ticketID, nowISO())
	if err != nil {
		return classifyErr(err)
	}
	return nil
}

// AppendLog appends an audit entry to a session's log, assigning
// seq = max(seq)+1 atomically. Returns errtypes.ErrUnknownSession if no
// session with that id exists.
func (s *Store) AppendLog(ctx context.Context, sessionID string, entry model.AgentLogEntry) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM agent_sessions WHERE session_id = ?`, sessionID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%w: %s", errtypes.ErrUnknownSession, sessionID)
		}
		return 0, classifyErr(err)
	}

	var maxSeq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM agent_log_entries WHERE session_id = ?`, sessionID).Scan(&maxSeq); err != nil {
		return 0, classifyErr(err)
	}
	seq := int64(0)
	if maxSeq.Valid {
		seq = maxSeq.Int64 + 1
	}

	paramsJSON, err := json.Marshal(entry.ToolParams)
	if err != nil {
		return 0, fmt.Errorf("store: marshal tool_params: %w", err)
	}

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO agent_log_entries (session_id, seq, timestamp, entry_type, tool_name, tool_params, content, exit_code, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, seq, formatTime(ts), string(entry.EntryType), entry.ToolName, string(paramsJSON), entry.Content, entry.ExitCode, entry.DurationMS); err != nil {
		return 0, classifyErr(err)
	}

	return seq, tx.Commit()
}

// FinishSession transitions a running session to a terminal status and
// records the outcome summary. Returns errtypes.ErrSessionNotRunning if the
// session isn't currently running.
func (s *Store) FinishSession(ctx context.Context, sessionID string, status model.SessionStatus, summary string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM agent_sessions WHERE session_id = ?`, sessionID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", errtypes.ErrUnknownSession, sessionID)
		}
		return classifyErr(err)
	}
	if model.SessionStatus(current) != model.SessionRunning {
		return fmt.Errorf("%w: session %s is %s", errtypes.ErrSessionNotRunning, sessionID, current)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE agent_sessions SET status = ?, ended_at = ?, outcome_summary = ? WHERE session_id = ?
	`, string(status), nowISO(), summary, sessionID); err != nil {
		return classifyErr(err)
	}
	return tx.Commit()
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*model.AgentSession, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, ticket_id, started_at, ended_at, status, outcome_summary
		FROM agent_sessions WHERE session_id = ?
	`, sessionID)
	return scanSession(row)
}

// ListSessions returns sessions ordered by started_at, most recent first,
// optionally bounded by limit (0 = unbounded).
func (s *Store) ListSessions(ctx context.Context, limit int) ([]model.AgentSession, error) {
	query := `
		SELECT session_id, ticket_id, started_at, ended_at, status, outcome_summary
		FROM agent_sessions ORDER BY started_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []model.AgentSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// ListLogEntries returns every log entry for a session, ordered by seq.
func (s *Store) ListLogEntries(ctx context.Context, sessionID string) ([]model.AgentLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, timestamp, entry_type, tool_name, tool_params, content, exit_code, duration_ms
		FROM agent_log_entries WHERE session_id = ? ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

// QueryEntriesByTimerange returns tool_call entries with timestamp in
// [start, end], ordered by timestamp. Used by the evaluation harness to
// extract the commands issued during a trial's chaos window.
func (s *Store) QueryEntriesByTimerange(ctx context.Context, start, end time.Time) ([]model.AgentLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, timestamp, entry_type, tool_name, tool_params, content, exit_code, duration_ms
		FROM agent_log_entries
		WHERE timestamp >= ? AND timestamp <= ? AND entry_type = 'tool_call'
		ORDER BY timestamp ASC
	`, formatTime(start), formatTime(end))
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

func scanSession(row rowScanner) (*model.AgentSession, error) {
	var (
		sess      model.AgentSession
		startedAt string
		endedAt   sql.NullString
		status    string
	)
	if err := row.Scan(&sess.SessionID, &sess.TicketID, &startedAt, &endedAt, &status, &sess.OutcomeSummary); err != nil {
		return nil, err
	}
	sess.Status = model.SessionStatus(status)
	started, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse started_at: %w", err)
	}
	sess.StartedAt = started
	if endedAt.Valid {
		e, err := parseTime(endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("store: parse ended_at: %w", err)
		}
		sess.EndedAt = &e
	}
	return &sess, nil
}

func scanLogEntries(rows *sql.Rows) ([]model.AgentLogEntry, error) {
	var out []model.AgentLogEntry
	for rows.Next() {
		var (
			e          model.AgentLogEntry
			ts         string
			entryType  string
			paramsJSON string
			exitCode   sql.NullInt64
			durationMS sql.NullInt64
		)
		if err := rows.Scan(&e.SessionID, &e.Seq, &ts, &entryType, &e.ToolName, &paramsJSON, &e.Content, &exitCode, &durationMS); err != nil {
			return nil, err
		}
		e.EntryType = model.LogEntryType(entryType)
		t, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("store: parse timestamp: %w", err)
		}
		e.Timestamp = t
		if paramsJSON != "" {
			if err := json.Unmarshal([]byte(paramsJSON), &e.ToolParams); err != nil {
				return nil, fmt.Errorf("store: unmarshal tool_params: %w", err)
			}
		}
		if exitCode.Valid {
			v := int(exitCode.Int64)
			e.ExitCode = &v
		}
		if durationMS.Valid {
			v := durationMS.Int64
			e.DurationMS = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
