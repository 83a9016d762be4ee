package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeready-toolchain/operator/pkg/errtypes"
	"github.com/codeready-toolchain/operator/pkg/model"
)

// OpenTicket implements the dedup-on-open rule of spec.md §4.1: if a ticket
// with the same (invariant_name, subject_name, violation_key) already has
// status open or in_progress, its id is returned unchanged and no row is
// created. Otherwise a new ticket is inserted with status "open".
func (s *Store) OpenTicket(ctx context.Context, invariantName, subjectName, violationKey string, severity model.Severity, details map[string]any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM tickets
		WHERE invariant_name = ? AND subject_name = ? AND violation_key = ?
		AND status IN ('open', 'in_progress')
		LIMIT 1
	`, invariantName, subjectName, violationKey).Scan(&existing)
	switch {
	case err == nil:
		return existing, tx.Commit()
	case err != sql.ErrNoRows:
		return 0, classifyErr(err)
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return 0, fmt.Errorf("store: marshal violation_details: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO tickets (invariant_name, subject_name, violation_key, severity, status, opened_at, violation_details)
		VALUES (?, ?, ?, ?, 'open', ?, ?)
	`, invariantName, subjectName, violationKey, string(severity), nowISO(), string(detailsJSON))
	if err != nil {
		return 0, classifyErr(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// ClaimOpenTicket atomically transitions the oldest open ticket to
// in_progress and assigns it to sessionID. Returns (nil, nil) if no open
// ticket exists.
func (s *Store) ClaimOpenTicket(ctx context.Context, sessionID string) (*model.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, invariant_name, subject_name, violation_key, severity, status,
			opened_at, resolved_at, violation_details, diagnosis, assigned_session_id
		FROM tickets WHERE status = 'open' ORDER BY opened_at ASC LIMIT 1
	`)
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, tx.Commit()
	}
	if err != nil {
		return nil, classifyErr(err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tickets SET status = 'in_progress', assigned_session_id = ? WHERE id = ?
	`, sessionID, t.ID); err != nil {
		return nil, classifyErr(err)
	}
	t.Status = model.TicketInProgress
	t.AssignedSession = sessionID

	return t, tx.Commit()
}

// ResolveTicket transitions a ticket to resolved. Returns
// errtypes.ErrTicketStateConflict if the ticket is already terminal.
func (s *Store) ResolveTicket(ctx context.Context, id int64, summary string) error {
	return s.terminalTransition(ctx, id, model.TicketResolved, summary)
}

// EscalateTicket transitions a ticket to escalated. Returns
// errtypes.ErrTicketStateConflict if the ticket is already terminal.
func (s *Store) EscalateTicket(ctx context.Context, id int64, reason string) error {
	return s.terminalTransition(ctx, id, model.TicketEscalated, reason)
}

func (s *Store) terminalTransition(ctx context.Context, id int64, target model.TicketStatus, note string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM tickets WHERE id = ?`, id).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: ticket %d not found", errtypes.ErrTicketStateConflict, id)
		}
		return classifyErr(err)
	}
	if model.TicketStatus(status).IsTerminal() {
		return fmt.Errorf("%w: ticket %d already %s", errtypes.ErrTicketStateConflict, id, status)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tickets SET status = ?, resolved_at = ?, diagnosis = ? WHERE id = ?
	`, string(target), nowISO(), note, id); err != nil {
		return classifyErr(err)
	}
	return tx.Commit()
}

// TicketFilter narrows ListTickets by status; an empty Status lists every
// ticket.
type TicketFilter struct {
	Status model.TicketStatus
	Limit  int
}

// ListTickets returns tickets matching filter, ordered by opened_at.
func (s *Store) ListTickets(ctx context.Context, filter TicketFilter) ([]model.Ticket, error) {
	query := `
		SELECT id, invariant_name, subject_name, violation_key, severity, status,
			opened_at, resolved_at, violation_details, diagnosis, assigned_session_id
		FROM tickets`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY opened_at ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []model.Ticket
	for rows.Next() {
		t, err := scanTicketRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// FindTicketOpenedSince returns the oldest ticket for subjectName opened at
// or after since, used by the evaluation harness's DETECT_WAIT phase to
// find the ticket a chaos injection produced. Returns (nil, nil) if none
// has appeared yet.
func (s *Store) FindTicketOpenedSince(ctx context.Context, subjectName string, since time.Time) (*model.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, invariant_name, subject_name, violation_key, severity, status,
			opened_at, resolved_at, violation_details, diagnosis, assigned_session_id
		FROM tickets WHERE subject_name = ? AND opened_at >= ? ORDER BY opened_at ASC LIMIT 1
	`, subjectName, formatTime(since))
	t, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classifyErr(err)
	}
	return t, nil
}

// GetTicket returns a single ticket by id.
func (s *Store) GetTicket(ctx context.Context, id int64) (*model.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, invariant_name, subject_name, violation_key, severity, status,
			opened_at, resolved_at, violation_details, diagnosis, assigned_session_id
		FROM tickets WHERE id = ?
	`, id)
	return scanTicket(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*model.Ticket, error) {
	return scanTicketCommon(row)
}

func scanTicketRows(rows *sql.Rows) (*model.Ticket, error) {
	return scanTicketCommon(rows)
}

func scanTicketCommon(row rowScanner) (*model.Ticket, error) {
	var (
		t            model.Ticket
		severity     string
		status       string
		openedAt     string
		resolvedAt   sql.NullString
		detailsJSON  string
	)
	if err := row.Scan(&t.ID, &t.InvariantName, &t.SubjectName, &t.ViolationKey,
		&severity, &status, &openedAt, &resolvedAt, &detailsJSON, &t.Diagnosis, &t.AssignedSession); err != nil {
		return nil, err
	}
	t.Severity = model.Severity(severity)
	t.Status = model.TicketStatus(status)
	opened, err := parseTime(openedAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse opened_at: %w", err)
	}
	t.OpenedAt = opened
	if resolvedAt.Valid {
		r, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, fmt.Errorf("store: parse resolved_at: %w", err)
		}
		t.ResolvedAt = &r
	}
	if detailsJSON != "" {
		if err := json.Unmarshal([]byte(detailsJSON), &t.ViolationDetails); err != nil {
			return nil, fmt.Errorf("store: unmarshal violation_details: %w", err)
		}
	}
	return &t, nil
}
