package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/operator/pkg/errtypes"
	"github.com/codeready-toolchain/operator/pkg/model"
)

// CreateProposal records a mutating tool call blocked by approval mode,
// immediately in status "validated" (spec.md §4.4: "tools that mutate ...
// create an ActionProposal (status validated)").
func (s *Store) CreateProposal(ctx context.Context, ticketID int64, actionName string, params map[string]any) (int64, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("store: marshal params: %w", err)
	}
	now := nowISO()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO action_proposals (ticket_id, action_name, params, status, proposed_at, validated_at)
		VALUES (?, ?, ?, 'validated', ?, ?)
	`, ticketID, actionName, string(paramsJSON), now, now)
	if err != nil {
		return 0, classifyErr(err)
	}
	return res.LastInsertId()
}

// ApproveProposal records approved_at/approved_by on a validated proposal
// and moves it to "executing". Only valid from status "validated".
func (s *Store) ApproveProposal(ctx context.Context, id int64, approvedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := requireStatus(ctx, tx, id, model.ProposalValidated); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE action_proposals SET approved_at = ?, approved_by = ?, status = ? WHERE id = ?
	`, nowISO(), approvedBy, model.ProposalExecuting, id); err != nil {
		return classifyErr(err)
	}
	return tx.Commit()
}

// RejectProposal transitions a validated proposal to cancelled.
func (s *Store) RejectProposal(ctx context.Context, id int64, rejectedBy, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := requireStatus(ctx, tx, id, model.ProposalValidated); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE action_proposals SET status = 'cancelled', rejected_at = ?, rejected_by = ?, rejection_reason = ? WHERE id = ?
	`, nowISO(), rejectedBy, reason, id); err != nil {
		return classifyErr(err)
	}
	return tx.Commit()
}

func requireStatus(ctx context.Context, tx *sql.Tx, id int64, want model.ProposalStatus) error {
	var status string
	if err := tx.QueryRowContext(ctx, `SELECT status FROM action_proposals WHERE id = ?`, id).Scan(&status); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: proposal %d not found", errtypes.ErrProposalStateConflict, id)
		}
		return classifyErr(err)
	}
	if model.ProposalStatus(status) != want {
		return fmt.Errorf("%w: proposal %d is %s, want %s", errtypes.ErrProposalStateConflict, id, status, want)
	}
	return nil
}

// GetProposal returns a proposal by id.
func (s *Store) GetProposal(ctx context.Context, id int64) (*model.ActionProposal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ticket_id, action_name, params, status, proposed_at, validated_at,
			approved_at, approved_by, rejected_at, rejected_by, rejection_reason
		FROM action_proposals WHERE id = ?
	`, id)
	return scanProposal(row)
}

func scanProposal(row rowScanner) (*model.ActionProposal, error) {
	var (
		p           model.ActionProposal
		paramsJSON  string
		status      string
		proposedAt  string
		validatedAt sql.NullString
		approvedAt  sql.NullString
		rejectedAt  sql.NullString
	)
	if err := row.Scan(&p.ID, &p.TicketID, &p.ActionName, &paramsJSON, &status, &proposedAt,
		&validatedAt, &approvedAt, &p.ApprovedBy, &rejectedAt, &p.RejectedBy, &p.RejectionReason); err != nil {
		return nil, err
	}
	p.Status = model.ProposalStatus(status)
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &p.Params); err != nil {
			return nil, fmt.Errorf("store: unmarshal params: %w", err)
		}
	}
	t, err := parseTime(proposedAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse proposed_at: %w", err)
	}
	p.ProposedAt = t
	if validatedAt.Valid {
		v, err := parseTime(validatedAt.String)
		if err != nil {
			return nil, err
		}
		p.ValidatedAt = &v
	}
	if approvedAt.Valid {
		v, err := parseTime(approvedAt.String)
		if err != nil {
			return nil, err
		}
		p.ApprovedAt = &v
	}
	if rejectedAt.Valid {
		v, err := parseTime(rejectedAt.String)
		if err != nil {
			return nil, err
		}
		p.RejectedAt = &v
	}
	return &p, nil
}
