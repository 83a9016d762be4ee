package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/operator/pkg/model"
)

// CreateCampaign inserts a new Campaign and returns its id.
func (s *Store) CreateCampaign(ctx context.Context, c model.Campaign) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO campaigns (name, subject_name, chaos_type, variant, is_baseline, created_at,
			cooldown_seconds, detect_timeout_seconds, resolve_timeout_seconds, parallelism)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.SubjectName, c.ChaosType, c.Variant, boolToInt(c.IsBaseline), nowISO(),
		c.CooldownSeconds, c.DetectTimeoutSeconds, c.ResolveTimeoutSeconds, c.Parallelism)
	if err != nil {
		return 0, classifyErr(err)
	}
	return res.LastInsertId()
}

// GetCampaign returns a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id int64) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, subject_name, chaos_type, variant, is_baseline, created_at,
			cooldown_seconds, detect_timeout_seconds, resolve_timeout_seconds, parallelism
		FROM campaigns WHERE id = ?
	`, id)
	return scanCampaign(row)
}

// ListCampaigns returns campaigns ordered by created_at, most recent first.
func (s *Store) ListCampaigns(ctx context.Context, limit int) ([]model.Campaign, error) {
	query := `
		SELECT id, name, subject_name, chaos_type, variant, is_baseline, created_at,
			cooldown_seconds, detect_timeout_seconds, resolve_timeout_seconds, parallelism
		FROM campaigns ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c          model.Campaign
		isBaseline int
		createdAt  string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.SubjectName, &c.ChaosType, &c.Variant, &isBaseline, &createdAt,
		&c.CooldownSeconds, &c.DetectTimeoutSeconds, &c.ResolveTimeoutSeconds, &c.Parallelism); err != nil {
		return nil, err
	}
	c.IsBaseline = isBaseline != 0
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("store: parse created_at: %w", err)
	}
	c.CreatedAt = t
	return &c, nil
}

// RecordTrial persists a completed trial and returns its id. Trials are
// write-once: never modified after ended_at.
func (s *Store) RecordTrial(ctx context.Context, t model.Trial) (int64, error) {
	meta, err := json.Marshal(t.ChaosMetadata)
	if err != nil {
		return 0, fmt.Errorf("store: marshal chaos_metadata: %w", err)
	}
	initial, err := json.Marshal(t.InitialState)
	if err != nil {
		return 0, fmt.Errorf("store: marshal initial_state: %w", err)
	}
	final, err := json.Marshal(t.FinalState)
	if err != nil {
		return 0, fmt.Errorf("store: marshal final_state: %w", err)
	}
	commands, err := json.Marshal(t.CommandsJSON)
	if err != nil {
		return 0, fmt.Errorf("store: marshal commands_json: %w", err)
	}

	var ticketCreatedAt, resolvedAt any
	if t.TicketCreatedAt != nil {
		ticketCreatedAt = formatTime(*t.TicketCreatedAt)
	}
	if t.ResolvedAt != nil {
		resolvedAt = formatTime(*t.ResolvedAt)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trials (campaign_id, started_at, chaos_injected_at, chaos_metadata,
			ticket_created_at, resolved_at, ended_at, outcome, initial_state, final_state, commands_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.CampaignID, formatTime(t.StartedAt), formatTime(t.ChaosInjectedAt), string(meta),
		ticketCreatedAt, resolvedAt, formatTime(t.EndedAt), string(t.Outcome), string(initial), string(final), string(commands))
	if err != nil {
		return 0, classifyErr(err)
	}
	return res.LastInsertId()
}

// GetTrial returns a trial by id.
func (s *Store) GetTrial(ctx context.Context, id int64) (*model.Trial, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, started_at, chaos_injected_at, chaos_metadata,
			ticket_created_at, resolved_at, ended_at, outcome, initial_state, final_state, commands_json
		FROM trials WHERE id = ?
	`, id)
	return scanTrial(row)
}

// ListTrialsForCampaign returns every trial belonging to campaignID,
// ordered by started_at.
func (s *Store) ListTrialsForCampaign(ctx context.Context, campaignID int64) ([]model.Trial, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, campaign_id, started_at, chaos_injected_at, chaos_metadata,
			ticket_created_at, resolved_at, ended_at, outcome, initial_state, final_state, commands_json
		FROM trials WHERE campaign_id = ? ORDER BY started_at ASC
	`, campaignID)
	if err != nil {
		return nil, classifyErr(err)
	}
	defer rows.Close()

	var out []model.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTrial(row rowScanner) (*model.Trial, error) {
	var (
		t               model.Trial
		startedAt       string
		chaosInjectedAt string
		metaJSON        string
		ticketCreatedAt sql.NullString
		resolvedAt      sql.NullString
		endedAt         string
		outcome         string
		initialJSON     string
		finalJSON       string
		commandsJSON    string
	)
	if err := row.Scan(&t.ID, &t.CampaignID, &startedAt, &chaosInjectedAt, &metaJSON,
		&ticketCreatedAt, &resolvedAt, &endedAt, &outcome, &initialJSON, &finalJSON, &commandsJSON); err != nil {
		return nil, err
	}
	t.Outcome = model.TrialOutcome(outcome)

	var err error
	if t.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if t.ChaosInjectedAt, err = parseTime(chaosInjectedAt); err != nil {
		return nil, err
	}
	if t.EndedAt, err = parseTime(endedAt); err != nil {
		return nil, err
	}
	if ticketCreatedAt.Valid {
		v, err := parseTime(ticketCreatedAt.String)
		if err != nil {
			return nil, err
		}
		t.TicketCreatedAt = &v
	}
	if resolvedAt.Valid {
		v, err := parseTime(resolvedAt.String)
		if err != nil {
			return nil, err
		}
		t.ResolvedAt = &v
	}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &t.ChaosMetadata); err != nil {
			return nil, err
		}
	}
	if initialJSON != "" {
		if err := json.Unmarshal([]byte(initialJSON), &t.InitialState); err != nil {
			return nil, err
		}
	}
	if finalJSON != "" {
		if err := json.Unmarshal([]byte(finalJSON), &t.FinalState); err != nil {
			return nil, err
		}
	}
	if commandsJSON != "" {
		if err := json.Unmarshal([]byte(commandsJSON), &t.CommandsJSON); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
