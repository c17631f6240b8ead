package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"lamisys/internal/domain"
)

type AlarmRulesStore struct {
	pool *pgxpool.Pool
}

func NewAlarmRulesStore(pool *pgxpool.Pool) *AlarmRulesStore {
	return &AlarmRulesStore{pool: pool}
}

const alarmRuleColumns = `
	id, name, type, condition, value, recipients, active, created_by, created_at, updated_at
`

func scanAlarmRule(row rowScanner) (domain.AlarmRule, error) {
	var (
		r          domain.AlarmRule
		idUUID     pgtype.UUID
		cond       pgtype.Text
		value      pgtype.Int4
		recipients pgtype.FlatArray[string]
		createdBy  pgtype.UUID
	)
	err := row.Scan(
		&idUUID,
		&r.Name,
		&r.Type,
		&cond,
		&value,
		&recipients,
		&r.Active,
		&createdBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return domain.AlarmRule{}, err
	}

	r.ID = uuidOrEmpty(idUUID)
	r.Condition = textOrEmpty(cond)
	r.Value = flexInt(value)
	r.Recipients = domain.RecipientList(textArrayOrEmpty(recipients))
	r.CreatedBy = uuidOrEmpty(createdBy)
	return r, nil
}

func (s *AlarmRulesStore) CreateAlarmRule(ctx context.Context, r domain.AlarmRule) (domain.AlarmRule, error) {
	q := `
		INSERT INTO alarm_rules (name, type, condition, value, recipients, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + alarmRuleColumns

	created, err := scanAlarmRule(s.pool.QueryRow(ctx, q,
		r.Name,
		r.Type,
		nullIfEmpty(r.Condition),
		flexIntArg(r.Value),
		pgtype.FlatArray[string](r.Recipients.Normalized()),
		r.Active,
		r.CreatedBy,
	))
	if err != nil {
		return domain.AlarmRule{}, fmt.Errorf("create alarm rule: %w", err)
	}
	return created, nil
}

func (s *AlarmRulesStore) GetAlarmRule(ctx context.Context, id string) (domain.AlarmRule, error) {
	q := `SELECT ` + alarmRuleColumns + ` FROM alarm_rules WHERE id = $1`

	r, err := scanAlarmRule(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AlarmRule{}, domain.ErrNotFound
		}
		return domain.AlarmRule{}, fmt.Errorf("get alarm rule: %w", err)
	}
	return r, nil
}

func (s *AlarmRulesStore) ListAlarmRules(ctx context.Context) ([]domain.AlarmRule, error) {
	q := `SELECT ` + alarmRuleColumns + ` FROM alarm_rules ORDER BY created_at DESC`
	return s.listRules(ctx, q)
}

func (s *AlarmRulesStore) ListActiveAlarmRules(ctx context.Context) ([]domain.AlarmRule, error) {
	q := `SELECT ` + alarmRuleColumns + ` FROM alarm_rules WHERE active ORDER BY created_at`
	return s.listRules(ctx, q)
}

func (s *AlarmRulesStore) listRules(ctx context.Context, q string) ([]domain.AlarmRule, error) {
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list alarm rules: %w", err)
	}
	defer rows.Close()

	var out []domain.AlarmRule
	for rows.Next() {
		r, err := scanAlarmRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alarm rule: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alarm rules: %w", err)
	}
	return out, nil
}

func (s *AlarmRulesStore) UpdateAlarmRule(ctx context.Context, r domain.AlarmRule) (domain.AlarmRule, error) {
	q := `
		UPDATE alarm_rules
		SET name = $2, type = $3, condition = $4, value = $5, recipients = $6,
			active = $7, updated_at = now()
		WHERE id = $1
		RETURNING ` + alarmRuleColumns

	updated, err := scanAlarmRule(s.pool.QueryRow(ctx, q,
		r.ID,
		r.Name,
		r.Type,
		nullIfEmpty(r.Condition),
		flexIntArg(r.Value),
		pgtype.FlatArray[string](r.Recipients.Normalized()),
		r.Active,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AlarmRule{}, domain.ErrNotFound
		}
		return domain.AlarmRule{}, fmt.Errorf("update alarm rule: %w", err)
	}
	return updated, nil
}

func (s *AlarmRulesStore) DeleteAlarmRule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alarm_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete alarm rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
