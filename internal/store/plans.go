package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperengineering/vision/internal/types"
	"github.com/oklog/ulid/v2"
)

const selectPlanColumns = `
	SELECT id, user_id, goal, context, quarters_data, monthly_focus, is_active, created_at, updated_at
	FROM strategic_plans`

// scanPlan scans a row into a PlanRecord, decoding the JSON columns.
// A stored context blob of unknown shape is rejected here rather than passed on untyped.
func scanPlan(scanner interface{ Scan(...any) error }) (*types.PlanRecord, error) {
	var p types.PlanRecord
	var contextJSON sql.NullString
	var quartersJSON, monthlyJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&p.ID, &p.UserID, &p.Goal, &contextJSON,
		&quartersJSON, &monthlyJSON, &p.IsActive,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if contextJSON.Valid {
		c, err := types.DecodeOnboardingContext([]byte(contextJSON.String))
		if err != nil {
			return nil, fmt.Errorf("plan %s context: %w", p.ID, err)
		}
		p.Context = c
	}
	if err := json.Unmarshal([]byte(quartersJSON), &p.Quarters); err != nil {
		return nil, fmt.Errorf("parse quarters JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(monthlyJSON), &p.MonthlyFocus); err != nil {
		return nil, fmt.Errorf("parse monthly focus JSON: %w", err)
	}

	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// GetActivePlan returns the user's active plan with its tactics ordered by week.
func (s *SQLiteStore) GetActivePlan(ctx context.Context, userID string) (*types.PlanWithTactics, error) {
	row := s.db.QueryRowContext(ctx, selectPlanColumns+`
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID)

	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActivePlan
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}

	return s.withTactics(ctx, s.db, plan)
}

// GetPlan returns any plan owned by the user, active or not.
func (s *SQLiteStore) GetPlan(ctx context.Context, userID, planID string) (*types.PlanWithTactics, error) {
	return s.getPlan(ctx, s.db, userID, planID)
}

func (s *SQLiteStore) getPlan(ctx context.Context, q queryer, userID, planID string) (*types.PlanWithTactics, error) {
	row := q.QueryRowContext(ctx, selectPlanColumns+`
		WHERE id = ? AND user_id = ?
	`, planID, userID)

	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}

	return s.withTactics(ctx, q, plan)
}

func (s *SQLiteStore) withTactics(ctx context.Context, q queryer, plan *types.PlanRecord) (*types.PlanWithTactics, error) {
	tactics, err := listTactics(ctx, q, plan.ID)
	if err != nil {
		return nil, err
	}
	return &types.PlanWithTactics{Plan: *plan, Tactics: tactics}, nil
}

func marshalPlanFields(plan types.StrategicPlan) (quarters, monthly string, err error) {
	q, err := json.Marshal(plan.Quarters)
	if err != nil {
		return "", "", fmt.Errorf("marshal quarters: %w", err)
	}
	focus := plan.MonthlyFocus
	if focus == nil {
		focus = []string{}
	}
	m, err := json.Marshal(focus)
	if err != nil {
		return "", "", fmt.Errorf("marshal monthly focus: %w", err)
	}
	return string(q), string(m), nil
}

// ReplaceActivePlan deactivates the user's current plan and stores the new plan with
// its 52 tactics, all in one transaction. Tactics are created pending with
// week_number i+1 and display_order i for weeklyTactics[i].
func (s *SQLiteStore) ReplaceActivePlan(ctx context.Context, userID string, planCtx *types.OnboardingContext, plan types.StrategicPlan) (*ReplaceResult, error) {
	if len(plan.WeeklyTactics) != types.WeeksPerPlan {
		return nil, ErrIncompletePlan
	}

	quartersJSON, monthlyJSON, err := marshalPlanFields(plan)
	if err != nil {
		return nil, err
	}
	var contextJSON sql.NullString
	if planCtx != nil {
		data, err := types.EncodeOnboardingContext(*planCtx)
		if err != nil {
			return nil, fmt.Errorf("encode context: %w", err)
		}
		contextJSON = sql.NullString{String: string(data), Valid: true}
	}

	planID := ulid.Make().String()
	now := s.timestamp()
	result := &ReplaceResult{}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var previous sql.NullString
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM strategic_plans WHERE user_id = ? AND is_active = 1
		`, userID).Scan(&previous)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("find active plan: %w", err)
		}
		result.PreviousPlanID = previous.String

		if _, err := tx.ExecContext(ctx, `
			UPDATE strategic_plans SET is_active = 0, updated_at = ?
			WHERE user_id = ? AND is_active = 1
		`, now, userID); err != nil {
			return fmt.Errorf("deactivate plans: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO strategic_plans (id, user_id, goal, context, quarters_data, monthly_focus, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		`, planID, userID, plan.Goal, contextJSON, quartersJSON, monthlyJSON, now, now); err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, insertTacticSQL)
		if err != nil {
			return fmt.Errorf("prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, t := range plan.WeeklyTactics {
			if _, err := stmt.ExecContext(ctx,
				ulid.Make().String(), planID, userID, t.Title, t.Description,
				string(types.TacticPending), i+1, i, now, now,
			); err != nil {
				return fmt.Errorf("insert tactic week %d: %w", i+1, err)
			}
		}

		stored, err := s.getPlan(ctx, tx, userID, planID)
		if err != nil {
			return err
		}
		result.Plan = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyRecalculation writes a recalculated plan over an existing one.
// Plan-level fields are replaced. Completed tactics are kept verbatim; every other
// week is upserted by week number with the new text and reset to pending.
// A plan that has been replaced returns ErrPlanInactive.
func (s *SQLiteStore) ApplyRecalculation(ctx context.Context, userID, planID string, plan types.StrategicPlan) (*types.PlanWithTactics, error) {
	if len(plan.WeeklyTactics) != types.WeeksPerPlan {
		return nil, ErrIncompletePlan
	}

	quartersJSON, monthlyJSON, err := marshalPlanFields(plan)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	var updated *types.PlanWithTactics

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireActivePlan(ctx, tx, planID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE strategic_plans
			SET goal = ?, quarters_data = ?, monthly_focus = ?, updated_at = ?
			WHERE id = ? AND user_id = ?
		`, plan.Goal, quartersJSON, monthlyJSON, now, planID, userID)
		if err != nil {
			return fmt.Errorf("update plan: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		existing, err := listTactics(ctx, tx, planID)
		if err != nil {
			return err
		}
		byWeek := make(map[int]types.TacticRecord, len(existing))
		for _, t := range existing {
			byWeek[t.WeekNumber] = t
		}

		for i, t := range plan.WeeklyTactics {
			week := i + 1
			current, ok := byWeek[week]
			switch {
			case ok && current.Status == types.TacticCompleted:
				continue
			case ok:
				if _, err := tx.ExecContext(ctx, `
					UPDATE tactics
					SET title = ?, description = ?, status = ?, completed_at = NULL, updated_at = ?
					WHERE id = ?
				`, t.Title, t.Description, string(types.TacticPending), now, current.ID); err != nil {
					return fmt.Errorf("update tactic week %d: %w", week, err)
				}
			default:
				if _, err := tx.ExecContext(ctx, insertTacticSQL,
					ulid.Make().String(), planID, userID, t.Title, t.Description,
					string(types.TacticPending), week, i, now, now,
				); err != nil {
					return fmt.Errorf("insert tactic week %d: %w", week, err)
				}
			}
		}

		updated, err = s.getPlan(ctx, tx, userID, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
