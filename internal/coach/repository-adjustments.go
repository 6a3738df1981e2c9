package coach

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

type sqliteAdjustmentRepository struct {
	baseRepository
}

const adjustmentColumns = `id, plan_id, user_id, week_start, previous_volume_multiplier, new_volume_multiplier,
       is_deload, trigger_reason, explanation_title, explanation_bullets, metrics_snapshot, created_at`

func scanAdjustment(row rowScanner) (PlanAdjustment, error) {
	var (
		a                 PlanAdjustment
		weekStart         string
		bullets, snapshot string
		createdAt         string
	)
	err := row.Scan(&a.ID, &a.PlanID, &a.UserID, &weekStart, &a.PreviousVolumeMultiplier, &a.NewVolumeMultiplier,
		&a.IsDeload, &a.TriggerReason, &a.ExplanationTitle, &bullets, &snapshot, &createdAt)
	if err != nil {
		return PlanAdjustment{}, err //nolint:wrapcheck // callers annotate
	}
	if a.WeekStart, err = parseDate(weekStart); err != nil {
		return PlanAdjustment{}, err
	}
	if a.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return PlanAdjustment{}, err
	}
	if err = unmarshalJSON(bullets, &a.ExplanationBullets); err != nil {
		return PlanAdjustment{}, errors.Wrap(err, "unmarshal explanation bullets")
	}
	if err = unmarshalJSON(snapshot, &a.MetricsSnapshot); err != nil {
		return PlanAdjustment{}, errors.Wrap(err, "unmarshal metrics snapshot")
	}
	return a, nil
}

// GetForWeek returns the adjustment of the plan for the week starting on weekStart or ErrNotFound.
func (r *sqliteAdjustmentRepository) GetForWeek(
	ctx context.Context, planID int, weekStart time.Time,
) (PlanAdjustment, error) {
	return r.get(ctx, r.db.ReadOnly, `
		SELECT `+adjustmentColumns+`
		FROM weekly_plan_adjustments
		WHERE plan_id = ? AND week_start = ?`, planID, formatDate(weekStart))
}

// LatestBefore returns the newest adjustment of the plan for a week before weekStart or ErrNotFound.
func (r *sqliteAdjustmentRepository) LatestBefore(
	ctx context.Context, planID int, weekStart time.Time,
) (PlanAdjustment, error) {
	return r.get(ctx, r.db.ReadOnly, `
		SELECT `+adjustmentColumns+`
		FROM weekly_plan_adjustments
		WHERE plan_id = ? AND week_start < ?
		ORDER BY week_start DESC
		LIMIT 1`, planID, formatDate(weekStart))
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *sqliteAdjustmentRepository) get(
	ctx context.Context, q queryRower, query string, planID int, weekStart string,
) (PlanAdjustment, error) {
	a, err := scanAdjustment(q.QueryRowContext(ctx, query, planID, weekStart))
	if err != nil {
		return PlanAdjustment{}, notFound(err, "query plan adjustment",
			slog.Int("plan_id", planID), slog.String("week_start", weekStart))
	}
	return a, nil
}

// History returns up to limit adjustments of the user, newest week first.
func (r *sqliteAdjustmentRepository) History(ctx context.Context, userID, limit int) (_ []PlanAdjustment, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT `+adjustmentColumns+`
		FROM weekly_plan_adjustments
		WHERE user_id = ?
		ORDER BY week_start DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query adjustment history")
	}
	defer closeRows(rows, &err)

	history := []PlanAdjustment{}
	for rows.Next() {
		var a PlanAdjustment
		if a, err = scanAdjustment(rows); err != nil {
			return nil, errors.Wrap(err, "scan plan adjustment")
		}
		history = append(history, a)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate adjustment history")
	}
	return history, nil
}

// Apply records the adjustment and moves the plan's volume multiplier in one transaction. When the week already
// has an adjustment the stored one is returned and the plan is left untouched.
func (r *sqliteAdjustmentRepository) Apply(ctx context.Context, a PlanAdjustment) (PlanAdjustment, error) {
	bullets, err := marshalJSON(a.ExplanationBullets)
	if err != nil {
		return PlanAdjustment{}, errors.Wrap(err, "marshal explanation bullets")
	}
	snapshot, err := marshalJSON(a.MetricsSnapshot)
	if err != nil {
		return PlanAdjustment{}, errors.Wrap(err, "marshal metrics snapshot")
	}

	applied := a
	err = r.inTx(ctx, func(tx *sql.Tx) error {
		res, execErr := tx.ExecContext(ctx, `
			INSERT INTO weekly_plan_adjustments (plan_id, user_id, week_start, previous_volume_multiplier,
			                                     new_volume_multiplier, is_deload, trigger_reason,
			                                     explanation_title, explanation_bullets, metrics_snapshot,
			                                     created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (plan_id, week_start) DO NOTHING`,
			a.PlanID, a.UserID, formatDate(a.WeekStart), a.PreviousVolumeMultiplier,
			a.NewVolumeMultiplier, a.IsDeload, a.TriggerReason,
			a.ExplanationTitle, bullets, snapshot,
			formatTimestamp(a.CreatedAt))
		if execErr != nil {
			return errors.Wrap(execErr, "insert plan adjustment")
		}
		inserted, execErr := res.RowsAffected()
		if execErr != nil {
			return errors.Wrap(execErr, "rows affected")
		}
		if inserted == 0 {
			applied, execErr = r.get(ctx, tx, `
				SELECT `+adjustmentColumns+`
				FROM weekly_plan_adjustments
				WHERE plan_id = ? AND week_start = ?`, a.PlanID, formatDate(a.WeekStart))
			return execErr
		}
		id, execErr := res.LastInsertId()
		if execErr != nil {
			return errors.Wrap(execErr, "last insert id")
		}
		applied.ID = int(id)

		if _, execErr = tx.ExecContext(ctx, `
			UPDATE training_plans
			SET volume_multiplier = ?,
			    updated_at        = ?
			WHERE id = ?`,
			a.NewVolumeMultiplier, formatTimestamp(a.CreatedAt), a.PlanID); execErr != nil {
			return errors.Wrap(execErr, "update volume multiplier", slog.Int("plan_id", a.PlanID))
		}
		return nil
	})
	if err != nil {
		return PlanAdjustment{}, err
	}
	return applied, nil
}
