package coach

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

type sqliteMetricsRepository struct {
	baseRepository
}

// Upsert stores the snapshot, replacing any snapshot of the same user and date.
func (r *sqliteMetricsRepository) Upsert(ctx context.Context, m MetricsSnapshot) error {
	reasons, err := marshalJSON(nonNilLabels(m.Reasons))
	if err != nil {
		return errors.Wrap(err, "marshal reasons")
	}
	mistakeKey, mistakeLabel := labelColumns(m.PrimaryMistake)
	focusKey, focusLabel := labelColumns(m.WeeklyFocus)

	_, err = r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO behavior_metrics (user_id, metrics_date, consistency_score, dropout_risk, burnout_risk,
		                              momentum_trend, adherence_type, workouts_last_7_days, workouts_last_14_days,
		                              avg_session_duration, total_volume_last_7_days, volume_delta_vs_prev_week,
		                              max_gap_days, common_skip_day, primary_mistake_key, primary_mistake_label,
		                              weekly_focus_key, weekly_focus_label, reasons, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, metrics_date) DO UPDATE SET
			consistency_score         = excluded.consistency_score,
			dropout_risk              = excluded.dropout_risk,
			burnout_risk              = excluded.burnout_risk,
			momentum_trend            = excluded.momentum_trend,
			adherence_type            = excluded.adherence_type,
			workouts_last_7_days      = excluded.workouts_last_7_days,
			workouts_last_14_days     = excluded.workouts_last_14_days,
			avg_session_duration      = excluded.avg_session_duration,
			total_volume_last_7_days  = excluded.total_volume_last_7_days,
			volume_delta_vs_prev_week = excluded.volume_delta_vs_prev_week,
			max_gap_days              = excluded.max_gap_days,
			common_skip_day           = excluded.common_skip_day,
			primary_mistake_key       = excluded.primary_mistake_key,
			primary_mistake_label     = excluded.primary_mistake_label,
			weekly_focus_key          = excluded.weekly_focus_key,
			weekly_focus_label        = excluded.weekly_focus_label,
			reasons                   = excluded.reasons,
			computed_at               = excluded.computed_at`,
		m.UserID, formatDate(m.MetricsDate), m.ConsistencyScore, m.DropoutRisk, m.BurnoutRisk,
		m.MomentumTrend, m.AdherenceType, m.WorkoutsLast7Days, m.WorkoutsLast14Days,
		m.AvgSessionDuration, m.TotalVolumeLast7Days, m.VolumeDeltaVsPrevWeek,
		m.MaxGapDays, formatWeekday(m.CommonSkipDay), mistakeKey, mistakeLabel,
		focusKey, focusLabel, reasons, formatTimestamp(m.ComputedAt))
	if err != nil {
		return errors.Wrap(err, "upsert behavior metrics", slog.Int("user_id", m.UserID))
	}
	return nil
}

// Latest returns the snapshot with the most recent metrics date or ErrNotFound.
func (r *sqliteMetricsRepository) Latest(ctx context.Context, userID int) (MetricsSnapshot, error) {
	var (
		m                    MetricsSnapshot
		metricsDate          string
		avgSessionDuration   sql.NullFloat64
		volumeDelta          sql.NullFloat64
		maxGapDays           sql.NullInt64
		commonSkipDay        sql.NullString
		mistakeKey, mistake  sql.NullString
		focusKey, focusLabel sql.NullString
		reasons              string
		computedAt           string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT user_id, metrics_date, consistency_score, dropout_risk, burnout_risk, momentum_trend,
		       adherence_type, workouts_last_7_days, workouts_last_14_days, avg_session_duration,
		       total_volume_last_7_days, volume_delta_vs_prev_week, max_gap_days, common_skip_day,
		       primary_mistake_key, primary_mistake_label, weekly_focus_key, weekly_focus_label,
		       reasons, computed_at
		FROM behavior_metrics
		WHERE user_id = ?
		ORDER BY metrics_date DESC, computed_at DESC
		LIMIT 1`, userID).Scan(
		&m.UserID, &metricsDate, &m.ConsistencyScore, &m.DropoutRisk, &m.BurnoutRisk, &m.MomentumTrend,
		&m.AdherenceType, &m.WorkoutsLast7Days, &m.WorkoutsLast14Days, &avgSessionDuration,
		&m.TotalVolumeLast7Days, &volumeDelta, &maxGapDays, &commonSkipDay,
		&mistakeKey, &mistake, &focusKey, &focusLabel,
		&reasons, &computedAt)
	if err != nil {
		return MetricsSnapshot{}, notFound(err, "query latest behavior metrics", slog.Int("user_id", userID))
	}

	if m.MetricsDate, err = parseDate(metricsDate); err != nil {
		return MetricsSnapshot{}, err
	}
	if m.ComputedAt, err = parseTimestamp(computedAt); err != nil {
		return MetricsSnapshot{}, err
	}
	if err = unmarshalJSON(reasons, &m.Reasons); err != nil {
		return MetricsSnapshot{}, errors.Wrap(err, "unmarshal reasons")
	}
	m.AvgSessionDuration = nullFloat(avgSessionDuration)
	m.VolumeDeltaVsPrevWeek = nullFloat(volumeDelta)
	m.MaxGapDays = nullInt(maxGapDays)
	m.CommonSkipDay = parseWeekday(commonSkipDay)
	m.PrimaryMistake = nullLabel(mistakeKey, mistake)
	m.WeeklyFocus = nullLabel(focusKey, focusLabel)
	return m, nil
}

func nonNilLabels(labels []Label) []Label {
	if labels == nil {
		return []Label{}
	}
	return labels
}

func formatWeekday(d *time.Weekday) *string {
	if d == nil {
		return nil
	}
	s := strings.ToLower(d.String())
	return &s
}

func parseWeekday(s sql.NullString) *time.Weekday {
	if !s.Valid {
		return nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s.String) {
			return &d
		}
	}
	return nil
}
