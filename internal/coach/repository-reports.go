package coach

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

type sqliteReportRepository struct {
	baseRepository
}

// Get returns the user's report of the week starting on weekStart or ErrNotFound.
func (r *sqliteReportRepository) Get(ctx context.Context, userID int, weekStart time.Time) (WeeklyReport, error) {
	var (
		rep                        WeeklyReport
		weekStartStr, weekEndStr   string
		volumeDelta, avgDuration   sql.NullFloat64
		mistakeKey, mistakeLabel   sql.NullString
		focusKey, focusLabel       sql.NullString
		signalKey, signalLabel     sql.NullString
		signalReason               sql.NullString
		reasons                    string
		narrative, narrativeSource sql.NullString
		createdAt                  string
	)
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT id, user_id, week_start, week_end, status, workouts_count, total_volume_kg, volume_delta_pct,
		       prs_hit, avg_session_duration, primary_mistake_key, primary_mistake_label, weekly_focus_key,
		       weekly_focus_label, positive_signal_key, positive_signal_label, positive_signal_reason, reasons,
		       narrative, narrative_source, created_at
		FROM weekly_training_reports
		WHERE user_id = ? AND week_start = ?`, userID, formatDate(weekStart)).Scan(
		&rep.ID, &rep.UserID, &weekStartStr, &weekEndStr, &rep.Status, &rep.WorkoutsCount, &rep.TotalVolumeKg,
		&volumeDelta, &rep.PRsHit, &avgDuration, &mistakeKey, &mistakeLabel, &focusKey,
		&focusLabel, &signalKey, &signalLabel, &signalReason, &reasons,
		&narrative, &narrativeSource, &createdAt)
	if err != nil {
		return WeeklyReport{}, notFound(err, "query weekly report",
			slog.Int("user_id", userID), slog.String("week_start", formatDate(weekStart)))
	}

	if rep.WeekStart, err = parseDate(weekStartStr); err != nil {
		return WeeklyReport{}, err
	}
	if rep.WeekEnd, err = parseDate(weekEndStr); err != nil {
		return WeeklyReport{}, err
	}
	if rep.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return WeeklyReport{}, err
	}
	if err = unmarshalJSON(reasons, &rep.Reasons); err != nil {
		return WeeklyReport{}, errors.Wrap(err, "unmarshal reasons")
	}
	rep.VolumeDeltaPct = nullFloat(volumeDelta)
	rep.AvgSessionDuration = nullFloat(avgDuration)
	rep.PrimaryMistake = nullLabel(mistakeKey, mistakeLabel)
	rep.WeeklyFocus = nullLabel(focusKey, focusLabel)
	rep.PositiveSignal = nullLabel(signalKey, signalLabel)
	rep.PositiveSignalReason = nullString(signalReason)
	rep.Narrative = nullString(narrative)
	if narrativeSource.Valid {
		source := NarrativeSource(narrativeSource.String)
		rep.NarrativeSource = &source
	}
	return rep, nil
}

// InsertOrGet stores the report unless the week already has one and returns the stored report.
func (r *sqliteReportRepository) InsertOrGet(ctx context.Context, rep WeeklyReport) (WeeklyReport, error) {
	reasons, err := marshalJSON(nonNilLabels(rep.Reasons))
	if err != nil {
		return WeeklyReport{}, errors.Wrap(err, "marshal reasons")
	}
	mistakeKey, mistakeLabel := labelColumns(rep.PrimaryMistake)
	focusKey, focusLabel := labelColumns(rep.WeeklyFocus)
	signalKey, signalLabel := labelColumns(rep.PositiveSignal)

	_, err = r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO weekly_training_reports (user_id, week_start, week_end, status, workouts_count, total_volume_kg,
		                                     volume_delta_pct, prs_hit, avg_session_duration, primary_mistake_key,
		                                     primary_mistake_label, weekly_focus_key, weekly_focus_label,
		                                     positive_signal_key, positive_signal_label, positive_signal_reason,
		                                     reasons, narrative, narrative_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, week_start) DO NOTHING`,
		rep.UserID, formatDate(rep.WeekStart), formatDate(rep.WeekEnd), rep.Status, rep.WorkoutsCount,
		rep.TotalVolumeKg, rep.VolumeDeltaPct, rep.PRsHit, rep.AvgSessionDuration, mistakeKey,
		mistakeLabel, focusKey, focusLabel,
		signalKey, signalLabel, rep.PositiveSignalReason,
		reasons, rep.Narrative, rep.NarrativeSource, formatTimestamp(rep.CreatedAt))
	if err != nil {
		return WeeklyReport{}, errors.Wrap(err, "insert weekly report", slog.Int("user_id", rep.UserID))
	}
	return r.Get(ctx, rep.UserID, rep.WeekStart)
}
