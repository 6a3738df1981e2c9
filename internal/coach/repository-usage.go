package coach

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

type sqliteUsageRepository struct {
	baseRepository
}

// ReportCalls returns how many narratives were generated for the user on the UTC day of day.
func (r *sqliteUsageRepository) ReportCalls(ctx context.Context, userID int, day time.Time) (int, error) {
	var calls int
	err := r.db.ReadOnly.QueryRowContext(ctx, `
		SELECT report_calls
		FROM narrative_usage
		WHERE user_id = ? AND usage_date = ?`, userID, formatDate(day.UTC())).Scan(&calls)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "query narrative usage", slog.Int("user_id", userID))
	}
	return calls, nil
}

// Record adds one narrative call and its tokens to the user's counter of the UTC day of day.
func (r *sqliteUsageRepository) Record(ctx context.Context, userID int, day time.Time, in, out int64) error {
	_, err := r.db.ReadWrite.ExecContext(ctx, `
		INSERT INTO narrative_usage (user_id, usage_date, input_tokens, output_tokens, total_tokens, report_calls)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (user_id, usage_date) DO UPDATE SET
			input_tokens  = input_tokens + excluded.input_tokens,
			output_tokens = output_tokens + excluded.output_tokens,
			total_tokens  = total_tokens + excluded.total_tokens,
			report_calls  = report_calls + 1`,
		userID, formatDate(day.UTC()), in, out, in+out)
	if err != nil {
		return errors.Wrap(err, "record narrative usage", slog.Int("user_id", userID))
	}
	return nil
}
