package coach

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/sqlite"
)

// baseRepository holds the dependencies shared by every SQLite repository.
type baseRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func newBaseRepository(db *sqlite.Database, logger *slog.Logger) baseRepository {
	return baseRepository{db: db, logger: logger}
}

// inTx runs fn inside a read-write transaction that is committed when fn succeeds.
func (r baseRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, errors.Wrap(rollbackErr, "rollback transaction"))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}

// repository groups the storage of every entity the coaching engine reads or writes.
type repository struct {
	users       *sqliteUserRepository
	workouts    *sqliteWorkoutRepository
	profiles    *sqliteProfileRepository
	metrics     *sqliteMetricsRepository
	plans       *sqlitePlanRepository
	adjustments *sqliteAdjustmentRepository
	predictions *sqlitePredictionRepository
	reports     *sqliteReportRepository
	usage       *sqliteUsageRepository
}

func newRepository(db *sqlite.Database, logger *slog.Logger) *repository {
	base := newBaseRepository(db, logger)
	return &repository{
		users:       &sqliteUserRepository{baseRepository: base},
		workouts:    &sqliteWorkoutRepository{baseRepository: base},
		profiles:    &sqliteProfileRepository{baseRepository: base},
		metrics:     &sqliteMetricsRepository{baseRepository: base},
		plans:       &sqlitePlanRepository{baseRepository: base},
		adjustments: &sqliteAdjustmentRepository{baseRepository: base},
		predictions: &sqlitePredictionRepository{baseRepository: base},
		reports:     &sqliteReportRepository{baseRepository: base},
		usage:       &sqliteUsageRepository{baseRepository: base},
	}
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// notFound translates sql.ErrNoRows into ErrNotFound and annotates other errors.
func notFound(err error, msg string, attrs ...slog.Attr) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(ErrNotFound, msg, attrs...)
	}
	return errors.Wrap(err, msg, attrs...)
}

// closeRows closes rows and joins the close error into err.
func closeRows(rows *sql.Rows, err *error) {
	if closeErr := rows.Close(); closeErr != nil {
		*err = errors.Join(*err, errors.Wrap(closeErr, "close rows"))
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(sqlite.TimestampFormat)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(sqlite.TimestampFormat, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse timestamp", slog.String("value", s))
	}
	return t, nil
}

func parseNullTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil //nolint:nilnil // NULL is a valid value
	}
	t, err := parseTimestamp(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(d time.Time) string {
	return d.Format(sqlite.DateFormat)
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse(sqlite.DateFormat, s)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "parse date", slog.String("value", s))
	}
	return d, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

// nullLabel combines a key and label column pair into a Label.
func nullLabel(key, label sql.NullString) *Label {
	if !key.Valid {
		return nil
	}
	return &Label{Key: key.String, Label: label.String}
}

func labelColumns(l *Label) (*string, *string) {
	if l == nil {
		return nil, nil
	}
	return &l.Key, &l.Label
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "marshal json")
	}
	return string(b), nil
}

func unmarshalJSON(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return errors.Wrap(err, "unmarshal json")
	}
	return nil
}
