package coach

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
	"github.com/myrjola/petrcoach/internal/logging"
	"github.com/myrjola/petrcoach/internal/timewindow"
)

const (
	minReportWorkouts     = 2
	volumeUpSignalPct     = 5.0
	longerSessionsMinutes = 5.0
	emptyWeekMaxGapDays   = 7
)

// weekMaxGap is the longest run of days without a workout inside the week. An empty week counts as a full gap.
func weekMaxGap(dates []time.Time, weekStart, weekEnd time.Time) int {
	if gap := maxGap(dates, weekStart, weekEnd); gap != nil && len(dates) > 0 {
		return *gap
	}
	return emptyWeekMaxGapDays
}

// positiveSignal compares the week with the week before. The first matching signal wins.
func positiveSignal(week, prev Aggregates, deltaPct *float64) (*Label, *string) {
	var reason string
	switch {
	case prev.TotalVolumeKg > 0 && deltaPct != nil && *deltaPct > volumeUpSignalPct:
		reason = fmt.Sprintf("Volume up %.0f%% vs last week", *deltaPct)
		return &Label{Key: "volume_up", Label: "Volume Up"}, &reason
	case week.WorkoutCount > prev.WorkoutCount:
		reason = "More workouts than last week"
		return &Label{Key: "consistency_up", Label: "Consistency Up"}, &reason
	case week.AvgSessionMinutes != nil && prev.AvgSessionMinutes != nil &&
		*week.AvgSessionMinutes > *prev.AvgSessionMinutes+longerSessionsMinutes:
		reason = "Average session length increased"
		return &Label{Key: "duration_up", Label: "Longer Sessions"}, &reason
	default:
		return nil, nil
	}
}

// compileWeeklyReport diagnoses one week from its aggregates and those of the week before.
func compileWeeklyReport(profile CoachingProfile, week, prev Aggregates) WeeklyReport {
	report := WeeklyReport{
		WeekStart:     week.Start,
		WeekEnd:       week.End,
		Status:        ReportInsufficientData,
		WorkoutsCount: week.WorkoutCount,
		TotalVolumeKg: round1(week.TotalVolumeKg),
		Reasons:       []Label{},
	}
	if week.WorkoutCount < minReportWorkouts {
		return report
	}

	delta := volumeDeltaPct(week.TotalVolumeKg, prev.TotalVolumeKg)
	gap := weekMaxGap(week.WorkedDates, week.Start, week.End)
	diagnosis := Diagnose(DiagnosisInput{
		Kind:                 WindowWeek,
		Workouts:             week.WorkoutCount,
		MaxGapDays:           &gap,
		Volume:               week.TotalVolumeKg,
		PriorVolume:          prev.TotalVolumeKg,
		AvgSessionMinutes:    week.AvgSessionMinutes,
		TargetDaysPerWeek:    profile.TargetDaysPerWeek,
		TargetSessionMinutes: profile.TargetSessionMinutes,
	})
	signal, signalReason := positiveSignal(week, prev, delta)

	report.Status = ReportGenerated
	report.VolumeDeltaPct = round1Ptr(delta)
	report.AvgSessionDuration = round1Ptr(week.AvgSessionMinutes)
	report.PrimaryMistake = diagnosis.Mistake
	report.WeeklyFocus = diagnosis.Focus
	report.Reasons = diagnosis.Reasons
	report.PositiveSignal = signal
	report.PositiveSignalReason = signalReason
	return report
}

// GenerateWeeklyReport compiles the report of the user's last completed local week. A report that already exists
// for that week is returned without recomputation.
func (s *Service) GenerateWeeklyReport(ctx context.Context, userID int) (WeeklyReport, error) {
	user, err := s.repo.users.Get(ctx, userID)
	if err != nil {
		return WeeklyReport{}, errors.Wrap(err, "get user")
	}
	weekStart, weekEnd := timewindow.LastCompletedWeek(s.clock.Today(user.Timezone))
	ctx = logging.WithAttrs(ctx, slog.String("week_start", timewindow.FormatDate(weekStart)))

	existing, err := s.repo.reports.Get(ctx, userID, weekStart)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return WeeklyReport{}, errors.Wrap(err, "get report")
	}

	profile, err := s.profileFor(ctx, userID)
	if err != nil {
		return WeeklyReport{}, err
	}
	prevStart, prevEnd := weekStart.AddDate(0, 0, -7), weekEnd.AddDate(0, 0, -7)
	workouts, err := s.loadWorkouts(ctx, user, prevStart, weekEnd)
	if err != nil {
		return WeeklyReport{}, err
	}
	loc := timewindow.Location(user.Timezone)
	report := compileWeeklyReport(profile,
		aggregate(workouts, loc, weekStart, weekEnd),
		aggregate(workouts, loc, prevStart, prevEnd))
	report.UserID = userID
	report.CreatedAt = s.clock.Now().UTC()

	if report.Status == ReportGenerated {
		source := NarrativeLLM
		text, ok := s.narrate(ctx, userID, narrativeFacts(user, report))
		if !ok {
			source = NarrativeFallback
			text = fallbackNarrative(report.WorkoutsCount, report.WeeklyFocus, report.PositiveSignal)
		}
		report.Narrative = &text
		report.NarrativeSource = &source
		s.metrics.ObserveNarrative(string(source))
	}

	stored, err := s.repo.reports.InsertOrGet(ctx, report)
	if err != nil {
		return WeeklyReport{}, errors.Wrap(err, "store report")
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "generated weekly report",
		slog.String("status", string(stored.Status)), slog.Int("workouts_count", stored.WorkoutsCount))
	return stored, nil
}
