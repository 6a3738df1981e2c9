package coach

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/myrjola/petrcoach/internal/errors"
)

// NarrativeFacts is the only data a narrator may talk about.
type NarrativeFacts struct {
	WorkoutsCount             int      `json:"workouts_count"`
	VolumeDeltaPct            *float64 `json:"volume_delta_pct"`
	PrimaryTrainingMistakeKey *string  `json:"primary_training_mistake_key"`
	WeeklyFocusKey            *string  `json:"weekly_focus_key"`
	PositiveSignalKey         *string  `json:"positive_signal_key"`
	UserWeightKg              *float64 `json:"user_weight_kg,omitempty"`
	UserHeightCm              *float64 `json:"user_height_cm,omitempty"`
	UserAgeYears              *int     `json:"user_age_years,omitempty"`
	UserGender                *string  `json:"user_gender,omitempty"`
}

// Narrative is the text written by a narrator and the tokens it spent.
type Narrative struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Narrator writes a short weekly summary from the facts. Implementations may fail in any way; the caller falls
// back to a deterministic sentence.
type Narrator interface {
	Narrate(ctx context.Context, facts NarrativeFacts) (Narrative, error)
}

var numberPattern = regexp.MustCompile(`\d+`)

// grounded reports whether every number in text also appears in the serialised facts.
func grounded(text string, facts NarrativeFacts) bool {
	encoded, err := json.Marshal(facts)
	if err != nil {
		return false
	}
	for _, n := range numberPattern.FindAllString(text, -1) {
		if !strings.Contains(string(encoded), n) {
			return false
		}
	}
	return true
}

// fallbackNarrative is the deterministic summary used whenever the narrator is unavailable or untrustworthy.
func fallbackNarrative(workouts int, focus, signal *Label) string {
	focusLabel := "Keep training consistently"
	if focus != nil {
		focusLabel = focus.Label
	}
	text := fmt.Sprintf("This week you completed %d workouts. Focus next week on %s.", workouts, focusLabel)
	if signal != nil {
		text += " " + signal.Label
	}
	return text
}

// narrativeFacts bundles the report numbers with the optional body data of the user.
func narrativeFacts(user User, r WeeklyReport) NarrativeFacts {
	facts := NarrativeFacts{
		WorkoutsCount:             r.WorkoutsCount,
		VolumeDeltaPct:            r.VolumeDeltaPct,
		PrimaryTrainingMistakeKey: labelKey(r.PrimaryMistake),
		WeeklyFocusKey:            labelKey(r.WeeklyFocus),
		PositiveSignalKey:         labelKey(r.PositiveSignal),
		UserWeightKg:              round1Ptr(user.WeightKg),
		UserHeightCm:              round1Ptr(user.HeightCm),
		UserAgeYears:              nil,
		UserGender:                nil,
	}
	if user.DateOfBirth != nil {
		age := max(0, ageOn(*user.DateOfBirth, r.WeekEnd))
		facts.UserAgeYears = &age
	}
	if user.Gender != nil && *user.Gender != "" {
		facts.UserGender = user.Gender
	}
	return facts
}

func ageOn(born, on time.Time) int {
	age := on.Year() - born.Year()
	if on.Month() < born.Month() || (on.Month() == born.Month() && on.Day() < born.Day()) {
		age--
	}
	return age
}

func labelKey(l *Label) *string {
	if l == nil {
		return nil
	}
	return &l.Key
}

// narrate asks the narrator for a summary within the user's daily allowance. It returns false when the fallback
// must be used instead. Narrator failures never propagate.
func (s *Service) narrate(ctx context.Context, userID int, facts NarrativeFacts) (string, bool) {
	if s.narrator == nil {
		return "", false
	}
	usageDate := s.clock.Now().UTC()
	if s.narrativeDailyLimit > 0 {
		calls, err := s.repo.usage.ReportCalls(ctx, userID, usageDate)
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "could not read narrative usage", errors.SlogError(err))
			return "", false
		}
		if calls >= s.narrativeDailyLimit {
			s.logger.LogAttrs(ctx, slog.LevelInfo, "narrative daily limit reached", slog.Int("report_calls", calls))
			return "", false
		}
	}

	n, err := s.narrator.Narrate(ctx, facts)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "narrative generation failed", errors.SlogError(err))
		return "", false
	}
	if err = s.repo.usage.Record(ctx, userID, usageDate, n.InputTokens, n.OutputTokens); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "could not record narrative usage", errors.SlogError(err))
	}

	text := strings.TrimSpace(n.Text)
	if text == "" {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "narrative was empty")
		return "", false
	}
	if !grounded(text, facts) {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "narrative contained numbers missing from the facts",
			slog.String("narrative", text))
		return "", false
	}
	return text, true
}
