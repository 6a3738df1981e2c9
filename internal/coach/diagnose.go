package coach

import (
	"fmt"
	"strings"

	"github.com/myrjola/petrcoach/internal/ptr"
)

// WindowKind selects the thresholds and wording of a diagnosis.
type WindowKind int

const (
	// WindowRolling diagnoses the trailing 14 days of the daily metrics.
	WindowRolling WindowKind = iota
	// WindowWeek diagnoses a single Monday-start week of the weekly report.
	WindowWeek
)

// Mistake keys in evaluation order. The progression and overtraining rules are reserved: they have a focus
// mapping but nothing triggers them yet.
const (
	MistakeInconsistentTrainingDays = "inconsistent_training_days"
	MistakeVolumeDrop               = "volume_drop"
	MistakeNoProgression            = "no_progression_21_days"
	MistakeOvertrainingSignals      = "overtraining_signals"
	MistakeSessionsTooShort         = "sessions_too_short"
)

var mistakeLabels = map[string]string{
	MistakeInconsistentTrainingDays: "Inconsistent Training Days",
	MistakeVolumeDrop:               "Volume Drop",
	MistakeNoProgression:            "No Progression in 21 Days",
	MistakeOvertrainingSignals:      "Overtraining Signals",
	MistakeSessionsTooShort:         "Sessions Too Short",
}

// focusByMistake maps a mistake to the weekly focus. {target} is replaced with the session length goal.
var focusByMistake = map[string]Label{
	MistakeInconsistentTrainingDays: {Key: "hit_target_days", Label: "Hit your target workouts this week"},
	MistakeVolumeDrop:               {Key: "add_extra_set", Label: "Add 1 extra set per exercise"},
	MistakeNoProgression:            {Key: "progression_check", Label: "Try adding weight or reps on your main lifts"},
	MistakeOvertrainingSignals:      {Key: "recovery_focus", Label: "Prioritize recovery and sleep"},
	MistakeSessionsTooShort:         {Key: "lengthen_sessions", Label: "Aim for at least {target} minutes per session"},
}

const (
	minSessionMinutes      = 15
	gapMistakeDays         = 4
	volumeDropMistakePct   = 25.0
	volumeDropReasonPct    = -20.0
	sessionShortfallMinute = 15
)

// DiagnosisInput is everything the mistake rules look at.
type DiagnosisInput struct {
	Kind WindowKind
	// Workouts is the distinct worked days in the last 14 days for WindowRolling and the number of workouts in
	// the week for WindowWeek.
	Workouts             int
	MaxGapDays           *int
	Volume               float64
	PriorVolume          float64
	AvgSessionMinutes    *float64
	TargetDaysPerWeek    int
	TargetSessionMinutes int
}

// Diagnosis is the primary mistake, the focus derived from it and the reasons explaining the diagnosis.
type Diagnosis struct {
	Mistake *Label
	Focus   *Label
	Reasons []Label
}

// Diagnose evaluates the mistake rules in priority order and assembles the reasons independently of which
// mistake won.
func Diagnose(in DiagnosisInput) Diagnosis {
	mistake := primaryMistake(in)
	var d Diagnosis
	if mistake != "" {
		d.Mistake = &Label{Key: mistake, Label: mistakeLabels[mistake]}
		d.Focus = weeklyFocus(mistake, in.TargetSessionMinutes)
	}
	d.Reasons = reasons(in, mistake)
	return d
}

func (in DiagnosisInput) expectedWorkouts() int {
	if in.Kind == WindowWeek {
		return in.TargetDaysPerWeek
	}
	return in.TargetDaysPerWeek * 2 //nolint:mnd // two weeks
}

func (in DiagnosisInput) gapExceeds(days int) bool {
	return ptr.ValueOr(in.MaxGapDays, 0) > days
}

func primaryMistake(in DiagnosisInput) string {
	threshold := in.TargetDaysPerWeek
	if in.Kind == WindowRolling {
		// One missed day in two weeks is tolerated.
		threshold = max(0, in.expectedWorkouts()-1)
	}
	if in.Workouts < threshold || in.gapExceeds(gapMistakeDays) {
		return MistakeInconsistentTrainingDays
	}

	if in.PriorVolume > 0 && (in.PriorVolume-in.Volume)/in.PriorVolume*100 >= volumeDropMistakePct {
		return MistakeVolumeDrop
	}

	if in.TargetSessionMinutes > minSessionMinutes && in.AvgSessionMinutes != nil &&
		*in.AvgSessionMinutes < float64(in.TargetSessionMinutes-sessionShortfallMinute) {
		return MistakeSessionsTooShort
	}

	return ""
}

func weeklyFocus(mistake string, targetMinutes int) *Label {
	focus, ok := focusByMistake[mistake]
	if !ok {
		return nil
	}
	target := max(minSessionMinutes, targetMinutes-sessionShortfallMinute)
	focus.Label = strings.ReplaceAll(focus.Label, "{target}", fmt.Sprint(target))
	return &focus
}

func reasons(in DiagnosisInput, mistake string) []Label {
	out := []Label{}
	if in.TargetDaysPerWeek > 0 && in.Workouts < in.expectedWorkouts() {
		label := "Fewer than target workouts in last 2 weeks"
		if in.Kind == WindowWeek {
			label = "Fewer than target workouts this week"
		}
		out = append(out, Label{Key: "missed_target", Label: label})
	}
	if in.gapExceeds(gapMistakeDays) {
		out = append(out, Label{
			Key:   "gap_4_days",
			Label: fmt.Sprintf("Longest gap without training: %d days", *in.MaxGapDays),
		})
	}
	if delta := volumeDeltaPct(in.Volume, in.PriorVolume); delta != nil && *delta < volumeDropReasonPct {
		out = append(out, Label{Key: "volume_drop", Label: "Volume down vs previous week"})
	}
	switch mistake {
	case MistakeSessionsTooShort:
		out = append(out, Label{Key: MistakeSessionsTooShort, Label: "Average session length below target"})
	case MistakeInconsistentTrainingDays:
		out = append(out, Label{Key: MistakeInconsistentTrainingDays, Label: "Training days are uneven"})
	}
	return out
}

// volumeDeltaPct is the percentage change from prior to current, or nil when there is no prior volume.
func volumeDeltaPct(current, prior float64) *float64 {
	if prior == 0 {
		return nil
	}
	delta := (current - prior) / prior * 100 //nolint:mnd // percent
	return &delta
}
