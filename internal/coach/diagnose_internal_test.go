package coach

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/myrjola/petrcoach/internal/ptr"
)

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name string
		in   DiagnosisInput
		want Diagnosis
	}{
		{
			name: "too few workouts in two weeks",
			in: DiagnosisInput{
				Kind:                 WindowRolling,
				Workouts:             2,
				MaxGapDays:           ptr.Ref(3),
				Volume:               0,
				PriorVolume:          0,
				AvgSessionMinutes:    nil,
				TargetDaysPerWeek:    3,
				TargetSessionMinutes: 45,
			},
			want: Diagnosis{
				Mistake: &Label{Key: MistakeInconsistentTrainingDays, Label: "Inconsistent Training Days"},
				Focus:   &Label{Key: "hit_target_days", Label: "Hit your target workouts this week"},
				Reasons: []Label{
					{Key: "missed_target", Label: "Fewer than target workouts in last 2 weeks"},
					{Key: MistakeInconsistentTrainingDays, Label: "Training days are uneven"},
				},
			},
		},
		{
			name: "one missed day in two weeks is tolerated",
			in: DiagnosisInput{
				Kind:                 WindowRolling,
				Workouts:             5,
				MaxGapDays:           ptr.Ref(2),
				Volume:               1000,
				PriorVolume:          1000,
				AvgSessionMinutes:    ptr.Ref(50.0),
				TargetDaysPerWeek:    3,
				TargetSessionMinutes: 45,
			},
			want: Diagnosis{
				Mistake: nil,
				Focus:   nil,
				Reasons: []Label{{Key: "missed_target", Label: "Fewer than target workouts in last 2 weeks"}},
			},
		},
		{
			name: "volume drop",
			in: DiagnosisInput{
				Kind:                 WindowRolling,
				Workouts:             6,
				MaxGapDays:           ptr.Ref(2),
				Volume:               700,
				PriorVolume:          1000,
				AvgSessionMinutes:    ptr.Ref(50.0),
				TargetDaysPerWeek:    3,
				TargetSessionMinutes: 45,
			},
			want: Diagnosis{
				Mistake: &Label{Key: MistakeVolumeDrop, Label: "Volume Drop"},
				Focus:   &Label{Key: "add_extra_set", Label: "Add 1 extra set per exercise"},
				Reasons: []Label{{Key: "volume_drop", Label: "Volume down vs previous week"}},
			},
		},
		{
			name: "gap wins over volume drop",
			in: DiagnosisInput{
				Kind:                 WindowWeek,
				Workouts:             3,
				MaxGapDays:           ptr.Ref(5),
				Volume:               700,
				PriorVolume:          1000,
				AvgSessionMinutes:    ptr.Ref(50.0),
				TargetDaysPerWeek:    3,
				TargetSessionMinutes: 45,
			},
			want: Diagnosis{
				Mistake: &Label{Key: MistakeInconsistentTrainingDays, Label: "Inconsistent Training Days"},
				Focus:   &Label{Key: "hit_target_days", Label: "Hit your target workouts this week"},
				Reasons: []Label{
					{Key: "gap_4_days", Label: "Longest gap without training: 5 days"},
					{Key: "volume_drop", Label: "Volume down vs previous week"},
					{Key: MistakeInconsistentTrainingDays, Label: "Training days are uneven"},
				},
			},
		},
		{
			name: "sessions too short",
			in: DiagnosisInput{
				Kind:                 WindowWeek,
				Workouts:             3,
				MaxGapDays:           ptr.Ref(2),
				Volume:               1000,
				PriorVolume:          1000,
				AvgSessionMinutes:    ptr.Ref(20.0),
				TargetDaysPerWeek:    3,
				TargetSessionMinutes: 45,
			},
			want: Diagnosis{
				Mistake: &Label{Key: MistakeSessionsTooShort, Label: "Sessions Too Short"},
				Focus:   &Label{Key: "lengthen_sessions", Label: "Aim for at least 30 minutes per session"},
				Reasons: []Label{{Key: MistakeSessionsTooShort, Label: "Average session length below target"}},
			},
		},
		{
			name: "short target never flags short sessions",
			in: DiagnosisInput{
				Kind:                 WindowWeek,
				Workouts:             3,
				MaxGapDays:           ptr.Ref(2),
				Volume:               1000,
				PriorVolume:          900,
				AvgSessionMinutes:    ptr.Ref(5.0),
				TargetDaysPerWeek:    3,
				TargetSessionMinutes: 15,
			},
			want: Diagnosis{Mistake: nil, Focus: nil, Reasons: []Label{}},
		},
		{
			name: "on track",
			in: DiagnosisInput{
				Kind:                 WindowWeek,
				Workouts:             4,
				MaxGapDays:           ptr.Ref(1),
				Volume:               1000,
				PriorVolume:          900,
				AvgSessionMinutes:    ptr.Ref(50.0),
				TargetDaysPerWeek:    3,
				TargetSessionMinutes: 45,
			},
			want: Diagnosis{Mistake: nil, Focus: nil, Reasons: []Label{}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diagnose(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Diagnose() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func Test_weeklyFocus_reservedMistakes(t *testing.T) {
	// Reserved mistakes have a focus even though no rule produces them.
	for _, key := range []string{MistakeNoProgression, MistakeOvertrainingSignals} {
		if weeklyFocus(key, 45) == nil {
			t.Errorf("weeklyFocus(%q) = nil", key)
		}
	}
	if got := weeklyFocus("unknown", 45); got != nil {
		t.Errorf("weeklyFocus(unknown) = %v, want nil", got)
	}
	if got := weeklyFocus(MistakeSessionsTooShort, 20); got.Label != "Aim for at least 15 minutes per session" {
		t.Errorf("weeklyFocus() label = %q", got.Label)
	}
}

func Test_volumeDeltaPct(t *testing.T) {
	if got := volumeDeltaPct(100, 0); got != nil {
		t.Errorf("volumeDeltaPct(100, 0) = %v, want nil", *got)
	}
	got := volumeDeltaPct(700, 1000)
	if got == nil || round1(*got) != -30 {
		t.Errorf("volumeDeltaPct(700, 1000) = %v, want -30", got)
	}
}
