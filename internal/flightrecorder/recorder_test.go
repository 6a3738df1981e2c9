package flightrecorder_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/myrjola/petrcoach/internal/flightrecorder"
	"github.com/myrjola/petrcoach/internal/testhelpers"
)

func newRecorder(t *testing.T, dir string) *flightrecorder.Recorder {
	t.Helper()
	r, err := flightrecorder.New(flightrecorder.Config{
		Dir:           dir,
		SlowThreshold: time.Minute,
		MinAge:        0,
		MaxBytes:      0,
	}, testhelpers.NewLogger(testhelpers.NewWriter(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err = r.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { r.Stop(t.Context()) })
	return r
}

func traceFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRecorder_ObserveRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces")
	r := newRecorder(t, dir)

	r.ObserveRun(t.Context(), "nightly", 30*time.Second)
	if files := traceFiles(t, dir); len(files) != 0 {
		t.Fatalf("fast run captured %v", files)
	}

	r.ObserveRun(t.Context(), "nightly", 2*time.Minute)
	files := traceFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("slow run captured %d traces, want 1", len(files))
	}
	if !strings.HasPrefix(files[0], "slow-nightly-") || !strings.HasSuffix(files[0], ".trace") {
		t.Errorf("unexpected trace file name %q", files[0])
	}

	// The second slow run falls within the cooldown.
	r.ObserveRun(t.Context(), "weekly", 2*time.Minute)
	if files = traceFiles(t, dir); len(files) != 1 {
		t.Errorf("captured %d traces during cooldown, want 1", len(files))
	}
}

func TestRecorder_nil(t *testing.T) {
	var r *flightrecorder.Recorder
	if err := r.Start(t.Context()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	r.ObserveRun(t.Context(), "nightly", time.Hour)
	r.Stop(t.Context())
}

func TestNew_invalidConfig(t *testing.T) {
	logger := testhelpers.NewLogger(testhelpers.NewWriter(t))
	tests := []struct {
		name string
		cfg  flightrecorder.Config
	}{
		{name: "no dir", cfg: flightrecorder.Config{Dir: "", SlowThreshold: time.Minute}},
		{name: "no threshold", cfg: flightrecorder.Config{Dir: t.TempDir(), SlowThreshold: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := flightrecorder.New(tt.cfg, logger); err == nil {
				t.Error("New() error = nil")
			}
		})
	}
}
