package ai_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/myrjola/petrcoach/internal/ai"
	"github.com/myrjola/petrcoach/internal/coach"
	"github.com/myrjola/petrcoach/internal/ptr"
	"github.com/myrjola/petrcoach/internal/testhelpers"
)

const completionResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1760000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "You trained 3 times this week. Keep going."}
  }],
  "usage": {"prompt_tokens": 120, "completion_tokens": 14, "total_tokens": 134}
}`

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func Test_NarrativeClient_Narrate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse))
	}))
	defer srv.Close()

	client := ai.NewNarrativeClient(ai.Config{
		APIKey:     "test",
		Model:      "",
		Timeout:    0,
		BaseURL:    srv.URL,
		MaxRetries: 0,
	}, testhelpers.NewLogger(testhelpers.NewWriter(t)))

	facts := coach.NarrativeFacts{
		WorkoutsCount:             3,
		VolumeDeltaPct:            ptr.Ref(12.5),
		PrimaryTrainingMistakeKey: nil,
		WeeklyFocusKey:            ptr.Ref("maintain_consistency"),
		PositiveSignalKey:         ptr.Ref("volume_up"),
		UserWeightKg:              nil,
		UserHeightCm:              nil,
		UserAgeYears:              nil,
		UserGender:                nil,
	}
	n, err := client.Narrate(t.Context(), facts)
	if err != nil {
		t.Fatalf("Narrate() error = %v", err)
	}

	want := coach.Narrative{
		Text:         "You trained 3 times this week. Keep going.",
		InputTokens:  120,
		OutputTokens: 14,
	}
	if diff := cmp.Diff(want, n); diff != "" {
		t.Errorf("Narrate() mismatch (-want +got):\n%s", diff)
	}

	if got.Model != ai.DefaultModel {
		t.Errorf("model = %q, want %q", got.Model, ai.DefaultModel)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	var sent coach.NarrativeFacts
	if err = json.Unmarshal([]byte(got.Messages[1].Content), &sent); err != nil {
		t.Fatalf("user message is not the facts JSON: %v", err)
	}
	if diff := cmp.Diff(facts, sent); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
}

func Test_NarrativeClient_Narrate_errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{name: "server error", status: http.StatusInternalServerError, payload: `{"error":{"message":"boom"}}`},
		{name: "no choices", status: http.StatusOK, payload: `{"id":"x","object":"chat.completion","choices":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			client := ai.NewNarrativeClient(ai.Config{
				APIKey:     "test",
				Model:      "gpt-4o-mini",
				Timeout:    0,
				BaseURL:    srv.URL,
				MaxRetries: 0,
			}, testhelpers.NewLogger(testhelpers.NewWriter(t)))
			if _, err := client.Narrate(t.Context(), coach.NarrativeFacts{}); err == nil {
				t.Error("Narrate() error = nil, want error")
			}
		})
	}
}
