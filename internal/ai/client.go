// Package ai writes weekly report narratives with OpenAI chat completions.
package ai

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/myrjola/petrcoach/internal/coach"
	"github.com/myrjola/petrcoach/internal/errors"
)

const (
	DefaultModel   = "gpt-4o-mini"
	defaultTimeout = 15 * time.Second

	maxCompletionTokens = 200
	defaultMaxRetries   = 2
)

const systemPrompt = `You are a supportive strength coach writing a weekly training summary.
Write two or three short sentences in second person.
Only use the facts in the JSON you are given. Never invent numbers, dates, weights or percentages.
Do not repeat the JSON keys verbatim. Mention body data only if it is present and only to encourage.`

var errEmptyCompletion = errors.NewSentinel("completion has no choices")

// Config configures a NarrativeClient.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	// BaseURL overrides the OpenAI endpoint, mostly for tests.
	BaseURL    string
	MaxRetries int
}

// NarrativeClient implements coach.Narrator.
type NarrativeClient struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

var _ coach.Narrator = (*NarrativeClient)(nil)

// NewNarrativeClient creates an OpenAI backed narrator.
func NewNarrativeClient(cfg Config, logger *slog.Logger) *NarrativeClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &NarrativeClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}
}

// Narrate asks the model for a summary of the facts.
func (c *NarrativeClient) Narrate(ctx context.Context, facts coach.NarrativeFacts) (coach.Narrative, error) {
	encoded, err := json.Marshal(facts)
	if err != nil {
		return coach.Narrative{}, errors.Wrap(err, "marshal narrative facts")
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "sending chat completion request", slog.String("model", c.model))
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(string(encoded)),
		},
		MaxCompletionTokens: openai.Int(maxCompletionTokens),
	})
	if err != nil {
		return coach.Narrative{}, errors.Wrap(err, "chat completion", slog.String("model", c.model))
	}
	if len(completion.Choices) == 0 {
		return coach.Narrative{}, errors.Wrap(errEmptyCompletion, "chat completion", slog.String("model", c.model))
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "received chat completion response",
		slog.Int64("prompt_tokens", completion.Usage.PromptTokens),
		slog.Int64("completion_tokens", completion.Usage.CompletionTokens))
	return coach.Narrative{
		Text:         completion.Choices[0].Message.Content,
		InputTokens:  completion.Usage.PromptTokens,
		OutputTokens: completion.Usage.CompletionTokens,
	}, nil
}
