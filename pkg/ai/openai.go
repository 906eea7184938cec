package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotConfigured indicates no API key was supplied.
var ErrNotConfigured = errors.New("advisor api key is required")

var (
	briefDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ews",
		Subsystem: "ai",
		Name:      "brief_duration_seconds",
		Help:      "Duration of intervention brief requests",
	}, []string{"model"})

	briefFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ews",
		Subsystem: "ai",
		Name:      "brief_failures_total",
		Help:      "Number of failed intervention brief requests",
	}, []string{"model"})
)

var urgencies = map[string]struct{}{"low": {}, "medium": {}, "high": {}}

// OpenAIConfig defines configuration options for the OpenAI advisor.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAdvisor implements Advisor against the OpenAI chat completion API.
type OpenAIAdvisor struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAdvisor builds a new advisor using the provided configuration.
func NewOpenAIAdvisor(cfg OpenAIConfig) (*OpenAIAdvisor, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIAdvisor{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-ews-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_advisor").Logger(),
	}, nil
}

// Brief asks the model for a short intervention note and parses its JSON reply.
func (a *OpenAIAdvisor) Brief(parent context.Context, input BriefInput) (Brief, error) {
	ctx, span := a.tracer.Start(parent, "openai.brief", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.String("tier", input.Tier),
	))
	defer span.End()

	fail := func(err error) (Brief, error) {
		briefFailures.WithLabelValues(a.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Brief{}, err
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: advisorSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildBriefPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	briefDuration.WithLabelValues(a.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(fmt.Errorf("openai brief: %w", err))
	}

	if len(resp.Choices) == 0 {
		return fail(fmt.Errorf("no choices returned from openai"))
	}

	brief, err := parseBrief(resp.Choices[0].Message.Content)
	if err != nil {
		return fail(err)
	}
	brief.Model = resp.Model
	if brief.Model == "" {
		brief.Model = a.cfg.Model
	}

	a.logger.Debug().Str("student_id", input.StudentID).Int("total_tokens", resp.Usage.TotalTokens).Msg("brief drafted")
	return brief, nil
}

func advisorSystemPrompt() string {
	return "You support school mentors who follow up on students flagged by an early-warning system. " +
		"Respond with a JSON object containing summary (two sentences at most), actions (up to three concrete " +
		"next steps for the mentor) and urgency (low, medium or high). Do not speculate beyond the data given."
}

// buildBriefPrompt only carries the student id; names and contact details are never sent.
func buildBriefPrompt(input BriefInput) string {
	builder := strings.Builder{}
	fmt.Fprintf(&builder, "# Student %s\n", input.StudentID)
	fmt.Fprintf(&builder, "Tier: %s (composite risk %d/100)\n", input.Tier, input.CompositeScore)
	if input.PredictedLevel != "" {
		fmt.Fprintf(&builder, "Model prediction: %s\n", input.PredictedLevel)
	}
	builder.WriteString("\n## Signals\n")
	fmt.Fprintf(&builder, "- attendance: %.1f%%\n", input.AttendancePercent)
	fmt.Fprintf(&builder, "- average score: %.1f\n", input.AverageScore)
	if input.ScoreDropPercent > 0 {
		fmt.Fprintf(&builder, "- score drop since last term: %.1f%%\n", input.ScoreDropPercent)
	}
	if input.FeePending > 0 {
		fmt.Fprintf(&builder, "- fees pending: %.2f, %d days overdue\n", input.FeePending, input.DaysOverdue)
	}
	if input.Attempts > 0 {
		fmt.Fprintf(&builder, "- repeated attempts: %d\n", input.Attempts)
	}
	if len(input.Reasons) > 0 {
		builder.WriteString("\n## Flags\n")
		for _, reason := range input.Reasons {
			fmt.Fprintf(&builder, "- %s\n", reason)
		}
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseBrief(content string) (Brief, error) {
	var brief Brief
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &brief); err != nil {
		return Brief{}, fmt.Errorf("parse brief json: %w", err)
	}

	brief.Summary = strings.TrimSpace(brief.Summary)
	if brief.Summary == "" {
		return Brief{}, fmt.Errorf("brief summary missing")
	}

	if len(brief.Actions) > 3 {
		brief.Actions = brief.Actions[:3]
	}
	if brief.Actions == nil {
		brief.Actions = []string{}
	}

	brief.Urgency = strings.ToLower(strings.TrimSpace(brief.Urgency))
	if _, ok := urgencies[brief.Urgency]; !ok {
		brief.Urgency = "medium"
	}

	return brief, nil
}
