package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrRateLimited is returned when the provider throttles the request.
var ErrRateLimited = errors.New("advisor rate limited")

var anthropicModels = map[string]string{
	"claude-sonnet": "claude-sonnet-4-20250514",
	"claude-haiku":  "claude-haiku-4-5-20251001",
}

// AnthropicConfig defines configuration options for the Anthropic advisor.
type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	MaxRetries  int
	Logger      zerolog.Logger
}

// AnthropicAdvisor implements Advisor against the Anthropic messages API.
type AnthropicAdvisor struct {
	client *anthropic.Client
	cfg    AnthropicConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicAdvisor builds a new advisor using the provided configuration.
func NewAnthropicAdvisor(cfg AnthropicConfig) (*AnthropicAdvisor, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = "claude-haiku"
	}
	if id, ok := anthropicModels[cfg.Model]; ok {
		cfg.Model = id
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicAdvisor{
		client: &client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-ews-api/pkg/ai/anthropic"),
		logger: cfg.Logger.With().Str("component", "anthropic_advisor").Logger(),
	}, nil
}

// Brief asks Claude for a short intervention note and parses its JSON reply.
func (a *AnthropicAdvisor) Brief(parent context.Context, input BriefInput) (Brief, error) {
	ctx, span := a.tracer.Start(parent, "anthropic.brief", trace.WithAttributes(
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

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: int64(a.cfg.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: advisorSystemPrompt()}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildBriefPrompt(input))),
		},
	}
	if a.cfg.Temperature > 0 {
		params.Temperature = anthropic.Float(a.cfg.Temperature)
	}

	start := time.Now()
	msg, err := a.client.Messages.New(ctx, params)
	briefDuration.WithLabelValues(a.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return fail(mapAnthropicError(err))
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return fail(fmt.Errorf("no text content in anthropic response"))
	}

	brief, err := parseBrief(stripCodeFence(text))
	if err != nil {
		return fail(err)
	}
	brief.Model = string(msg.Model)
	if brief.Model == "" {
		brief.Model = a.cfg.Model
	}

	a.logger.Debug().
		Str("student_id", input.StudentID).
		Int64("input_tokens", msg.Usage.InputTokens).
		Int64("output_tokens", msg.Usage.OutputTokens).
		Msg("brief drafted")
	return brief, nil
}

func mapAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("anthropic brief: %w", ErrRateLimited)
	}
	return fmt.Errorf("anthropic brief: %w", err)
}

// stripCodeFence unwraps ```json fenced replies.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
