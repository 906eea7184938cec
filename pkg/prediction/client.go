package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 32 << 20

// ErrNotConfigured indicates no prediction service URL was provided.
var ErrNotConfigured = errors.New("prediction service url not configured")

// ErrInvalidResponse indicates the prediction service replied with an unexpected payload.
var ErrInvalidResponse = errors.New("invalid prediction response")

const responseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["results"],
  "properties": {
    "results": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "RISKLevel", "Reasons"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "RISKLevel": {"type": "string"},
          "Reasons": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// Result is one student's prediction as returned by the model.
type Result struct {
	ID      string   `json:"id"`
	Level   string   `json:"RISKLevel"`
	Reasons []string `json:"Reasons"`
}

type batchResponse struct {
	Results []Result `json:"results"`
}

// Client calls the external bulk prediction endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	schema  *jsonschema.Schema
	logger  zerolog.Logger
}

// New builds a client for the service rooted at baseURL.
func New(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	schema, err := jsonschema.CompileString("prediction_response.json", responseSchema)
	if err != nil {
		return nil, fmt.Errorf("compile prediction schema: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		schema: schema,
		logger: logger.With().Str("component", "prediction_client").Logger(),
	}, nil
}

// PredictAll asks the model to score every student it knows about.
func (c *Client) PredictAll(ctx context.Context) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict-all", bytes.NewReader(nil))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call prediction service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("prediction service returned error status")
		return nil, fmt.Errorf("%w: status %d", ErrInvalidResponse, resp.StatusCode)
	}

	var raw interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := c.schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	var payload batchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return payload.Results, nil
}
