// Package llm implements the LLM field extraction fallback used when
// heuristic extraction cannot settle a field.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/medclaims-analyzer-server/internal/domain"
)

const systemPrompt = `You are a medical claims data extraction assistant.
You are given the text of one or more claim documents and a list of field
names. Respond with a single JSON object mapping each requested field name
to its value as found in the text. Use "" for fields you cannot find.
Dates must be formatted YYYY-MM-DD. Amounts must be plain numbers without
currency symbols or thousands separators. Respond with JSON only.`

// maxPromptChars bounds the document text sent per request.
const maxPromptChars = 24000

// Config holds OpenAI provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Timeout     time.Duration
	MaxAttempts int
}

// OpenAIProvider extracts fields via the OpenAI chat completions API. Calls
// run behind a circuit breaker so a degraded upstream fails fast instead of
// stalling every claim run.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	maxAttempts int
	breaker     *gobreaker.CircuitBreaker
	log         *logrus.Logger
}

// NewOpenAIProvider creates a provider from config. Zero values fall back
// to safe defaults.
func NewOpenAIProvider(cfg Config, logger *logrus.Logger) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 2
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "openai-extraction",
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		timeout:     timeout,
		maxAttempts: attempts,
		breaker:     breaker,
		log:         logger,
	}
}

// Name returns the provider identifier for logging.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// ExtractFields asks the model for the requested fields. Attempts are
// bounded; each attempt gets its own timeout. Returns an
// ExternalServiceError when every attempt fails.
func (p *OpenAIProvider) ExtractFields(ctx context.Context, text string, fields []string) (map[string]string, error) {
	if len(fields) == 0 {
		return map[string]string{}, nil
	}
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	userPrompt := fmt.Sprintf("Fields to extract: %s\n\nDocument text:\n%s",
		strings.Join(fields, ", "), text)

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		values, err := p.attempt(ctx, userPrompt, fields)
		if err == nil {
			return values, nil
		}
		lastErr = err
		p.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("LLM extraction attempt failed")

		if ctx.Err() != nil {
			break
		}
	}

	return nil, &domain.ExternalServiceError{
		Service: "openai",
		Op:      "extract fields",
		Err:     lastErr,
	}
}

func (p *OpenAIProvider) attempt(ctx context.Context, userPrompt string, fields []string) (map[string]string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model:       p.model,
			Temperature: 0.0,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userPrompt},
			},
		})
	})
	if err != nil {
		return nil, err
	}

	resp := result.(openai.ChatCompletionResponse)
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	parsed, err := ParseModelJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing model output: %w", err)
	}

	// Keep only requested fields; the model sometimes volunteers extras.
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := parsed[f]; ok {
			values[f] = v
		}
	}
	return values, nil
}
