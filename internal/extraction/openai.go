package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// OpenAIExtractor extracts deltas through langchaingo's OpenAI client.
// Any OpenAI-compatible chat endpoint works.
type OpenAIExtractor struct {
	llm        llms.Model
	model      string
	maxTokens  int
	limiter    *rate.Limiter
	maxRetries int
	cfg        Config
	logger     *zap.Logger
}

// NewOpenAIExtractor creates an OpenAI-backed extractor.
func NewOpenAIExtractor(cfg Config, logger *zap.Logger) (*OpenAIExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key required", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults(defaultOpenAIModel, defaultOpenAIBaseURL)

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return newOpenAIExtractorWithModel(llm, cfg, logger), nil
}

func newOpenAIExtractorWithModel(llm llms.Model, cfg Config, logger *zap.Logger) *OpenAIExtractor {
	cfg = cfg.withDefaults(defaultOpenAIModel, defaultOpenAIBaseURL)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIExtractor{
		llm:        llm,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		maxRetries: cfg.MaxRetries,
		cfg:        cfg,
		logger:     logger,
	}
}

// Name returns "openai".
func (o *OpenAIExtractor) Name() string { return ProviderOpenAI }

// Extract sends the diff as a chat completion and parses the deltas.
func (o *OpenAIExtractor) Extract(ctx context.Context, diff QuoteDiff) ([]Delta, error) {
	if err := diff.Validate(); err != nil {
		return nil, err
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	userContent, err := renderDiff(diff)
	if err != nil {
		return nil, err
	}
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, deltaPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userContent),
	}

	var content string
	err = withRetry(ctx, o.maxRetries, o.cfg.BaseBackoff, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()

		resp, err := o.llm.GenerateContent(callCtx, messages,
			llms.WithModel(o.model),
			llms.WithTemperature(0.2),
			llms.WithMaxTokens(o.maxTokens),
		)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return err
			}
			o.logger.Debug("openai request failed, retrying",
				zap.String("quote_id", diff.QuoteID),
				zap.Error(err))
			return &retryableError{err: fmt.Errorf("API request failed: %w", err)}
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty response from API")
		}
		content = resp.Choices[0].Content
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parseDeltasJSON(content)
}

var _ Extractor = (*OpenAIExtractor)(nil)
