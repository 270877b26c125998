package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/design-feed/internal/llm"
	"github.com/fleveque/design-feed/internal/model"
	"github.com/fleveque/design-feed/internal/storage"
)

// ErrAdviceUnavailable is returned when no LLM provider produced advice.
var ErrAdviceUnavailable = errors.New("design advice is temporarily unavailable")

// ErrAdviceRateLimited is returned when the local call quota is used up.
var ErrAdviceRateLimited = errors.New("design advice rate limit reached")

// AdviceService asks LLM clients for design advice in configured order.
// First success wins; failures fall through to the next client.
// Calls are rate limited to keep API costs bounded, and every call is
// recorded for cost tracking.
type AdviceService struct {
	clients     []llm.Client
	limiter     *rate.Limiter
	llmCallRepo storage.LLMCallRepository
	logger      *zap.Logger
}

// NewAdviceService creates a service over an ordered list of clients.
// The order comes from config (llm.provider_order), so swapping priority
// is a config change, not a code change.
func NewAdviceService(
	clients []llm.Client,
	ratePerMinute int,
	llmCallRepo storage.LLMCallRepository,
	logger *zap.Logger,
) *AdviceService {
	if ratePerMinute <= 0 {
		ratePerMinute = 10
	}
	return &AdviceService{
		clients:     clients,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), ratePerMinute),
		llmCallRepo: llmCallRepo,
		logger:      logger,
	}
}

// Enabled reports whether any LLM provider is configured.
func (s *AdviceService) Enabled() bool { return len(s.clients) > 0 }

// Advise returns advice from the first client that succeeds.
func (s *AdviceService) Advise(ctx context.Context, req llm.AdviceRequest) (*llm.Advice, error) {
	if len(s.clients) == 0 {
		return nil, fmt.Errorf("no LLM providers configured: %w", ErrAdviceUnavailable)
	}
	// Allow rather than Wait: a request never queues behind the quota.
	if !s.limiter.Allow() {
		return nil, ErrAdviceRateLimited
	}

	var lastErr error
	for i, client := range s.clients {
		advice, err := s.tryClient(ctx, client, req)
		if err == nil {
			return advice, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if i < len(s.clients)-1 {
			s.logger.Warn("LLM provider failed, trying next",
				zap.String("subject", req.Subject()),
				zap.String("provider", client.ProviderName()),
				zap.Error(err),
			)
		}
	}

	s.logger.Error("all LLM providers failed",
		zap.String("subject", req.Subject()),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%w: %v", ErrAdviceUnavailable, lastErr)
}

func (s *AdviceService) tryClient(ctx context.Context, client llm.Client, req llm.AdviceRequest) (*llm.Advice, error) {
	start := time.Now()
	advice, err := client.Advise(ctx, req)
	s.recordCall(ctx, client, req, err, time.Since(start).Milliseconds())
	return advice, err
}

func (s *AdviceService) recordCall(ctx context.Context, client llm.Client, req llm.AdviceRequest, callErr error, durationMs int64) {
	if s.llmCallRepo == nil {
		return
	}
	call := &model.LLMCall{
		Subject:    req.Subject(),
		Provider:   client.ProviderName(),
		Model:      client.ModelName(),
		Success:    callErr == nil,
		DurationMs: &durationMs,
	}
	if err := s.llmCallRepo.Create(context.WithoutCancel(ctx), call); err != nil {
		s.logger.Error("recording LLM call", zap.Error(err))
	}
}
