package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

// Compare defaults for parameters a request leaves out.
const (
	DefaultCompareTemperature = 0.7
	DefaultCompareMaxTokens   = 1024
	DefaultCompareTopP        = 0.9
)

// MetricsRecorder persists one generation metric.
type MetricsRecorder interface {
	Record(ctx context.Context, m *models.GenerationMetric) error
}

// Service runs generations with timing, a per-call timeout and error
// absorption. It never returns provider errors: they become a result with
// finish_reason "error".
type Service struct {
	registry        *Registry
	timeout         time.Duration
	metrics         MetricsRecorder
	defaultProvider models.Provider
	logger          *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTimeout bounds each provider call. Zero disables the bound.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.timeout = d }
}

// WithMetrics records every generation to m.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithDefaultProvider sets the provider used for compare entries without a
// "provider:" prefix.
func WithDefaultProvider(p models.Provider) ServiceOption {
	return func(s *Service) { s.defaultProvider = p }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService returns a service dispatching through registry.
func NewService(registry *Registry, opts ...ServiceOption) *Service {
	s := &Service{registry: registry, defaultProvider: models.ProviderHuggingFace}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Generate runs req on its provider.
func (s *Service) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	start := time.Now()
	res, err := s.generate(ctx, req)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		s.logger.Warn("generation failed",
			zap.String("provider", string(req.Provider)),
			zap.String("model", req.ModelName),
			zap.Error(err))
		res = ErrorResult(req, err)
	}
	res.Provider = string(req.Provider)
	res.LatencyMS = latency
	if res.FinishReason == "" {
		res.FinishReason = models.FinishStop
	}
	s.record(ctx, &res)
	return res
}

func (s *Service) generate(ctx context.Context, req models.GenerationRequest) (models.GenerationResult, error) {
	p, err := s.registry.Resolve(req.Provider)
	if err != nil {
		return models.GenerationResult{}, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return p.Generate(ctx, req)
}

func (s *Service) record(ctx context.Context, res *models.GenerationResult) {
	if s.metrics == nil {
		return
	}
	m := &models.GenerationMetric{
		Timestamp:  time.Now().UTC(),
		ModelName:  res.ModelName,
		Provider:   res.Provider,
		TokensUsed: res.TotalTokens,
		LatencyMS:  res.LatencyMS,
		Success:    !res.Failed(),
	}
	if err := s.metrics.Record(context.WithoutCancel(ctx), m); err != nil {
		s.logger.Warn("failed to record generation metric", zap.Error(err))
	}
}

// ErrorResult is the apology result returned in place of a failed generation.
func ErrorResult(req models.GenerationRequest, err error) models.GenerationResult {
	return models.GenerationResult{
		Text: fmt.Sprintf("Sorry, I encountered an error while generating a response: %v. "+
			"Please try a different model or check your configuration.", err),
		ModelName:    modelOr(req.ModelName, "error"),
		Provider:     string(req.Provider),
		FinishReason: models.FinishError,
	}
}

// Compare runs the prompt on every model concurrently and returns one result
// per model in request order. Entries may be "provider:model"; bare names use
// the default provider.
func (s *Service) Compare(ctx context.Context, req models.ComparisonRequest) *models.ComparisonResponse {
	base := models.GenerationRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		Temperature:  floatParam(req.Parameters, "temperature", DefaultCompareTemperature),
		MaxTokens:    int(floatParam(req.Parameters, "max_tokens", DefaultCompareMaxTokens)),
		TopP:         floatParam(req.Parameters, "top_p", DefaultCompareTopP),
	}
	if base.SystemPrompt == "" {
		if sp, ok := req.Parameters["system_prompt"].(string); ok {
			base.SystemPrompt = sp
		}
	}

	out := make([]models.GenerationResult, len(req.Models))
	var wg sync.WaitGroup
	for i, entry := range req.Models {
		r := base
		r.Provider, r.ModelName = s.ParseModel(entry)
		wg.Add(1)
		go func(i int, r models.GenerationRequest) {
			defer wg.Done()
			defer func() {
				if v := recover(); v != nil {
					s.logger.Error("compare generation panicked", zap.String("model", r.ModelName), zap.Any("panic", v))
					out[i] = models.GenerationResult{
						Text:         fmt.Sprintf("Error: %v", v),
						ModelName:    r.ModelName,
						Provider:     string(r.Provider),
						FinishReason: models.FinishError,
					}
				}
			}()
			out[i] = s.Generate(ctx, r)
		}(i, r)
	}
	wg.Wait()

	return &models.ComparisonResponse{
		Prompt:       req.Prompt,
		Responses:    out,
		ComparisonID: uuid.New().String(),
		Timestamp:    time.Now().UTC(),
	}
}

// ParseModel splits "provider:model". Names without a known provider prefix,
// such as "llama2:7b", go to the default provider unchanged.
func (s *Service) ParseModel(entry string) (models.Provider, string) {
	if i := strings.Index(entry, ":"); i > 0 {
		if p := models.Provider(entry[:i]); IsKnown(p) {
			return p, entry[i+1:]
		}
	}
	return s.defaultProvider, entry
}

func floatParam(params map[string]interface{}, key string, def float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}
