package llm

import (
	"context"
	"time"

	"finscholars/backend/metrics"
	"finscholars/backend/utils"
)

// LoggingProvider logs every request and observes its latency.
type LoggingProvider struct {
	inner  Provider
	logger *utils.Logger
}

func WithLogging(p Provider, logger *utils.Logger) Provider {
	return &LoggingProvider{inner: p, logger: logger}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.LLMRequestDuration.WithLabelValues(purpose, status).Observe(elapsed.Seconds())

	fields := []interface{}{
		"model", l.inner.ModelID(),
		"purpose", purpose,
		"latency_ms", elapsed.Milliseconds(),
	}
	if resp != nil {
		fields = append(fields,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"stop_reason", resp.StopReason,
		)
	}
	if err != nil {
		l.logger.Warn("llm request failed", append(fields, "error", err)...)
	} else {
		l.logger.Debug("llm request", fields...)
	}
	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
