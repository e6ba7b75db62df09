package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerleaf/payeewise/internal/common"
	"github.com/ledgerleaf/payeewise/internal/service"
)

// Oracle wraps a provider client with rate limiting and retry. It is the
// Client implementation handed to the resolution and clustering engines.
type Oracle struct {
	client      Client
	logger      *slog.Logger
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
}

// NewOracle creates a rate-limited, retrying oracle client.
func NewOracle(cfg Config, logger *slog.Logger) (*Oracle, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}

	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	return &Oracle{
		client:      client,
		logger:      logger,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		retryOpts:   retryOpts,
	}, nil
}

// Capabilities reports the underlying provider's capabilities.
func (o *Oracle) Capabilities() Capabilities {
	return o.client.Capabilities()
}

// GenerateText performs a rate-limited free-text call with retry.
func (o *Oracle) GenerateText(ctx context.Context, req Request) (string, error) {
	if err := o.rateLimiter.wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit error: %w", err)
	}

	req = o.downgrade(req)

	var result string
	err := common.WithRetry(ctx, func() error {
		text, err := o.client.GenerateText(ctx, req)
		if err != nil {
			o.logger.Warn("oracle text generation attempt failed", "error", err)
			return &common.RetryableError{Err: err, Retryable: true}
		}
		result = text
		return nil
	}, o.retryOpts)

	if err != nil {
		return "", fmt.Errorf("oracle text generation failed: %w", err)
	}
	return result, nil
}

// GenerateObject performs a rate-limited structured call with retry.
func (o *Oracle) GenerateObject(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := o.rateLimiter.wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	req = o.downgrade(req)

	var result json.RawMessage
	err := common.WithRetry(ctx, func() error {
		raw, err := o.client.GenerateObject(ctx, req)
		if err != nil {
			o.logger.Warn("oracle object generation attempt failed", "error", err)
			return &common.RetryableError{Err: err, Retryable: true}
		}
		result = raw
		return nil
	}, o.retryOpts)

	if err != nil {
		return nil, fmt.Errorf("oracle object generation failed: %w", err)
	}
	return result, nil
}

// downgrade strips capabilities the provider cannot honor.
func (o *Oracle) downgrade(req Request) Request {
	if req.WebSearch && !o.client.Capabilities().WebSearch {
		o.logger.Debug("provider does not support web search, downgrading request")
		req.WebSearch = false
	}
	return req
}

// Close stops background goroutines and cleans up resources.
func (o *Oracle) Close() error {
	if o.rateLimiter != nil {
		o.rateLimiter.Close()
	}
	return nil
}
