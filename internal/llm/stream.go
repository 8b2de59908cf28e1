package llm

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"hermes/internal/metrics"
	"hermes/pkg/errors"
)

// StreamOptions bounds one streaming chat call. Zero values fall back to
// the gateway config.
type StreamOptions struct {
	Model            string
	MaxTokens        int
	Temperature      float64
	CostCapUSD       float64
	Timeout          time.Duration
	RetryMaxAttempts int
}

func (g *Gateway) fillStreamDefaults(opts StreamOptions) StreamOptions {
	if opts.Model == "" {
		opts.Model = g.cfg.Model
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = g.cfg.MaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = g.cfg.Temperature
	}
	if opts.CostCapUSD == 0 {
		opts.CostCapUSD = g.cfg.CostCapUSD
	}
	if opts.Timeout == 0 {
		opts.Timeout = g.cfg.RequestTimeout
	}
	return opts
}

// StreamChat opens a streaming completion and returns its text fragments
// as a lazy, consumer-driven sequence. Each call starts a fresh stream.
//
// The pre-flight cost estimate blocks the request before any billable
// provider call; mid-stream timeouts abort as Transient; Transient
// failures restart the whole call from scratch up to the attempt limit.
// The producer stops as soon as ctx is cancelled or the consumer stops
// reading, so no background work is orphaned.
func (g *Gateway) StreamChat(ctx context.Context, messages []Message, opts StreamOptions) (<-chan string, <-chan error) {
	opts = g.fillStreamDefaults(opts)

	chunks := make(chan string)
	errCh := make(chan error, 1)

	// Pre-flight gate: estimated prompt tokens plus the full completion
	// budget, priced before any provider call is made.
	promptTokens := EstimatePromptTokens(messages)
	estimate := EstimateCost(opts.Model, promptTokens, opts.MaxTokens)
	if estimate.GreaterThan(decimal.NewFromFloat(opts.CostCapUSD)) {
		metrics.LLMCostCapRejections.WithLabelValues(opts.Model, "stream").Inc()
		errCh <- Permanent(errors.Wrapf(errors.ErrCostCapExceeded,
			"pre-flight estimate $%s exceeds cap $%.4f", estimate.StringFixed(6), opts.CostCapUSD))
		close(errCh)
		close(chunks)
		return chunks, errCh
	}

	payload := Payload{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	go func() {
		defer close(chunks)
		defer close(errCh)

		start := time.Now()
		maxAttempts := opts.RetryMaxAttempts + 1

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			err := g.streamOnce(ctx, payload, start, opts.Timeout, chunks)
			if err == nil {
				return
			}
			if IsPermanent(err) || attempt == maxAttempts {
				errCh <- err
				return
			}
			g.log.Warnf("Transient stream error (attempt %d/%d): %v", attempt, maxAttempts, err)
		}
	}()

	return chunks, errCh
}

// streamOnce runs a single stream attempt, forwarding non-empty fragments
// to out. The timeout is cooperative, checked between chunks, and also
// enforced at the transport level via the context deadline.
func (g *Gateway) streamOnce(ctx context.Context, payload Payload, start time.Time, timeout time.Duration, out chan<- string) error {
	streamCtx, cancel := context.WithDeadline(ctx, start.Add(timeout))
	defer cancel()

	stream, err := g.streamProvider(streamCtx, payload)
	if err != nil {
		if IsPermanent(err) || IsTransient(err) {
			return err
		}
		return Transient(errors.Wrap(err, "open stream"))
	}
	defer func() { _ = stream.Close() }()

	for {
		if time.Since(start) > timeout {
			return Transient(errors.Wrapf(errors.ErrTimeout, "stream elapsed %s exceeds %s", time.Since(start).Round(time.Millisecond), timeout))
		}

		chunk, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if IsPermanent(err) || IsTransient(err) {
				return err
			}
			return Transient(errors.Wrap(err, "stream recv"))
		}

		content := extractContent(chunk)
		if content == "" {
			continue
		}

		select {
		case out <- content:
		case <-streamCtx.Done():
			return Transient(errors.Wrap(streamCtx.Err(), "stream consumer gone"))
		}
	}
}
