package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"productlens/metrics"
	"productlens/schema"
)

// State is a step of the blocked-response fallback.
type State int

const (
	StateInitial State = iota
	StateBlocked
	StateTextOnlyRetry
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateBlocked:
		return "blocked"
	case StateTextOnlyRetry:
		return "text_only_retry"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UnknownReason is reported when a block carries no moderation reason.
const UnknownReason = "Unknown"

// ErrTransport marks network or SDK level failures of a provider call.
var ErrTransport = errors.New("provider transport failure")

// ErrEmptyResponse marks a response with no usable content.
var ErrEmptyResponse = errors.New("empty response")

// BlockedError is a request the provider refused to answer.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "request blocked by provider (reason: " + e.reason() + ")"
}

func (e *BlockedError) reason() string {
	if e.Reason == "" {
		return UnknownReason
	}
	return e.Reason
}

// transportError wraps err so that errors.Is(err, ErrTransport) holds.
func transportError(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// blockReason extracts the moderation reason of a blocking failure.
func blockReason(err error) string {
	var be *BlockedError
	if errors.As(err, &be) {
		return be.reason()
	}
	return UnknownReason
}

// terminal reports failures that must not trigger the text-only retry.
func terminal(ctx context.Context, err error) bool {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return ctx.Err() != nil
}

// attemptFunc performs one provider call. A nil error means the product
// passed schema validation.
type attemptFunc func(ctx context.Context, req Request) (*schema.ProductSchema, error)

// generateWithFallback runs attempt through the blocked-response state
// machine. Any failure other than schema validation or cancellation puts
// the first attempt in the blocked state. From there a request with
// images is retried exactly once without them; a request without images
// fails with the block reason.
func generateWithFallback(ctx context.Context, logger *slog.Logger, family Family, req Request, attempt attemptFunc) (*Outcome, error) {
	start := time.Now()
	state := StateInitial
	out := &Outcome{}

	log := logger.With("family", string(family), "model", req.Model)

	for {
		switch state {
		case StateInitial:
			out.Attempts++
			product, err := attempt(ctx, req)
			if err == nil {
				out.Product = product
				state = StateDone
				continue
			}
			if terminal(ctx, err) {
				log.Warn("provider attempt failed", "attempt", out.Attempts, "error", err)
				metrics.ProviderRequest(string(family), metrics.OutcomeFailed, time.Since(start))
				return nil, err
			}
			out.BlockReason = blockReason(err)
			log.Warn("provider response blocked",
				"attempt", out.Attempts,
				"reason", out.BlockReason,
				"images", len(req.Images),
				"error", err)
			state = StateBlocked

		case StateBlocked:
			if !req.HasImages() {
				metrics.ProviderRequest(string(family), metrics.OutcomeBlocked, time.Since(start))
				return nil, &BlockedError{Reason: out.BlockReason}
			}
			state = StateTextOnlyRetry

		case StateTextOnlyRetry:
			out.Attempts++
			out.TextOnlyRetry = true
			log.Info("retrying without images", "attempt", out.Attempts, "reason", out.BlockReason)
			if req.OnRetry != nil {
				req.OnRetry(out.BlockReason)
			}

			product, err := attempt(ctx, req.TextOnly())
			if err != nil {
				log.Warn("text-only retry failed", "attempt", out.Attempts, "error", err)
				metrics.ProviderRequest(string(family), metrics.OutcomeFailed, time.Since(start))
				var be *BlockedError
				if errors.As(err, &be) || errors.Is(err, ErrEmptyResponse) {
					return nil, &BlockedError{Reason: blockReason(err)}
				}
				return nil, fmt.Errorf("text-only retry: %w", err)
			}
			out.Product = product
			state = StateDone

		case StateDone:
			outcome := metrics.OutcomeOK
			if out.TextOnlyRetry {
				outcome = metrics.OutcomeTextOnly
			}
			metrics.ProviderRequest(string(family), outcome, time.Since(start))
			return out, nil
		}
	}
}

// parseProduct validates raw model output against the product schema.
func parseProduct(text string) (*schema.ProductSchema, error) {
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return schema.Parse([]byte(text))
}
