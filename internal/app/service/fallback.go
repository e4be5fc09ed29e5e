package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/pkg/metrics"

	"github.com/google/uuid"
)

// ConfirmFallback runs the individual transfers offered after a capability rejection.
// Nothing is sent before this is called.
func (o *Orchestrator) ConfirmFallback(ctx context.Context) (entity.FallbackSummary, error) {
	o.mu.Lock()
	offer := o.offer
	if offer == nil || o.state != entity.StateFallbackOffered {
		o.mu.Unlock()
		return entity.FallbackSummary{}, entity.ErrNoFallbackOffered
	}
	if !o.Sessions.IsCurrent(offer.session) {
		o.offer = nil
		o.state = entity.StateIdle
		o.mu.Unlock()
		return entity.FallbackSummary{}, entity.ErrStaleSession
	}
	attempt := offer.attempt
	attempt.ID = uuid.NewString()
	attempt.Mode = entity.ModeFallback
	attempt.StartedAt = time.Now().UTC()
	o.offer = nil
	o.active = attempt.ID
	o.activeSess = offer.session
	o.state = entity.StateFallbackRunning
	o.mu.Unlock()

	return o.runFallback(ctx, attempt, offer.session, offer.tokens)
}

// DeclineFallback drops the pending offer and leaves the attempt failed.
func (o *Orchestrator) DeclineFallback() error {
	o.mu.Lock()
	offer := o.offer
	if offer == nil || o.state != entity.StateFallbackOffered {
		o.mu.Unlock()
		return entity.ErrNoFallbackOffered
	}
	o.offer = nil
	o.state = entity.StateFailed
	o.mu.Unlock()

	o.publish(entity.SeverityInfo, "Fallback transfer declined")
	attempt := offer.attempt
	attempt.State = entity.StateFailed
	if attempt.Error == "" {
		attempt.Error = "fallback declined"
	}
	o.record(context.Background(), attempt)
	return nil
}

// ExecuteTraditional sends every token as an individual transaction. Callers must
// have obtained the user's confirmation first.
func (o *Orchestrator) ExecuteTraditional(ctx context.Context, session entity.Session, recipient string) (entity.FallbackSummary, error) {
	attempt, tokens, err := o.begin(session, recipient, entity.ModeFallback, entity.StateFallbackRunning)
	if err != nil {
		return entity.FallbackSummary{}, err
	}
	return o.runFallback(ctx, attempt, session, tokens)
}

// runFallback sends one transfer per token in discovery order, pausing between
// submissions. A failed token is counted and the loop moves on.
func (o *Orchestrator) runFallback(ctx context.Context, attempt entity.Attempt, session entity.Session, tokens []entity.TokenRecord) (entity.FallbackSummary, error) {
	o.publish(entity.SeverityInfo, "Starting individual transfers...")
	summary := entity.FallbackSummary{Results: make([]entity.FallbackResult, 0, len(tokens))}

	var stopErr error
	for i, token := range tokens {
		if !o.owns(attempt) {
			stopErr = entity.ErrStaleSession
			break
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		o.publish(entity.SeverityInfo, "Transferring %s (%d/%d)...", token.Symbol, i+1, len(tokens))

		result := entity.FallbackResult{Symbol: token.Symbol, Address: token.Address}
		hash, err := o.sendTransfer(ctx, session, token, attempt.Recipient, token.Balance)
		if err != nil {
			o.Logger.Warn("Individual transfer failed", "symbol", token.Symbol, "kind", entity.KindOf(err).String(), "error", err)
			result.Error = err.Error()
			summary.Failed++
			summary.Results = append(summary.Results, result)
			metrics.FallbackTransfers.WithLabelValues("failure").Inc()
			continue
		}

		o.Logger.Info("Individual transfer submitted", "symbol", token.Symbol, "txHash", hash)
		result.TxHash = hash
		summary.Succeeded++
		summary.Results = append(summary.Results, result)
		metrics.FallbackTransfers.WithLabelValues("success").Inc()

		if i < len(tokens)-1 {
			if err := sleepContext(ctx, o.cfg.InterTxDelay); err != nil {
				stopErr = err
				break
			}
		}
	}
	if stopErr != nil {
		for _, token := range tokens[len(summary.Results):] {
			summary.Failed++
			summary.Results = append(summary.Results, entity.FallbackResult{Symbol: token.Symbol, Address: token.Address, Error: "not sent: " + stopErr.Error()})
		}
	}

	attempt.Succeeded = summary.Succeeded
	attempt.Failed = summary.Failed
	attempt.State = entity.StateFallbackDone
	if !summary.Success() {
		attempt.Error = "no individual transfer succeeded"
	}

	if errors.Is(stopErr, entity.ErrStaleSession) {
		o.record(ctx, attempt)
		return summary, stopErr
	}

	o.mu.Lock()
	if o.active == attempt.ID {
		o.state = entity.StateFallbackDone
		o.lastSummary = &summary
		if summary.Success() {
			o.tokens = nil
		}
	}
	o.mu.Unlock()

	severity := entity.SeveritySuccess
	if !summary.Success() {
		severity = entity.SeverityError
	}
	o.publish(severity, "Individual transfers completed! Success: %d, Failed: %d", summary.Succeeded, summary.Failed)
	if summary.Success() {
		o.Observer.TokensUpdated(nil)
	}
	o.record(context.Background(), attempt)
	return summary, stopErr
}

// TestSingleTransfer sends 1% (at least one unit) of the first token as an ordinary transaction.
func (o *Orchestrator) TestSingleTransfer(ctx context.Context, session entity.Session, recipient string) (string, error) {
	attempt, tokens, err := o.begin(session, recipient, entity.ModeTest, entity.StateSubmitting)
	if err != nil {
		return "", err
	}
	token := tokens[0]
	amount := new(big.Int).Div(token.Balance, big.NewInt(100))
	if amount.Sign() <= 0 {
		amount = big.NewInt(1)
	}
	attempt.TokenCount = 1
	o.publish(entity.SeverityInfo, "Testing single token transfer with %s...", token.Symbol)

	hash, err := o.sendTransfer(ctx, session, token, recipient, amount)

	o.mu.Lock()
	if o.active == attempt.ID {
		o.state = entity.StateIdle
		o.active = ""
	}
	o.mu.Unlock()

	if err != nil {
		o.publish(entity.SeverityError, "Single transfer test failed: %v", err)
		attempt.State = entity.StateFailed
		attempt.Error = err.Error()
		attempt.Failed = 1
		o.record(ctx, attempt)
		return "", err
	}
	o.publish(entity.SeveritySuccess, "Test transfer submitted! TX: %s", hash)
	attempt.State = entity.StateSucceeded
	attempt.TxHash = hash
	attempt.Succeeded = 1
	o.record(ctx, attempt)
	return hash, nil
}

func (o *Orchestrator) sendTransfer(ctx context.Context, session entity.Session, token entity.TokenRecord, recipient string, amount *big.Int) (string, error) {
	data, err := EncodeTransfer(recipient, amount)
	if err != nil {
		return "", fmt.Errorf("encode transfer for %s: %w", token.Symbol, err)
	}
	return o.Wallet.SendTransaction(ctx, entity.TransactionRequest{
		From: session.Account,
		To:   token.Address,
		Data: data,
		Gas:  o.cfg.FallbackGasLimit,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
