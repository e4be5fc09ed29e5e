package service

import (
	"context"
	"fmt"
	"time"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/pkg/metrics"
)

const (
	defaultInitialDelay = 2 * time.Second
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 60
)

// TrackerConfig is the polling schedule.
type TrackerConfig struct {
	InitialDelay time.Duration
	PollInterval time.Duration
	MaxAttempts  int
}

type statusTrackerImpl struct {
	wallet   port.WalletRPC
	sessions port.SessionGuard
	networks port.NetworkDefinitionProvider
	observer port.TransferObserver
	logger   port.Logger
	cfg      TrackerConfig
}

// NewStatusTracker creates a tracker polling wallet_getCallsStatus.
func NewStatusTracker(wallet port.WalletRPC, sessions port.SessionGuard, networks port.NetworkDefinitionProvider, observer port.TransferObserver, cfg TrackerConfig, logger port.Logger) port.StatusTracker {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &statusTrackerImpl{wallet: wallet, sessions: sessions, networks: networks, observer: observer, logger: logger, cfg: cfg}
}

// Track polls until the batch settles, the attempt budget runs out, or the session goes stale.
// It returns exactly one outcome; pending codes only publish progress.
func (t *statusTrackerImpl) Track(ctx context.Context, session entity.Session, id entity.BatchID) (entity.TrackOutcome, error) {
	outcome := entity.TrackOutcome{BatchID: id}
	timer := time.NewTimer(t.cfg.InitialDelay)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			outcome.Kind = entity.OutcomeCancelled
			return outcome, ctx.Err()
		case <-timer.C:
		}

		metrics.StatusPolls.Inc()
		status, err := t.wallet.GetCallsStatus(ctx, id)
		outcome.Attempts = attempt

		if !t.sessions.IsCurrent(session) {
			outcome.Kind = entity.OutcomeCancelled
			return outcome, entity.ErrStaleSession
		}
		if err != nil {
			if ctx.Err() != nil {
				outcome.Kind = entity.OutcomeCancelled
				return outcome, ctx.Err()
			}
			t.logger.Error("Batch status check failed", "batchId", id, "attempt", attempt, "error", err)
			outcome.Kind = entity.OutcomeFailed
			outcome.Error = err.Error()
			return outcome, fmt.Errorf("track batch %s: %w", id, err)
		}
		outcome.Status = status

		switch {
		case status.Confirmed():
			outcome.Kind = entity.OutcomeConfirmed
			outcome.TxHash = status.PrimaryTxHash()
			if network, ok := t.networks.GetNetworkDefinitionByChainID(session.ChainID); ok {
				outcome.ExplorerURL = network.TxURL(outcome.TxHash)
			}
			t.logger.Info("Batch confirmed", "batchId", id, "txHash", outcome.TxHash, "attempts", attempt)
			return outcome, nil
		case status.Failed():
			outcome.Kind = entity.OutcomeFailed
			outcome.Error = fmt.Sprintf("batch failed with status %d", status.Code)
			t.logger.Warn("Batch failed", "batchId", id, "status", status.Code, "attempts", attempt)
			return outcome, nil
		}

		if attempt >= t.cfg.MaxAttempts {
			outcome.Kind = entity.OutcomeTimedOut
			t.logger.Warn("Batch status tracking timed out", "batchId", id, "attempts", attempt)
			return outcome, nil
		}
		t.observer.Publish(entity.StatusMessage{
			Severity: entity.SeverityInfo,
			Text:     fmt.Sprintf("Transaction pending... (check %d/%d)", attempt, t.cfg.MaxAttempts),
			At:       time.Now(),
		})
		timer.Reset(t.cfg.PollInterval)
	}
}
