package port

import (
	"context"
	"math/big"

	"batch_transfer/internal/domain/entity"
)

// SessionGuard tells whether a session is still the current one.
type SessionGuard interface {
	IsCurrent(session entity.Session) bool
}

// TokenDiscoveryService finds tokens the account holds.
type TokenDiscoveryService interface {
	Discover(ctx context.Context, session entity.Session, candidates []entity.TokenInfo, customAddresses []string) ([]entity.TokenRecord, error)
	ProbeMetadata(ctx context.Context, address string) (entity.TokenMetadata, error)
	BalanceOf(ctx context.Context, session entity.Session, tokenAddress string) (*big.Int, error)
}

// CapabilityNegotiator interprets wallet batch support.
type CapabilityNegotiator interface {
	QueryAtomicSupport(ctx context.Context, session entity.Session) (entity.CapabilitySnapshot, error)
	SupportReport(ctx context.Context, session entity.Session) []entity.SupportCheck
}

// StatusTracker polls a submitted batch until it settles.
type StatusTracker interface {
	Track(ctx context.Context, session entity.Session, id entity.BatchID) (entity.TrackOutcome, error)
}

// TransferObserver receives the observable surface of the orchestrator.
type TransferObserver interface {
	Publish(msg entity.StatusMessage)
	TokensUpdated(tokens []entity.TokenRecord)
	Outcome(outcome entity.TrackOutcome)
}

// AttemptJournal stores finished transfer attempts.
type AttemptJournal interface {
	Record(ctx context.Context, attempt entity.Attempt) error
	Recent(ctx context.Context, limit int) ([]entity.Attempt, error)
}
