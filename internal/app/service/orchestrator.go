package service

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/pkg/metrics"
	"batch_transfer/internal/pkg/utils"

	"github.com/google/uuid"
)

const (
	defaultFallbackGas  = 90000 // 0x15f90
	defaultInterTxDelay = 2 * time.Second
	capabilityTimeout   = 15 * time.Second
)

// DefaultMinNativeBalance is 0.001 of an 18-decimal native coin.
var DefaultMinNativeBalance = big.NewInt(1_000_000_000_000_000)

// OrchestratorConfig tunes preflight and the sequential fallback.
type OrchestratorConfig struct {
	MinNativeBalance *big.Int
	FallbackGasLimit uint64
	InterTxDelay     time.Duration
}

// OrchestratorDeps are the collaborators of the orchestrator.
type OrchestratorDeps struct {
	Wallet       port.WalletRPC
	Discovery    port.TokenDiscoveryService
	Capability   port.CapabilityNegotiator
	Tracker      port.StatusTracker
	Registry     port.TokenRegistry
	CustomTokens port.CustomTokenStore
	Networks     port.NetworkDefinitionProvider
	Sessions     port.SessionGuard
	Journal      port.AttemptJournal
	Observer     port.TransferObserver
	Logger       port.Logger
}

// Snapshot is a read-only view of the orchestrator.
type Snapshot struct {
	State       entity.TransferState    `json:"state"`
	Session     entity.Session          `json:"session"`
	BatchID     entity.BatchID          `json:"batchId,omitempty"`
	TokenCount  int                     `json:"tokenCount"`
	LastOutcome *entity.TrackOutcome    `json:"lastOutcome,omitempty"`
	LastSummary *entity.FallbackSummary `json:"lastSummary,omitempty"`
	LastError   string                  `json:"lastError,omitempty"`
}

type fallbackOffer struct {
	attempt entity.Attempt
	session entity.Session
	tokens  []entity.TokenRecord
}

// Orchestrator runs transfer attempts: preflight, build, submit, track, and the fallback path.
// At most one attempt owns it at a time.
type Orchestrator struct {
	OrchestratorDeps
	cfg OrchestratorConfig

	mu           sync.Mutex
	state        entity.TransferState
	tokens       []entity.TokenRecord
	tokenSession entity.Session
	active       string
	activeSess   entity.Session
	batchID      entity.BatchID
	offer        *fallbackOffer
	trackCancel  context.CancelFunc
	trackDone    chan struct{}
	lastOutcome  *entity.TrackOutcome
	lastSummary  *entity.FallbackSummary
	lastError    string
}

// NewOrchestrator creates an idle orchestrator.
func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	if cfg.MinNativeBalance == nil {
		cfg.MinNativeBalance = DefaultMinNativeBalance
	}
	if cfg.FallbackGasLimit == 0 {
		cfg.FallbackGasLimit = defaultFallbackGas
	}
	if cfg.InterTxDelay < 0 {
		cfg.InterTxDelay = 0
	} else if cfg.InterTxDelay == 0 {
		cfg.InterTxDelay = defaultInterTxDelay
	}
	return &Orchestrator{OrchestratorDeps: deps, cfg: cfg, state: entity.StateIdle}
}

// State returns a snapshot of the current attempt.
func (o *Orchestrator) State() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		State:       o.state,
		Session:     o.tokenSession,
		BatchID:     o.batchID,
		TokenCount:  len(o.tokens),
		LastOutcome: o.lastOutcome,
		LastSummary: o.lastSummary,
		LastError:   o.lastError,
	}
}

// Tokens returns the current working set.
func (o *Orchestrator) Tokens() []entity.TokenRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]entity.TokenRecord(nil), o.tokens...)
}

// Scan loads registry candidates for the session chain and discovers balances.
// A registry failure degrades to custom tokens only.
func (o *Orchestrator) Scan(ctx context.Context, session entity.Session) ([]entity.TokenRecord, error) {
	o.mu.Lock()
	busy := o.state.Busy()
	o.mu.Unlock()
	if busy {
		return nil, entity.ErrTransferInProgress
	}
	if !o.Sessions.IsCurrent(session) {
		return nil, entity.ErrStaleSession
	}

	networkName := o.Networks.NetworkName(session.ChainID)
	var candidates []entity.TokenInfo
	if network, ok := o.Networks.GetNetworkDefinitionByChainID(session.ChainID); ok {
		list, err := o.Registry.TokensForChain(ctx, network)
		if err != nil {
			o.Logger.Warn("Token registry unavailable", "network", networkName, "error", err)
			o.publish(entity.SeverityWarning, "Using fallback token detection: token list for %s could not be loaded", networkName)
		}
		candidates = list
	} else {
		o.publish(entity.SeverityWarning, "Token list not available for %s. You can add custom tokens.", networkName)
	}

	o.publish(entity.SeverityInfo, "Scanning for tokens on %s...", networkName)
	tokens, err := o.Discovery.Discover(ctx, session, candidates, o.CustomTokens.Addresses(session.ChainID))
	if err != nil {
		o.publish(entity.SeverityError, "Token scan failed: %v", err)
		return nil, fmt.Errorf("discover tokens: %w", err)
	}
	if !o.Sessions.IsCurrent(session) {
		return nil, entity.ErrStaleSession
	}

	o.mu.Lock()
	if o.state.Busy() {
		o.mu.Unlock()
		return nil, entity.ErrTransferInProgress
	}
	o.tokens = tokens
	o.tokenSession = session
	o.offer = nil
	o.state = entity.StateIdle
	o.mu.Unlock()

	o.Observer.TokensUpdated(append([]entity.TokenRecord(nil), tokens...))
	if len(tokens) == 0 {
		o.publish(entity.SeverityWarning, "No tokens with balance found on %s", networkName)
	} else {
		o.publish(entity.SeveritySuccess, "Found %d token(s) with balance", len(tokens))
	}
	return tokens, nil
}

// AddCustomToken validates and stores a user supplied token address for the session chain.
func (o *Orchestrator) AddCustomToken(ctx context.Context, session entity.Session, address string) (entity.TokenMetadata, error) {
	if !ValidAddress(address) {
		return entity.TokenMetadata{}, entity.NewError(entity.KindValidation, "invalid token address", nil)
	}
	for _, existing := range o.CustomTokens.Addresses(session.ChainID) {
		if entity.SameAddress(existing, address) {
			o.publish(entity.SeverityWarning, "Token already added")
			return entity.TokenMetadata{}, entity.NewError(entity.KindValidation, "token already added", nil)
		}
	}

	meta, err := o.Discovery.ProbeMetadata(ctx, address)
	if err != nil {
		o.publish(entity.SeverityError, "Invalid token address or not an ERC20 token")
		return entity.TokenMetadata{}, err
	}
	if !o.Sessions.IsCurrent(session) {
		return entity.TokenMetadata{}, entity.ErrStaleSession
	}
	if _, err := o.CustomTokens.Add(session.ChainID, address); err != nil {
		return entity.TokenMetadata{}, fmt.Errorf("store custom token: %w", err)
	}
	o.publish(entity.SeveritySuccess, "Added custom token: %s", meta.Symbol)
	return meta, nil
}

// ExecuteBatch validates, preflights, builds and submits one atomic batch. It returns once
// the wallet accepted the batch; tracking continues in the background (see Await).
// On a capability rejection the attempt ends in StateFallbackOffered and the error is returned.
func (o *Orchestrator) ExecuteBatch(ctx context.Context, session entity.Session, recipient string) (entity.Attempt, error) {
	attempt, tokens, err := o.begin(session, recipient, entity.ModeBatch, entity.StatePreflightChecking)
	if err != nil {
		return entity.Attempt{}, err
	}
	o.publish(entity.SeverityInfo, "Preparing batch transfer transaction...")

	verified, err := o.preflight(ctx, session, tokens)
	if err != nil {
		return o.fail(ctx, attempt, err)
	}

	if err := o.advance(attempt, entity.StateBuilding); err != nil {
		return attempt, err
	}
	calls, err := BuildTransferCalls(verified, recipient)
	if err != nil {
		return o.fail(ctx, attempt, err)
	}

	if err := o.advance(attempt, entity.StateSubmitting); err != nil {
		return attempt, err
	}
	id, err := o.Wallet.SendCalls(ctx, entity.NewBatchRequest(session, calls))
	if !o.owns(attempt) {
		return attempt, entity.ErrStaleSession
	}
	if err != nil {
		return o.submissionFailed(ctx, attempt, verified, err)
	}

	metrics.BatchesSubmitted.Inc()
	attempt.BatchID = string(id)
	o.Logger.Info("Batch submitted", "batchId", id, "calls", len(calls), "chainId", session.ChainID)
	o.publish(entity.SeverityInfo, "Batch transaction submitted! Tracking status...")
	o.startTracking(attempt, id)
	attempt.State = entity.StateTracking
	return attempt, nil
}

// Await blocks until the tracked batch reaches an outcome or ctx ends.
func (o *Orchestrator) Await(ctx context.Context) (entity.TrackOutcome, error) {
	o.mu.Lock()
	done := o.trackDone
	o.mu.Unlock()
	if done == nil {
		return entity.TrackOutcome{}, fmt.Errorf("no batch is being tracked")
	}
	select {
	case <-done:
	case <-ctx.Done():
		return entity.TrackOutcome{}, ctx.Err()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastOutcome == nil {
		return entity.TrackOutcome{Kind: entity.OutcomeCancelled}, entity.ErrStaleSession
	}
	return *o.lastOutcome, nil
}

// OnSessionChanged resets everything tied to the previous session.
func (o *Orchestrator) OnSessionChanged(session entity.Session, connected bool) {
	o.mu.Lock()
	cancel := o.trackCancel
	o.trackCancel = nil
	o.state = entity.StateIdle
	o.tokens = nil
	o.tokenSession = session
	o.active = ""
	o.activeSess = entity.Session{}
	o.batchID = ""
	o.offer = nil
	o.lastError = ""
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.Observer.TokensUpdated(nil)
	if !connected {
		o.publish(entity.SeverityInfo, "Wallet disconnected")
		return
	}
	o.announceCapability(session)
}

// announceCapability re-reads atomic batch support for a new account/chain pair.
// The answer is dropped when the session changed while the wallet was queried.
func (o *Orchestrator) announceCapability(session entity.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), capabilityTimeout)
	defer cancel()

	snapshot, err := o.Capability.QueryAtomicSupport(ctx, session)
	if !o.Sessions.IsCurrent(session) {
		o.Logger.Debug("Dropping capability result of a stale session", "chainId", session.ChainID, "epoch", session.Epoch)
		return
	}
	switch {
	case err != nil:
		o.publish(entity.SeverityWarning, "Could not determine atomic batch support on this network: %v", err)
	case snapshot.Status.AllowsBatch():
		o.publish(entity.SeveritySuccess, "Atomic batch transactions %s on this network", snapshot.Status)
	default:
		o.publish(entity.SeverityWarning, "Atomic batch transactions %s on this network", snapshot.Status)
	}
}

// Close stops background tracking.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	cancel := o.trackCancel
	o.trackCancel = nil
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// begin validates the request and claims the orchestrator for a new attempt.
// Nothing changes and no RPC is made when validation fails.
func (o *Orchestrator) begin(session entity.Session, recipient string, mode entity.AttemptMode, next entity.TransferState) (entity.Attempt, []entity.TokenRecord, error) {
	if !ValidAddress(recipient) {
		return entity.Attempt{}, nil, entity.ErrInvalidRecipient
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Busy() {
		return entity.Attempt{}, nil, entity.ErrTransferInProgress
	}
	if !o.Sessions.IsCurrent(session) {
		return entity.Attempt{}, nil, entity.ErrStaleSession
	}
	if len(o.tokens) == 0 || o.tokenSession.Epoch != session.Epoch {
		return entity.Attempt{}, nil, entity.ErrNoTokens
	}

	attempt := entity.Attempt{
		ID:         uuid.NewString(),
		Mode:       mode,
		Account:    session.Account,
		ChainID:    session.ChainID,
		Recipient:  recipient,
		TokenCount: len(o.tokens),
		State:      next,
		StartedAt:  time.Now().UTC(),
	}
	o.active = attempt.ID
	o.activeSess = session
	o.state = next
	o.batchID = ""
	o.offer = nil
	o.lastError = ""
	return attempt, append([]entity.TokenRecord(nil), o.tokens...), nil
}

// owns reports whether attempt still controls the orchestrator.
func (o *Orchestrator) owns(attempt entity.Attempt) bool {
	o.mu.Lock()
	active, session := o.active, o.activeSess
	o.mu.Unlock()
	return active == attempt.ID && o.Sessions.IsCurrent(session)
}

func (o *Orchestrator) advance(attempt entity.Attempt, next entity.TransferState) error {
	if !o.owns(attempt) {
		return entity.ErrStaleSession
	}
	o.mu.Lock()
	o.state = next
	o.mu.Unlock()
	return nil
}

// preflight re-checks capability and balances right before building.
// Returned records carry the balances read here.
func (o *Orchestrator) preflight(ctx context.Context, session entity.Session, tokens []entity.TokenRecord) ([]entity.TokenRecord, error) {
	o.publish(entity.SeverityInfo, "Checking atomic batch support...")
	snapshot, err := o.Capability.QueryAtomicSupport(ctx, session)
	if !o.Sessions.IsCurrent(session) {
		return nil, entity.ErrStaleSession
	}
	if err != nil {
		return nil, err
	}
	if !snapshot.Status.AllowsBatch() {
		return nil, &entity.TransferError{
			Kind:    entity.KindCapability,
			Message: fmt.Sprintf("atomic batch transactions are not available on %s (status %s)", o.Networks.NetworkName(session.ChainID), snapshot.Status),
		}
	}

	o.publish(entity.SeverityInfo, "Verifying token balances...")
	verified := make([]entity.TokenRecord, 0, len(tokens))
	stale := &entity.StaleBalanceError{}
	for _, token := range tokens {
		balance, err := o.Discovery.BalanceOf(ctx, session, token.Address)
		if !o.Sessions.IsCurrent(session) {
			return nil, entity.ErrStaleSession
		}
		if err != nil || balance.Sign() <= 0 {
			o.Logger.Warn("Token failed balance re-check", "symbol", token.Symbol, "address", token.Address, "error", err)
			stale.InvalidCount++
			stale.Symbols = append(stale.Symbols, token.Symbol)
			continue
		}
		formatted, _ := utils.FormatBigIntPrecision(balance, token.Decimals, displayPrecision)
		verified = append(verified, token.WithBalance(balance, formatted))
	}
	if stale.InvalidCount > 0 {
		return nil, entity.NewError(entity.KindStaleState,
			fmt.Sprintf("%d token(s) have insufficient balance, please rescan tokens", stale.InvalidCount), stale)
	}

	native, err := o.Wallet.GetBalance(ctx, session.Account)
	switch {
	case err != nil:
		o.Logger.Debug("Native balance check skipped", "error", err)
	case native.Cmp(o.cfg.MinNativeBalance) < 0:
		o.Logger.Warn("Native balance below recommended minimum", "balance", native.String(), "minimum", o.cfg.MinNativeBalance.String())
		o.publish(entity.SeverityWarning, "Low native balance, the transaction may fail to pay for gas")
	}
	return verified, nil
}

// submissionFailed routes a rejected wallet_sendCalls by error kind.
func (o *Orchestrator) submissionFailed(ctx context.Context, attempt entity.Attempt, tokens []entity.TokenRecord, err error) (entity.Attempt, error) {
	kind := entity.KindOf(err)
	o.Logger.Error("Batch submission rejected", "kind", kind.String(), "error", err)

	if kind == entity.KindCapability {
		o.mu.Lock()
		o.state = entity.StateFallbackOffered
		o.offer = &fallbackOffer{attempt: attempt, session: o.activeSess, tokens: tokens}
		o.lastError = err.Error()
		o.mu.Unlock()

		o.publish(entity.SeverityWarning, "Atomic batch transactions not supported on this network, or your account needs to be upgraded to a smart account. Try fallback method?")
		attempt.State = entity.StateFallbackOffered
		attempt.Error = err.Error()
		return attempt, err
	}
	return o.fail(ctx, attempt, err)
}

// fail ends the attempt in StateFailed and journals it.
func (o *Orchestrator) fail(ctx context.Context, attempt entity.Attempt, err error) (entity.Attempt, error) {
	if !o.owns(attempt) {
		return attempt, entity.ErrStaleSession
	}
	o.mu.Lock()
	o.state = entity.StateFailed
	o.lastError = err.Error()
	o.mu.Unlock()

	severity := entity.SeverityError
	if entity.KindOf(err) == entity.KindUserRejection {
		severity = entity.SeverityWarning
	}
	o.publish(severity, "%s", submissionMessage(err))

	attempt.State = entity.StateFailed
	attempt.Error = err.Error()
	o.record(ctx, attempt)
	return attempt, err
}

func (o *Orchestrator) startTracking(attempt entity.Attempt, id entity.BatchID) {
	trackCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	o.mu.Lock()
	o.state = entity.StateTracking
	o.batchID = id
	o.trackCancel = cancel
	o.trackDone = done
	o.lastOutcome = nil
	session := o.activeSess
	o.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		outcome, err := o.Tracker.Track(trackCtx, session, id)
		o.finishTracking(attempt, outcome, err)
	}()
}

func (o *Orchestrator) finishTracking(attempt entity.Attempt, outcome entity.TrackOutcome, err error) {
	if outcome.Kind == entity.OutcomeCancelled {
		o.Logger.Info("Batch tracking cancelled", "batchId", outcome.BatchID, "error", err)
		return
	}
	metrics.BatchOutcomes.WithLabelValues(string(outcome.Kind)).Inc()

	o.mu.Lock()
	if o.active != attempt.ID {
		o.mu.Unlock()
		return
	}
	switch outcome.Kind {
	case entity.OutcomeConfirmed:
		o.state = entity.StateSucceeded
		o.tokens = nil
	case entity.OutcomeTimedOut:
		o.state = entity.StateTimedOut
	default:
		o.state = entity.StateFailed
		o.lastError = outcome.Error
	}
	o.trackCancel = nil
	o.lastOutcome = &outcome
	o.mu.Unlock()

	switch outcome.Kind {
	case entity.OutcomeConfirmed:
		o.Observer.TokensUpdated(nil)
		text := "Batch transfer completed successfully!"
		if outcome.TxHash != "" {
			text = fmt.Sprintf("Batch transfer completed successfully! TX: %s", outcome.TxHash)
		}
		if outcome.ExplorerURL != "" {
			text += " " + outcome.ExplorerURL
		}
		o.publish(entity.SeveritySuccess, "%s", text)
	case entity.OutcomeTimedOut:
		o.publish(entity.SeverityWarning, "Transaction status check timed out. Please check your wallet or block explorer.")
	default:
		o.publish(entity.SeverityError, "Batch transaction failed. %s", outcome.Error)
	}
	o.Observer.Outcome(outcome)

	attempt.State = map[entity.OutcomeKind]entity.TransferState{
		entity.OutcomeConfirmed: entity.StateSucceeded,
		entity.OutcomeTimedOut:  entity.StateTimedOut,
		entity.OutcomeFailed:    entity.StateFailed,
	}[outcome.Kind]
	attempt.TxHash = outcome.TxHash
	attempt.BatchID = string(outcome.BatchID)
	attempt.Error = outcome.Error
	o.record(context.Background(), attempt)
}

// record journals a finished attempt, best effort.
func (o *Orchestrator) record(ctx context.Context, attempt entity.Attempt) {
	if o.Journal == nil {
		return
	}
	attempt.FinishedAt = time.Now().UTC()
	if err := o.Journal.Record(ctx, attempt); err != nil {
		o.Logger.Warn("Failed to journal transfer attempt", "attemptId", attempt.ID, "error", err)
	}
}

func (o *Orchestrator) publish(severity entity.Severity, format string, args ...any) {
	o.Observer.Publish(entity.StatusMessage{Severity: severity, Text: fmt.Sprintf(format, args...), At: time.Now()})
}

// submissionMessage renders a classified error for the user.
func submissionMessage(err error) string {
	switch entity.KindOf(err) {
	case entity.KindUserRejection:
		return "Transaction rejected by user."
	case entity.KindProtocol:
		return "Batch transaction method not supported. Please ensure your wallet is up to date."
	case entity.KindCapability:
		return "Atomic batch transactions are not available: " + err.Error()
	case entity.KindFunds:
		return "Insufficient gas or balance for transaction."
	case entity.KindStaleState:
		return "One or more tokens have insufficient balance. Please rescan tokens. (" + err.Error() + ")"
	case entity.KindValidation:
		return err.Error()
	default:
		return "Transaction failed: " + err.Error()
	}
}
