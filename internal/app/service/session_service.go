package service

import (
	"context"
	"fmt"
	"sync"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
)

// SessionListener is notified after every session change. connected is false after a disconnect.
type SessionListener func(session entity.Session, connected bool)

// SessionService owns the current account/chain pair. Each change bumps the epoch,
// which makes results of operations started under the previous session stale.
type SessionService struct {
	wallet port.WalletRPC
	logger port.Logger

	mu        sync.RWMutex
	current   entity.Session
	connected bool
	epoch     uint64
	listeners []SessionListener
}

var _ port.SessionGuard = (*SessionService)(nil)

// NewSessionService creates a disconnected session manager.
func NewSessionService(wallet port.WalletRPC, logger port.Logger) *SessionService {
	return &SessionService{wallet: wallet, logger: logger}
}

// Subscribe registers a listener. Listeners run synchronously, outside the lock.
func (s *SessionService) Subscribe(fn SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Connect requests account access and reads the active chain.
func (s *SessionService) Connect(ctx context.Context) (entity.Session, error) {
	accounts, err := s.wallet.RequestAccounts(ctx)
	if err != nil {
		return entity.Session{}, fmt.Errorf("request accounts: %w", err)
	}
	return s.establish(ctx, accounts)
}

// Restore picks up an already authorized account without prompting.
// It returns false when the wallet exposes no account.
func (s *SessionService) Restore(ctx context.Context) (entity.Session, bool, error) {
	accounts, err := s.wallet.Accounts(ctx)
	if err != nil {
		return entity.Session{}, false, fmt.Errorf("read accounts: %w", err)
	}
	if len(accounts) == 0 {
		return entity.Session{}, false, nil
	}
	session, err := s.establish(ctx, accounts)
	if err != nil {
		return entity.Session{}, false, err
	}
	return session, true, nil
}

func (s *SessionService) establish(ctx context.Context, accounts []string) (entity.Session, error) {
	if len(accounts) == 0 {
		return entity.Session{}, entity.ErrNotConnected
	}
	chainID, err := s.wallet.ChainID(ctx)
	if err != nil {
		return entity.Session{}, fmt.Errorf("read chain id: %w", err)
	}
	n, err := entity.ParseChainID(chainID)
	if err != nil {
		return entity.Session{}, entity.NewError(entity.KindProtocol, "wallet returned invalid chain id", err)
	}
	return s.replace(accounts[0], entity.FormatChainID(n)), nil
}

// AccountsChanged handles the wallet's accountsChanged event. An empty list disconnects.
func (s *SessionService) AccountsChanged(accounts []string) (entity.Session, bool) {
	if len(accounts) == 0 {
		s.Disconnect()
		return entity.Session{}, false
	}
	s.mu.RLock()
	chainID, connected := s.current.ChainID, s.connected
	s.mu.RUnlock()
	if !connected {
		return entity.Session{}, false
	}
	return s.replace(accounts[0], chainID), true
}

// ChainChanged handles the wallet's chainChanged event.
func (s *SessionService) ChainChanged(chainID string) (entity.Session, error) {
	n, err := entity.ParseChainID(chainID)
	if err != nil {
		return entity.Session{}, entity.NewError(entity.KindValidation, "invalid chain id", err)
	}
	s.mu.RLock()
	account, connected := s.current.Account, s.connected
	s.mu.RUnlock()
	if !connected {
		return entity.Session{}, entity.ErrNotConnected
	}
	return s.replace(account, entity.FormatChainID(n)), nil
}

// Disconnect forgets the session.
func (s *SessionService) Disconnect() {
	s.mu.Lock()
	s.epoch++
	s.current = entity.Session{Epoch: s.epoch}
	s.connected = false
	listeners := append([]SessionListener(nil), s.listeners...)
	session := s.current
	s.mu.Unlock()

	s.logger.Info("Wallet disconnected")
	for _, fn := range listeners {
		fn(session, false)
	}
}

func (s *SessionService) replace(account, chainID string) entity.Session {
	s.mu.Lock()
	s.epoch++
	s.current = entity.Session{Account: account, ChainID: chainID, Epoch: s.epoch}
	s.connected = true
	listeners := append([]SessionListener(nil), s.listeners...)
	session := s.current
	s.mu.Unlock()

	s.logger.Info("Session changed", "account", account, "chainId", chainID, "epoch", session.Epoch)
	for _, fn := range listeners {
		fn(session, true)
	}
	return session
}

// Current returns the active session.
func (s *SessionService) Current() (entity.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.connected
}

// IsCurrent reports whether session is still the active one.
func (s *SessionService) IsCurrent(session entity.Session) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && s.current.Epoch == session.Epoch
}
