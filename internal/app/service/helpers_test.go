package service

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/pkg/logger"
	"batch_transfer/internal/pkg/wallettest"

	"github.com/stretchr/testify/require"
)

const (
	testAccount   = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x2222222222222222222222222222222222222222"
	tokenUSDC     = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	tokenWETH     = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
	tokenCustom   = "0xcCCCcCCcCCCCcccCcCCCcccCCcCcCCCcCCcCccCc"
	tokenPolygon  = "0xdDdDddDdDdddDDddDDddDDDDdDdDDdDDdDDDDDDd"
)

var wethBalance, _ = new(big.Int).SetString("2500000000000000000", 10)

type recordingObserver struct {
	mu       sync.Mutex
	messages []entity.StatusMessage
	tokens   [][]entity.TokenRecord
	outcomes []entity.TrackOutcome
}

func (r *recordingObserver) Publish(msg entity.StatusMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recordingObserver) TokensUpdated(tokens []entity.TokenRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = append(r.tokens, tokens)
}

func (r *recordingObserver) Outcome(outcome entity.TrackOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingObserver) Outcomes() []entity.TrackOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.TrackOutcome(nil), r.outcomes...)
}

func (r *recordingObserver) HasMessage(severity entity.Severity, fragment string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.Severity == severity && strings.Contains(m.Text, fragment) {
			return true
		}
	}
	return false
}

func (r *recordingObserver) Count(fragment string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if strings.Contains(m.Text, fragment) {
			n++
		}
	}
	return n
}

// switchingCapability changes the session during its first query.
type switchingCapability struct {
	port.CapabilityNegotiator
	switchTo func()
	calls    int
}

func (s *switchingCapability) QueryAtomicSupport(ctx context.Context, session entity.Session) (entity.CapabilitySnapshot, error) {
	s.calls++
	if s.calls == 1 {
		s.switchTo()
	}
	return s.CapabilityNegotiator.QueryAtomicSupport(ctx, session)
}

type staticNetworks struct{}

func (staticNetworks) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	return []entity.NetworkDefinition{
		{ChainID: 1, Name: "Ethereum Mainnet", Identifier: "ethereum", RegistryFile: "mainnet", BlockExplorerURL: "https://etherscan.io"},
		{ChainID: 137, Name: "Polygon", Identifier: "polygon", RegistryFile: "polygon", BlockExplorerURL: "https://polygonscan.com"},
	}
}

func (n staticNetworks) GetNetworkDefinitionByChainID(chainID string) (entity.NetworkDefinition, bool) {
	id, err := entity.ParseChainID(chainID)
	if err != nil {
		return entity.NetworkDefinition{}, false
	}
	for _, def := range n.GetAllNetworkDefinitions() {
		if def.ChainID == id {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}

func (n staticNetworks) NetworkName(chainID string) string {
	if def, ok := n.GetNetworkDefinitionByChainID(chainID); ok {
		return def.Name
	}
	return entity.UnknownNetworkName(chainID)
}

type staticRegistry struct {
	tokens []entity.TokenInfo
	err    error
}

func (r *staticRegistry) TokensForChain(ctx context.Context, network entity.NetworkDefinition) ([]entity.TokenInfo, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.tokens, nil
}

type memoryCustomTokens struct {
	mu     sync.Mutex
	tokens map[string][]string
}

func (m *memoryCustomTokens) Addresses(chainID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tokens[chainID]...)
}

func (m *memoryCustomTokens) Add(chainID, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string][]string{}
	}
	for _, a := range m.tokens[chainID] {
		if strings.EqualFold(a, address) {
			return false, nil
		}
	}
	m.tokens[chainID] = append(m.tokens[chainID], address)
	return true, nil
}

type memoryJournal struct {
	mu       sync.Mutex
	attempts []entity.Attempt
}

func (j *memoryJournal) Record(ctx context.Context, attempt entity.Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, attempt)
	return nil
}

func (j *memoryJournal) Recent(ctx context.Context, limit int) ([]entity.Attempt, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]entity.Attempt(nil), j.attempts...), nil
}

func (j *memoryJournal) All() []entity.Attempt {
	attempts, _ := j.Recent(context.Background(), 0)
	return attempts
}

type harness struct {
	wallet   *wallettest.Wallet
	sessions *SessionService
	session  entity.Session
	observer *recordingObserver
	journal  *memoryJournal
	registry *staticRegistry
	custom   *memoryCustomTokens
	orch     *Orchestrator
}

func defaultRegistry() []entity.TokenInfo {
	return []entity.TokenInfo{
		{ChainID: 1, Address: tokenUSDC, Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		{ChainID: 1, Address: tokenWETH, Symbol: "WETH", Name: "Wrapped Ether", Decimals: 18},
		{ChainID: 137, Address: tokenPolygon, Symbol: "POL", Name: "Polygon token", Decimals: 18},
	}
}

func newHarness(t *testing.T, trackerCfg TrackerConfig) *harness {
	t.Helper()
	wallet := wallettest.New(testAccount, "0x1")
	wallet.Native = big.NewInt(1_000_000_000_000_000_000)
	wallet.Capabilities = wallettest.AtomicStatus("0x1", "ready")
	wallet.AddToken(tokenUSDC, &wallettest.Token{Name: "USD Coin", Symbol: "USDC", Decimals: 6, Balance: big.NewInt(1000)})
	wallet.AddToken(tokenWETH, &wallettest.Token{Name: "Wrapped Ether", Symbol: "WETH", Decimals: 18, Balance: wethBalance})

	log := logger.NewNop()
	sessions := NewSessionService(wallet, log)
	session, err := sessions.Connect(context.Background())
	require.NoError(t, err)

	h := &harness{
		wallet:   wallet,
		sessions: sessions,
		session:  session,
		observer: &recordingObserver{},
		journal:  &memoryJournal{},
		registry: &staticRegistry{tokens: defaultRegistry()},
		custom:   &memoryCustomTokens{},
	}
	if trackerCfg.InitialDelay == 0 {
		trackerCfg = TrackerConfig{InitialDelay: time.Millisecond, PollInterval: time.Millisecond, MaxAttempts: 5}
	}
	networks := staticNetworks{}
	h.orch = NewOrchestrator(OrchestratorDeps{
		Wallet:       wallet,
		Discovery:    NewDiscoveryService(wallet, DiscoveryConfig{}, log),
		Capability:   NewCapabilityService(wallet, networks, log),
		Tracker:      NewStatusTracker(wallet, sessions, networks, h.observer, trackerCfg, log),
		Registry:     h.registry,
		CustomTokens: h.custom,
		Networks:     networks,
		Sessions:     sessions,
		Journal:      h.journal,
		Observer:     h.observer,
		Logger:       log,
	}, OrchestratorConfig{InterTxDelay: time.Millisecond})
	sessions.Subscribe(h.orch.OnSessionChanged)
	t.Cleanup(h.orch.Close)
	return h
}

func (h *harness) scan(t *testing.T) []entity.TokenRecord {
	t.Helper()
	tokens, err := h.orch.Scan(context.Background(), h.session)
	require.NoError(t, err)
	return tokens
}
