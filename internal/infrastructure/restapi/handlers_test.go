package restapi

import (
	"bufio"
	"bytes"
	"context"
	"math/big"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"batch_transfer/internal/app/provider"
	"batch_transfer/internal/app/service"
	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/infrastructure/journal"
	networkdefinition "batch_transfer/internal/infrastructure/network/definition"
	"batch_transfer/internal/infrastructure/statusfeed"
	"batch_transfer/internal/infrastructure/tokenloader"
	"batch_transfer/internal/pkg/logger"
	"batch_transfer/internal/pkg/wallettest"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testAccount   = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x2222222222222222222222222222222222222222"
	tokenUSDC     = "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa"
	tokenDAI      = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
)

const mainnetList = `{
  "name": "test list",
  "tokens": [
    {"chainId": 1, "address": "0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa", "name": "USD Coin", "symbol": "USDC", "decimals": 6},
    {"chainId": 1, "address": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB", "name": "Dai Stablecoin", "symbol": "DAI", "decimals": 18},
    {"chainId": 137, "address": "0xcCCCcCCcCCCCcccCcCCCcccCCcCcCCCcCCcCccCc", "name": "Other", "symbol": "OTH", "decimals": 18}
  ]
}`

type apiFixture struct {
	wallet   *wallettest.Wallet
	sessions *service.SessionService
	orch     *service.Orchestrator
	feed     *statusfeed.Feed
	router   *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	tokenDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tokenDir, "mainnet.json"), []byte(mainnetList), 0o644))

	wallet := wallettest.New(testAccount, "0x1")
	wallet.Native = big.NewInt(1_000_000_000_000_000_000)
	wallet.Capabilities = wallettest.AtomicStatus("0x1", "ready")
	wallet.AddToken(tokenUSDC, &wallettest.Token{Name: "USD Coin", Symbol: "USDC", Decimals: 6, Balance: big.NewInt(5_000_000)})
	wallet.AddToken(tokenDAI, &wallettest.Token{Name: "Dai Stablecoin", Symbol: "DAI", Decimals: 18, Balance: big.NewInt(7)})

	networks := networkdefinition.NewNetworkDefinitionProvider(log, tokenDir)
	registry := provider.NewTokenProvider(nil, tokenloader.NewTokenLoader(tokenDir, log), provider.TokenRegistryConfig{}, log)
	custom := provider.NewCustomTokenProvider(filepath.Join(t.TempDir(), "custom_tokens.txt"), log)
	attempts, err := journal.Open(filepath.Join(t.TempDir(), "journal"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = attempts.Close() })

	feed := statusfeed.New(0, log)
	sessions := service.NewSessionService(wallet, log)
	capability := service.NewCapabilityService(wallet, networks, log)
	orch := service.NewOrchestrator(service.OrchestratorDeps{
		Wallet:     wallet,
		Discovery:  service.NewDiscoveryService(wallet, service.DiscoveryConfig{}, log),
		Capability: capability,
		Tracker: service.NewStatusTracker(wallet, sessions, networks, feed, service.TrackerConfig{
			InitialDelay: time.Millisecond, PollInterval: time.Millisecond, MaxAttempts: 5,
		}, log),
		Registry:     registry,
		CustomTokens: custom,
		Networks:     networks,
		Sessions:     sessions,
		Journal:      attempts,
		Observer:     feed,
		Logger:       log,
	}, service.OrchestratorConfig{InterTxDelay: time.Millisecond})
	sessions.Subscribe(orch.OnSessionChanged)
	t.Cleanup(orch.Close)

	handler := NewHandler(HandlerDeps{
		Sessions:     sessions,
		Transfers:    orch,
		Capabilities: capability,
		Networks:     networks,
		Feed:         feed,
		Journal:      attempts,
		Logger:       log,
	})
	router := SetupRouter(handler, RouterConfig{
		MetricsHandler: promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
	}, zap.NewNop())

	return &apiFixture{wallet: wallet, sessions: sessions, orch: orch, feed: feed, router: router}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) connectAndScan(t *testing.T) {
	t.Helper()
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/session/connect", "").Code)
	w := f.do(t, http.MethodPost, "/api/v1/tokens/scan", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSessionLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[SessionResponse](t, w).Connected)

	w = f.do(t, http.MethodPost, "/api/v1/session/connect", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[SessionResponse](t, w)
	assert.True(t, resp.Connected)
	assert.Equal(t, testAccount, resp.Session.Account)
	assert.Equal(t, "Ethereum Mainnet", resp.Network)

	w = f.do(t, http.MethodPost, "/api/v1/session/chain", `{"chainId":"0x89"}`)
	require.Equal(t, http.StatusOK, w.Code)
	moved := decode[SessionResponse](t, w)
	assert.Equal(t, "0x89", moved.Session.ChainID)
	assert.Equal(t, "Polygon Mainnet", moved.Network)
	assert.Greater(t, moved.Session.Epoch, resp.Session.Epoch)

	w = f.do(t, http.MethodPost, "/api/v1/session/chain", `{"chainId":"polygon"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/session/accounts", `{"accounts":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[SessionResponse](t, w).Connected)
}

func TestRestoreWithoutAuthorizedAccount(t *testing.T) {
	f := newAPIFixture(t)
	f.wallet.Account = ""

	w := f.do(t, http.MethodPost, "/api/v1/session/connect", `{"restore":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[SessionResponse](t, w).Connected)
	assert.Zero(t, f.wallet.MethodCount("eth_requestAccounts"))
}

func TestOperationsRequireConnectedWallet(t *testing.T) {
	f := newAPIFixture(t)

	for _, path := range []string{"/api/v1/tokens/scan", "/api/v1/transfers/batch", "/api/v1/transfers/test"} {
		w := f.do(t, http.MethodPost, path, `{"recipient":"`+testRecipient+`"}`)
		assert.Equal(t, http.StatusConflict, w.Code, path)
		assert.Equal(t, "validation", decode[APIError](t, w).Kind, path)
	}
}

func TestScanListsTokensWithBalance(t *testing.T) {
	f := newAPIFixture(t)
	f.connectAndScan(t)

	w := f.do(t, http.MethodGet, "/api/v1/tokens", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Tokens []entity.TokenRecord `json:"tokens"`
	}](t, w)
	require.Len(t, body.Tokens, 2)
	assert.Equal(t, "USDC", body.Tokens[0].Symbol)
	assert.Equal(t, "5000000", body.Tokens[0].RawBalance)
	assert.Equal(t, "5", body.Tokens[0].FormattedBalance)
}

func TestAddCustomTokenValidatesAddress(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/session/connect", "").Code)

	w := f.do(t, http.MethodPost, "/api/v1/tokens/custom", `{"address":"0x123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/tokens/custom", `{"address":"`+tokenDAI+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "DAI", decode[entity.TokenMetadata](t, w).Symbol)

	w = f.do(t, http.MethodPost, "/api/v1/tokens/custom", `{"address":"`+strings.ToLower(tokenDAI)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCapabilityEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/session/connect", "").Code)

	w := f.do(t, http.MethodGet, "/api/v1/capabilities", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Capability   entity.CapabilitySnapshot `json:"capability"`
		BatchAllowed bool                      `json:"batchAllowed"`
	}](t, w)
	assert.Equal(t, entity.AtomicReady, body.Capability.Status)
	assert.True(t, body.BatchAllowed)

	w = f.do(t, http.MethodGet, "/api/v1/capabilities/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[struct {
		Checks []entity.SupportCheck `json:"checks"`
	}](t, w)
	assert.NotEmpty(t, report.Checks)
}

func TestBatchRejectsInvalidRecipient(t *testing.T) {
	f := newAPIFixture(t)
	f.connectAndScan(t)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/batch", `{"recipient":"0xnope"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", decode[APIError](t, w).Kind)
	assert.Zero(t, f.wallet.MethodCount("wallet_sendCalls"))
}

func TestBatchWaitReturnsOutcome(t *testing.T) {
	f := newAPIFixture(t)
	f.wallet.Statuses = []entity.BatchStatus{
		{Code: entity.BatchStatusPending},
		{Code: entity.BatchStatusConfirmed, Receipts: []entity.Receipt{{TransactionHash: "0xabc"}}},
	}
	f.connectAndScan(t)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/batch", `{"recipient":"`+testRecipient+`","wait":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[BatchResponse](t, w)
	assert.Equal(t, "0xbatch", resp.Attempt.BatchID)
	require.NotNil(t, resp.Outcome)
	assert.Equal(t, entity.OutcomeConfirmed, resp.Outcome.Kind)
	assert.Equal(t, "0xabc", resp.Outcome.TxHash)
	assert.Equal(t, "https://etherscan.io/tx/0xabc", resp.Outcome.ExplorerURL)

	batches, _, _ := f.wallet.Snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Calls, 2)

	require.Eventually(t, func() bool {
		w := f.do(t, http.MethodGet, "/api/v1/history", "")
		body := decode[struct {
			Attempts []entity.Attempt `json:"attempts"`
		}](t, w)
		return len(body.Attempts) == 1 && body.Attempts[0].State == entity.StateSucceeded
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBatchWithoutWaitIsAccepted(t *testing.T) {
	f := newAPIFixture(t)
	f.wallet.Statuses = []entity.BatchStatus{{Code: entity.BatchStatusConfirmed}}
	f.connectAndScan(t)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/batch", `{"recipient":"`+testRecipient+`"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Nil(t, decode[BatchResponse](t, w).Outcome)

	require.Eventually(t, func() bool {
		_, ok := f.feed.LastOutcome()
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCapabilityRejectionOffersFallback(t *testing.T) {
	f := newAPIFixture(t)
	f.wallet.SendCallsErr = wallettest.RPCError(entity.KindCapability, 5760, "atomicity not supported")
	f.connectAndScan(t)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/batch", `{"recipient":"`+testRecipient+`"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	apiErr := decode[APIError](t, w)
	assert.True(t, apiErr.FallbackOffered)
	assert.Equal(t, "capability", apiErr.Kind)
	assert.Equal(t, 5760, apiErr.Code)

	state := decode[service.Snapshot](t, f.do(t, http.MethodGet, "/api/v1/transfers/state", ""))
	assert.Equal(t, entity.StateFallbackOffered, state.State)
	_, txs, _ := f.wallet.Snapshot()
	assert.Empty(t, txs)

	w = f.do(t, http.MethodPost, "/api/v1/transfers/fallback/confirm", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Summary entity.FallbackSummary `json:"summary"`
		Success bool                   `json:"success"`
	}](t, w)
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Summary.Succeeded)

	w = f.do(t, http.MethodPost, "/api/v1/transfers/fallback/confirm", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeclineFallback(t *testing.T) {
	f := newAPIFixture(t)
	f.wallet.SendCallsErr = wallettest.RPCError(entity.KindCapability, 5700, "unsupported capability")
	f.connectAndScan(t)
	require.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/transfers/batch", `{"recipient":"`+testRecipient+`"}`).Code)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/fallback/decline", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.StateFailed, decode[service.Snapshot](t, w).State)

	_, txs, _ := f.wallet.Snapshot()
	assert.Empty(t, txs)
}

func TestUserRejectionIsConflict(t *testing.T) {
	f := newAPIFixture(t)
	f.wallet.SendCallsErr = wallettest.RPCError(entity.KindUserRejection, 4001, "User rejected the request.")
	f.connectAndScan(t)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/batch", `{"recipient":"`+testRecipient+`"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	apiErr := decode[APIError](t, w)
	assert.Equal(t, "user_rejection", apiErr.Kind)
	assert.False(t, apiErr.FallbackOffered)
}

func TestTraditionalTransferNeedsConfirmation(t *testing.T) {
	f := newAPIFixture(t)
	f.connectAndScan(t)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/traditional", `{"recipient":"`+testRecipient+`"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	_, txs, _ := f.wallet.Snapshot()
	assert.Empty(t, txs)

	w = f.do(t, http.MethodPost, "/api/v1/transfers/traditional", `{"recipient":"`+testRecipient+`","confirm":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, txs, _ = f.wallet.Snapshot()
	assert.Len(t, txs, 2)
}

func TestTestTransferReturnsHash(t *testing.T) {
	f := newAPIFixture(t)
	f.connectAndScan(t)

	w := f.do(t, http.MethodPost, "/api/v1/transfers/test", `{"recipient":"`+testRecipient+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]string](t, w)
	assert.True(t, strings.HasPrefix(body["txHash"], "0x"))
}

func TestStatusAndHistoryLimits(t *testing.T) {
	f := newAPIFixture(t)
	f.connectAndScan(t)

	w := f.do(t, http.MethodGet, "/api/v1/status?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Messages []entity.StatusMessage `json:"messages"`
		Latest   *entity.StatusMessage  `json:"latest"`
	}](t, w)
	require.Len(t, body.Messages, 1)
	require.NotNil(t, body.Latest)
	assert.Equal(t, body.Latest.Text, body.Messages[0].Text)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/history?limit=0x", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/history?limit=100000", "").Code)
}

func TestMetricsAndHealth(t *testing.T) {
	f := newAPIFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "").Code)
}

func TestEventStream(t *testing.T) {
	f := newAPIFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "text/event-stream", mediaType)

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(event string) {
		t.Helper()
		for lines.Scan() {
			if lines.Text() == "event:"+event {
				return
			}
		}
		t.Fatalf("stream ended before %q event: %v", event, lines.Err())
	}

	waitFor("state")
	_, err = f.sessions.Connect(context.Background())
	require.NoError(t, err)
	waitFor("tokens")
	waitFor("status")
}
