package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/infrastructure/tokenloader"
	"batch_transfer/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListClient struct {
	mu    sync.Mutex
	lists map[string][]entity.TokenInfo
	err   error
	calls int
}

func (f *fakeListClient) FetchTokenList(ctx context.Context, registryFile string) ([]entity.TokenInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	list, ok := f.lists[registryFile]
	if !ok {
		return nil, errors.New("status 404")
	}
	return list, nil
}

var (
	mainnet = entity.NetworkDefinition{ChainID: 1, Name: "Ethereum Mainnet", Identifier: "ethereum", RegistryFile: "mainnet"}
	polygon = entity.NetworkDefinition{ChainID: 137, Name: "Polygon Mainnet", Identifier: "polygon", RegistryFile: "polygon"}
	zksync  = entity.NetworkDefinition{ChainID: 324, Name: "ZKSync Era Mainnet", Identifier: "zksync"}
)

func TestTokensForChainCachesRemoteList(t *testing.T) {
	remote := &fakeListClient{lists: map[string][]entity.TokenInfo{
		"mainnet": {
			{ChainID: 1, Symbol: "USDC", Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
			{ChainID: 5, Symbol: "GOERLI", Address: "0x0000000000000000000000000000000000000001"},
		},
	}}
	reg := NewTokenProvider(remote, nil, TokenRegistryConfig{RemoteEnabled: true}, logger.NewNop())

	tokens, err := reg.TokensForChain(context.Background(), mainnet)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "USDC", tokens[0].Symbol)

	_, err = reg.TokensForChain(context.Background(), mainnet)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.calls)
}

func TestTokensForChainFallsBackToFile(t *testing.T) {
	dir := t.TempDir()
	body := `[{"chainId":137,"address":"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174","name":"USD Coin","symbol":"USDC","decimals":6}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "polygon.json"), []byte(body), 0o644))

	remote := &fakeListClient{err: errors.New("connection refused")}
	reg := NewTokenProvider(remote, tokenloader.NewTokenLoader(dir, logger.NewNop()), TokenRegistryConfig{RemoteEnabled: true}, logger.NewNop())

	tokens, err := reg.TokensForChain(context.Background(), polygon)
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	_, err = reg.TokensForChain(context.Background(), mainnet)
	assert.ErrorContains(t, err, "connection refused")
}

func TestTokensForChainWithoutRegistryFile(t *testing.T) {
	remote := &fakeListClient{}
	reg := NewTokenProvider(remote, nil, TokenRegistryConfig{RemoteEnabled: true}, logger.NewNop())

	tokens, err := reg.TokensForChain(context.Background(), zksync)
	require.NoError(t, err)
	assert.Empty(t, tokens)
	assert.Equal(t, 0, remote.calls)
}

func TestTokensForChainRemoteDisabled(t *testing.T) {
	remote := &fakeListClient{lists: map[string][]entity.TokenInfo{"mainnet": {{ChainID: 1}}}}
	reg := NewTokenProvider(remote, tokenloader.NewTokenLoader(t.TempDir(), logger.NewNop()), TokenRegistryConfig{}, logger.NewNop())

	_, err := reg.TokensForChain(context.Background(), mainnet)
	assert.ErrorContains(t, err, "no source configured")
	assert.Equal(t, 0, remote.calls)
}

func TestWarmUp(t *testing.T) {
	remote := &fakeListClient{lists: map[string][]entity.TokenInfo{
		"mainnet": {{ChainID: 1, Symbol: "USDC"}},
		"polygon": {{ChainID: 137, Symbol: "USDC"}},
	}}
	reg := NewTokenProvider(remote, nil, TokenRegistryConfig{RemoteEnabled: true}, logger.NewNop())

	n := reg.WarmUp(context.Background(), []entity.NetworkDefinition{mainnet, polygon, zksync,
		{ChainID: 56, Identifier: "bsc", RegistryFile: "bsc"}})
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, remote.calls)
}

func TestCustomTokenProviderPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "custom_tokens.txt")
	store := NewCustomTokenProvider(path, logger.NewNop())

	added, err := store.Add("0x01", "0xcCCCcCCcCCCCcccCcCCCcccCCcCcCCCcCCcCccCc")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = store.Add("0x1", "0xcccccccccccccccccccccccccccccccccccccccc")
	require.NoError(t, err)
	assert.False(t, added)
	_, err = store.Add("1", "0xcccccccccccccccccccccccccccccccccccccccc")
	assert.Error(t, err)

	assert.Equal(t, []string{"0xcCCCcCCcCCCCcccCcCCCcccCCcCcCCCcCCcCccCc"}, store.Addresses("0x1"))
	assert.Empty(t, store.Addresses("0x89"))

	reloaded := NewCustomTokenProvider(path, logger.NewNop())
	assert.Equal(t, []string{"0xcCCCcCCcCCCCcccCcCCCcccCCcCcCCCcCCcCccCc"}, reloaded.Addresses("0x0001"))
}

func TestCustomTokenProviderSkipsBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom_tokens.txt")
	content := "# comment\n0x1 0xdddddddddddddddddddddddddddddddddddddddd\n0x1 0x123\nnonsense\n0x89 0xdddddddddddddddddddddddddddddddddddddddd\n0x1 0xDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	store := NewCustomTokenProvider(path, logger.NewNop())
	assert.Len(t, store.Addresses("0x1"), 1)
	assert.Len(t, store.Addresses("0x89"), 1)
}

func TestCustomTokenProviderInMemory(t *testing.T) {
	store := NewCustomTokenProvider("", logger.NewNop())
	added, err := store.Add("0x1", "0xdddddddddddddddddddddddddddddddddddddddd")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Len(t, store.Addresses("0x1"), 1)
}
