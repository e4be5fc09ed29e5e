package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetchTokenList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/mainnet.json":
			_, _ = w.Write([]byte(`[{"chainId":1,"address":"0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48","name":"USD Coin","symbol":"USDC","decimals":6,"logoURI":"ipfs://usdc"}]`))
		case "/polygon.json":
			_, _ = w.Write([]byte(`{"name":"Default","version":{"major":1,"minor":2,"patch":3},"tokens":[{"chainId":137,"address":"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174","name":"USD Coin","symbol":"USDC","decimals":6}]}`))
		case "/broken.json":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewTokenListClient(srv.URL+"/", time.Second, zap.NewNop())

	tokens, err := c.FetchTokenList(context.Background(), "mainnet")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, uint64(1), tokens[0].ChainID)
	assert.Equal(t, "USDC", tokens[0].Symbol)
	assert.Equal(t, uint8(6), tokens[0].Decimals)
	assert.Equal(t, "ipfs://usdc", tokens[0].LogoURI)

	tokens, err = c.FetchTokenList(context.Background(), "polygon")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, uint64(137), tokens[0].ChainID)

	_, err = c.FetchTokenList(context.Background(), "zksync")
	assert.ErrorContains(t, err, "404")

	_, err = c.FetchTokenList(context.Background(), "broken")
	assert.Error(t, err)

	_, err = c.FetchTokenList(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchTokenListHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewTokenListClient(srv.URL, 5*time.Second, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.FetchTokenList(ctx, "mainnet")
	assert.Error(t, err)
}
