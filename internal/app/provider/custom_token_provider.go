package provider

import (
	"fmt"
	"strings"
	"sync"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/pkg/utils"
)

// CustomTokenProvider keeps user-added token addresses per chain in memory and,
// when a file path is set, appends them to a "<chainId> <address>" text file.
type CustomTokenProvider struct {
	filePath string
	logger   port.Logger

	mu     sync.Mutex
	loaded bool
	tokens map[string][]string // нормализованный chainID -> адреса
}

var _ port.CustomTokenStore = (*CustomTokenProvider)(nil)

// NewCustomTokenProvider creates a store backed by filePath. An empty path keeps tokens in memory only.
func NewCustomTokenProvider(filePath string, logger port.Logger) *CustomTokenProvider {
	return &CustomTokenProvider{filePath: filePath, logger: logger, tokens: make(map[string][]string)}
}

// Addresses returns the custom tokens of a chain in insertion order.
func (p *CustomTokenProvider) Addresses(chainID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadLocked()
	return append([]string(nil), p.tokens[normalizeChain(chainID)]...)
}

// Add stores address for chainID. It returns false when the address is already known.
func (p *CustomTokenProvider) Add(chainID, address string) (bool, error) {
	chain := normalizeChain(chainID)
	if chain == "" {
		return false, fmt.Errorf("invalid chain id %q", chainID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadLocked()

	for _, existing := range p.tokens[chain] {
		if entity.SameAddress(existing, address) {
			return false, nil
		}
	}
	if p.filePath != "" {
		if err := utils.AppendLine(p.filePath, chain+" "+address); err != nil {
			return false, fmt.Errorf("failed to persist custom token %s: %w", address, err)
		}
	}
	p.tokens[chain] = append(p.tokens[chain], address)
	p.logger.Info("Custom token added", "chainId", chain, "address", address)
	return true, nil
}

func (p *CustomTokenProvider) loadLocked() {
	if p.loaded || p.filePath == "" {
		p.loaded = true
		return
	}
	p.loaded = true

	lines, err := utils.ReadLines(p.filePath)
	if err != nil {
		p.logger.Error("Failed to read custom token file", "path", p.filePath, "error", err)
		return
	}
	for lineNum, line := range lines {
		fields := strings.Fields(line)
		if len(fields) != 2 || !(strings.HasPrefix(fields[1], "0x") && len(fields[1]) == 42) {
			p.logger.Warn("Skipping invalid custom token line", "file", p.filePath, "line_number", lineNum+1, "line", line)
			continue
		}
		chain := normalizeChain(fields[0])
		if chain == "" {
			continue
		}
		dup := false
		for _, existing := range p.tokens[chain] {
			if entity.SameAddress(existing, fields[1]) {
				dup = true
				break
			}
		}
		if !dup {
			p.tokens[chain] = append(p.tokens[chain], fields[1])
		}
	}
	p.logger.Debug("Custom tokens loaded from file", "path", p.filePath, "lines", len(lines))
}

func normalizeChain(chainID string) string {
	n, err := entity.ParseChainID(chainID)
	if err != nil {
		return ""
	}
	return entity.FormatChainID(n)
}
