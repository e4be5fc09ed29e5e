package tokenloader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
	listentity "batch_transfer/internal/entity"

	jsoniter "github.com/json-iterator/go"
)

// DefaultTokenDirectoryPath holds on-disk copies of the registry lists.
const DefaultTokenDirectoryPath = "data/tokens"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoLocalList is returned when the directory has no file for a network.
var ErrNoLocalList = errors.New("no local token list")

// TokenFileLoader reads <dir>/<registryFile>.json lists.
type TokenFileLoader struct {
	tokenDirPath string
	logger       port.Logger
}

// NewTokenLoader creates a loader over dir, DefaultTokenDirectoryPath when empty.
func NewTokenLoader(dir string, logger port.Logger) *TokenFileLoader {
	if dir == "" {
		dir = DefaultTokenDirectoryPath
	}
	return &TokenFileLoader{tokenDirPath: dir, logger: logger}
}

// Dir returns the directory the loader reads from.
func (l *TokenFileLoader) Dir() string { return l.tokenDirPath }

// LoadNetwork reads the list for the network and keeps only tokens of its chain.
// Файл может быть массивом токенов или документом tokenlist с полем tokens.
func (l *TokenFileLoader) LoadNetwork(network entity.NetworkDefinition) ([]entity.TokenInfo, error) {
	if network.RegistryFile == "" {
		return nil, ErrNoLocalList
	}
	filePath := filepath.Join(l.tokenDirPath, network.RegistryFile+".json")
	data, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoLocalList
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file %s: %w", filePath, err)
	}

	var tokensInFile []entity.TokenInfo
	if err := json.Unmarshal(data, &tokensInFile); err != nil {
		var list listentity.TokenList
		if errList := json.Unmarshal(data, &list); errList != nil {
			return nil, fmt.Errorf("failed to unmarshal tokens from %s: %w", filePath, err)
		}
		tokensInFile = list.Tokens
	}

	valid := make([]entity.TokenInfo, 0, len(tokensInFile))
	for _, token := range tokensInFile {
		if token.ChainID != network.ChainID {
			continue
		}
		valid = append(valid, token)
	}
	if skipped := len(tokensInFile) - len(valid); skipped > 0 {
		l.logger.Debug("Skipped tokens of other chains in token file", "file", filePath, "skipped", skipped, "network", network.Identifier)
	}
	l.logger.Info("Loaded tokens from file", "network", network.Identifier, "file", filePath, "count", len(valid))
	return valid, nil
}
