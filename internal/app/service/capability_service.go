package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
)

// allChainsKey is the EIP-5792 key for capabilities that apply to every chain.
const allChainsKey = "0x0"

// Wallet error codes for a method the wallet does not implement.
const (
	codeMethodNotFound    = -32601
	codeUnsupportedMethod = 4200
)

// eip7702Prefix marks delegated EOA code.
var eip7702Prefix = []byte{0xef, 0x01, 0x00}

type capabilityServiceImpl struct {
	wallet   port.WalletRPC
	networks port.NetworkDefinitionProvider
	logger   port.Logger
	now      func() time.Time
}

// NewCapabilityService creates the capability negotiator.
func NewCapabilityService(wallet port.WalletRPC, networks port.NetworkDefinitionProvider, logger port.Logger) port.CapabilityNegotiator {
	return &capabilityServiceImpl{wallet: wallet, networks: networks, logger: logger, now: time.Now}
}

// QueryAtomicSupport asks the wallet once and interprets the answer for the session chain.
// Transport failures yield AtomicIndeterminate together with the error.
func (s *capabilityServiceImpl) QueryAtomicSupport(ctx context.Context, session entity.Session) (entity.CapabilitySnapshot, error) {
	snapshot := entity.CapabilitySnapshot{ChainID: session.ChainID, Status: entity.AtomicIndeterminate, CheckedAt: s.now()}

	caps, err := s.wallet.GetCapabilities(ctx, session.Account, []string{session.ChainID})
	if err != nil {
		if methodMissing(err) {
			// wallet predates EIP-5792
			s.logger.Info("wallet_getCapabilities not available", "chainId", session.ChainID, "error", err)
			snapshot.Status = entity.AtomicAbsent
			return snapshot, nil
		}
		s.logger.Warn("Capability query failed", "chainId", session.ChainID, "error", err)
		if kind := entity.KindOf(err); kind != entity.KindTransport && kind != entity.KindProtocol {
			err = entity.NewError(entity.KindTransport, "capability query failed", err)
		}
		return snapshot, err
	}

	entry, ok := lookupChain(caps, session.ChainID)
	if !ok {
		snapshot.Status = entity.AtomicAbsent
	} else {
		snapshot.Status = interpretAtomic(entry)
	}
	s.logger.Debug("Atomic batch capability", "chainId", session.ChainID, "status", snapshot.Status)
	return snapshot, nil
}

// methodMissing reports whether the wallet does not implement the called method at all.
// Other protocol errors, such as invalid params, say nothing about capabilities.
func methodMissing(err error) bool {
	var te *entity.TransferError
	if !errors.As(err, &te) {
		return false
	}
	switch te.Code {
	case codeMethodNotFound, codeUnsupportedMethod:
		return true
	case 0, -32000:
		msg := strings.ToLower(te.Error())
		return te.Kind == entity.KindProtocol &&
			(strings.Contains(msg, "method not found") || strings.Contains(msg, "does not exist"))
	}
	return false
}

func lookupChain(caps entity.WalletCapabilities, chainID string) (entity.ChainCapabilities, bool) {
	for key, entry := range caps {
		if key != allChainsKey && entity.SameChain(key, chainID) {
			return entry, true
		}
	}
	entry, ok := caps[allChainsKey]
	return entry, ok
}

func interpretAtomic(entry entity.ChainCapabilities) entity.AtomicStatus {
	if entry.Atomic != nil {
		switch strings.ToLower(entry.Atomic.Status) {
		case "ready":
			return entity.AtomicReady
		case "supported":
			return entity.AtomicSupported
		default:
			return entity.AtomicUnsupported
		}
	}
	if entry.AtomicBatch != nil {
		if entry.AtomicBatch.Supported {
			return entity.AtomicSupported
		}
		return entity.AtomicUnsupported
	}
	return entity.AtomicAbsent
}

// SupportReport runs independent diagnostics; one failing check never hides the others.
func (s *capabilityServiceImpl) SupportReport(ctx context.Context, session entity.Session) []entity.SupportCheck {
	checks := make([]entity.SupportCheck, 0, 5)

	snapshot, err := s.QueryAtomicSupport(ctx, session)
	switch {
	case err != nil:
		checks = append(checks, entity.SupportCheck{Name: "Atomic batching", Severity: entity.SeverityError, Detail: err.Error()})
	case snapshot.Status.AllowsBatch():
		checks = append(checks, entity.SupportCheck{Name: "Atomic batching", Severity: entity.SeveritySuccess, Detail: "status " + string(snapshot.Status)})
	default:
		checks = append(checks, entity.SupportCheck{Name: "Atomic batching", Severity: entity.SeverityWarning, Detail: "status " + string(snapshot.Status)})
	}

	probe := entity.NewBatchRequest(session, []entity.TransferCall{})
	if _, err := s.wallet.SendCalls(ctx, probe); err != nil {
		if methodMissing(err) {
			checks = append(checks, entity.SupportCheck{Name: "wallet_sendCalls", Severity: entity.SeverityError, Detail: "method not available"})
		} else {
			checks = append(checks, entity.SupportCheck{Name: "wallet_sendCalls", Severity: entity.SeveritySuccess, Detail: fmt.Sprintf("method available (empty probe rejected: %v)", err)})
		}
	} else {
		checks = append(checks, entity.SupportCheck{Name: "wallet_sendCalls", Severity: entity.SeveritySuccess, Detail: "method available"})
	}

	checks = append(checks, entity.SupportCheck{
		Name:     "Network",
		Severity: entity.SeverityInfo,
		Detail:   fmt.Sprintf("%s (%s)", s.networks.NetworkName(session.ChainID), session.ChainID),
	})

	if version, err := s.wallet.ClientVersion(ctx); err != nil {
		checks = append(checks, entity.SupportCheck{Name: "Wallet client", Severity: entity.SeverityWarning, Detail: "unknown: " + err.Error()})
	} else {
		checks = append(checks, entity.SupportCheck{Name: "Wallet client", Severity: entity.SeverityInfo, Detail: version})
	}

	code, err := s.wallet.GetCode(ctx, session.Account)
	switch {
	case err != nil:
		checks = append(checks, entity.SupportCheck{Name: "Account type", Severity: entity.SeverityWarning, Detail: "unknown: " + err.Error()})
	case len(code) == 0:
		checks = append(checks, entity.SupportCheck{Name: "Account type", Severity: entity.SeverityInfo, Detail: "EOA (externally owned account)"})
	case bytes.HasPrefix(code, eip7702Prefix):
		checks = append(checks, entity.SupportCheck{Name: "Account type", Severity: entity.SeverityInfo, Detail: "EOA with EIP-7702 delegation"})
	default:
		checks = append(checks, entity.SupportCheck{Name: "Account type", Severity: entity.SeverityInfo, Detail: "smart contract account"})
	}
	return checks
}
