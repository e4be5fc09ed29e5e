package entity

import "time"

// AtomicStatus is the wallet-advertised atomic batching support level.
type AtomicStatus string

const (
	AtomicAbsent        AtomicStatus = "absent"
	AtomicUnsupported   AtomicStatus = "unsupported"
	AtomicSupported     AtomicStatus = "supported"
	AtomicReady         AtomicStatus = "ready"
	AtomicIndeterminate AtomicStatus = "indeterminate"
)

// AllowsBatch reports whether wallet_sendCalls may be issued.
func (s AtomicStatus) AllowsBatch() bool {
	return s == AtomicSupported || s == AtomicReady
}

// AtomicCapability is the "atomic" entry of a chain's capabilities.
type AtomicCapability struct {
	Status string `json:"status"`
}

// ChainCapabilities is one chain's entry in a wallet_getCapabilities response.
// Capabilities other than atomic are ignored.
type ChainCapabilities struct {
	Atomic      *AtomicCapability  `json:"atomic,omitempty"`
	AtomicBatch *LegacyAtomicBatch `json:"atomicBatch,omitempty"`
}

// WalletCapabilities maps hex chain ids to their capabilities.
type WalletCapabilities map[string]ChainCapabilities

// CapabilitySnapshot is the interpreted capability for one chain at one point in time.
type CapabilitySnapshot struct {
	ChainID   string       `json:"chainId"`
	Status    AtomicStatus `json:"status"`
	CheckedAt time.Time    `json:"checkedAt"`
}

// Severity of a status message or report line.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// SupportCheck is one line of the wallet support report.
type SupportCheck struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}

// LegacyAtomicBatch is the pre-2.0 "atomicBatch" capability shape.
type LegacyAtomicBatch struct {
	Supported bool `json:"supported"`
}
