package entity

import "time"

// TransferState is the orchestrator state.
type TransferState string

const (
	StateIdle              TransferState = "idle"
	StatePreflightChecking TransferState = "preflight_checking"
	StateBuilding          TransferState = "building"
	StateSubmitting        TransferState = "submitting"
	StateTracking          TransferState = "tracking"
	StateSucceeded         TransferState = "succeeded"
	StateFailed            TransferState = "failed"
	StateTimedOut          TransferState = "timed_out"
	StateFallbackOffered   TransferState = "fallback_offered"
	StateFallbackRunning   TransferState = "fallback_running"
	StateFallbackDone      TransferState = "fallback_done"
)

// Busy reports whether an attempt owns the orchestrator in this state.
func (s TransferState) Busy() bool {
	switch s {
	case StatePreflightChecking, StateBuilding, StateSubmitting, StateTracking, StateFallbackRunning:
		return true
	}
	return false
}

// StatusMessage is a human-readable progress or result line.
type StatusMessage struct {
	Severity Severity  `json:"severity"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// OutcomeKind is the terminal result of tracking a batch.
type OutcomeKind string

const (
	OutcomeConfirmed OutcomeKind = "confirmed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeTimedOut  OutcomeKind = "timed_out"
	OutcomeCancelled OutcomeKind = "cancelled"
)

// TrackOutcome is produced once per tracked batch.
type TrackOutcome struct {
	Kind        OutcomeKind `json:"kind"`
	BatchID     BatchID     `json:"batchId"`
	Status      BatchStatus `json:"status"`
	TxHash      string      `json:"txHash,omitempty"`
	ExplorerURL string      `json:"explorerUrl,omitempty"`
	Attempts    int         `json:"attempts"`
	Error       string      `json:"error,omitempty"`
}

// FallbackResult is the outcome of one individual transfer.
type FallbackResult struct {
	Symbol  string `json:"symbol"`
	Address string `json:"address"`
	TxHash  string `json:"txHash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FallbackSummary aggregates a sequential transfer run.
type FallbackSummary struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []FallbackResult `json:"results"`
}

// Success reports whether at least one transfer was submitted.
func (s FallbackSummary) Success() bool { return s.Succeeded > 0 }
