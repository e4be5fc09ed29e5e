package entity

import "time"

// AttemptMode is the kind of transfer an attempt ran.
type AttemptMode string

const (
	ModeBatch    AttemptMode = "batch"
	ModeFallback AttemptMode = "fallback"
	ModeTest     AttemptMode = "test"
)

// Attempt is the journal record of one transfer attempt.
type Attempt struct {
	ID         string        `json:"id" cbor:"1,keyasint"`
	Mode       AttemptMode   `json:"mode" cbor:"2,keyasint"`
	Account    string        `json:"account" cbor:"3,keyasint"`
	ChainID    string        `json:"chainId" cbor:"4,keyasint"`
	Recipient  string        `json:"recipient" cbor:"5,keyasint"`
	TokenCount int           `json:"tokenCount" cbor:"6,keyasint"`
	BatchID    string        `json:"batchId,omitempty" cbor:"7,keyasint,omitempty"`
	State      TransferState `json:"state" cbor:"8,keyasint"`
	TxHash     string        `json:"txHash,omitempty" cbor:"9,keyasint,omitempty"`
	Succeeded  int           `json:"succeeded" cbor:"10,keyasint"`
	Failed     int           `json:"failed" cbor:"11,keyasint"`
	Error      string        `json:"error,omitempty" cbor:"12,keyasint,omitempty"`
	StartedAt  time.Time     `json:"startedAt" cbor:"13,keyasint"`
	FinishedAt time.Time     `json:"finishedAt" cbor:"14,keyasint"`
}
