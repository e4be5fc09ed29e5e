// Package journal keeps finished transfer attempts in a pebble store, CBOR encoded,
// ordered by finish time.
package journal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"

	"github.com/cockroachdb/pebble"
	"github.com/fxamacker/cbor/v2"
)

const defaultRecentLimit = 20

var keyPrefix = []byte("attempt/")

// Journal implements port.AttemptJournal.
type Journal struct {
	db     *pebble.DB
	logger port.Logger

	encMode cbor.EncMode
	mu      sync.Mutex
	seq     uint32
}

var _ port.AttemptJournal = (*Journal)(nil)

// Open opens (or creates) the journal at dir.
func Open(dir string, logger port.Logger) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dir, err)
	}
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	encMode, err := opts.EncMode()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info("Attempt journal opened", "path", dir)
	return &Journal{db: db, logger: logger, encMode: encMode}, nil
}

// Record stores one attempt.
func (j *Journal) Record(ctx context.Context, attempt entity.Attempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := j.encMode.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("encode attempt %s: %w", attempt.ID, err)
	}
	j.mu.Lock()
	j.seq++
	key := attemptKey(attempt, j.seq)
	j.mu.Unlock()

	if err := j.db.Set(key, value, pebble.Sync); err != nil {
		return fmt.Errorf("store attempt %s: %w", attempt.ID, err)
	}
	j.logger.Debug("Attempt journaled", "attemptId", attempt.ID, "state", attempt.State)
	return nil
}

// Recent returns up to limit attempts, newest first. limit <= 0 means the default of 20.
func (j *Journal) Recent(ctx context.Context, limit int) ([]entity.Attempt, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	iter, err := j.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: prefixEnd(keyPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal iterator: %w", err)
	}

	var attempts []entity.Attempt
	for valid := iter.Last(); valid && len(attempts) < limit; valid = iter.Prev() {
		var attempt entity.Attempt
		if err := cbor.Unmarshal(iter.Value(), &attempt); err != nil {
			j.logger.Warn("Skipping undecodable journal entry", "key", string(iter.Key()), "error", err)
			continue
		}
		attempts = append(attempts, attempt)
	}
	return attempts, errors.Join(iter.Error(), iter.Close())
}

// Close closes the store.
func (j *Journal) Close() error {
	return j.db.Close()
}

// attemptKey: prefix | finishedAt (unix nano, big endian) | seq | id.
func attemptKey(attempt entity.Attempt, seq uint32) []byte {
	key := make([]byte, 0, len(keyPrefix)+12+len(attempt.ID))
	key = append(key, keyPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(attempt.FinishedAt.UnixNano()))
	key = binary.BigEndian.AppendUint32(key, seq)
	return append(key, attempt.ID...)
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}
