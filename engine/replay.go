package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"matchd/domain/book"
	"matchd/infra/sequence"
	"matchd/infra/store"
	"matchd/infra/wal"
)

// Replay rebuilds book state by re-running every journalled submission
// through the matching core before the engine accepts traffic. Trades are
// discarded: the outbox already owns them durably from the first run.
// Records whose orderRef is already present (retried submits, durable
// stores) are skipped, so replay is idempotent.
func Replay(ctx context.Context, dir string, st store.Store, seq *sequence.Sequencer, log *zap.Logger) error {
	replayer := New(st, nil, seq, NopSink{}, log)

	replayed := 0
	lastSeq, err := wal.Replay(dir, func(rec *wal.Record) error {
		var req book.OrderRequest
		if err := json.Unmarshal(rec.Data, &req); err != nil {
			return fmt.Errorf("journal record %d: %w", rec.Seq, err)
		}
		if _, err := replayer.Submit(ctx, req); err != nil {
			if errors.Is(err, book.ErrDuplicateOrder) {
				return nil
			}
			return fmt.Errorf("journal record %d: %w", rec.Seq, err)
		}
		replayed++
		return nil
	})
	if err != nil {
		return err
	}

	// Resume sequencing strictly after everything in the journal.
	seq.Reset(lastSeq)

	log.Info("journal replay complete",
		zap.Int("replayed", replayed),
		zap.Uint64("lastSeq", lastSeq))
	return nil
}
