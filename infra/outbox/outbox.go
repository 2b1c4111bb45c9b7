// Package outbox is the durable handoff between the matching engine and the
// trade channel. A confirmed trade is written here synchronously; the
// publisher drains it with at-least-once delivery.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/cockroachdb/pebble"

	"matchd/domain/book"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Record tracks one trade's delivery attempt state.
type Record struct {
	State       State
	Retries     uint32
	LastAttempt int64 // unix nanos of the last send attempt
	Payload     []byte
}

// binary layout: [state:1][retries:4][lastAttempt:8][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, 13+len(r.Payload))
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	copy(buf[13:], r.Payload)
	return buf
}

func decodeRecord(b []byte) (Record, error) {
	if len(b) < 13 {
		return Record{}, errors.New("invalid outbox record length")
	}
	return Record{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Payload:     append([]byte(nil), b[13:]...),
	}, nil
}

const keyPrefix = "t/"

func keyFor(tradeID string) []byte {
	return []byte(keyPrefix + tradeID)
}

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error { return o.db.Close() }

// Accept records a trade for delivery. It satisfies the engine's trade sink:
// the write is local and synchronous, so the match decision never waits on
// the broker. Keyed by tradeId, so accepting the same trade twice is a no-op.
func (o *Outbox) Accept(_ context.Context, t *book.Trade) error {
	key := keyFor(t.TradeID)
	_, closer, err := o.db.Get(key)
	if err == nil {
		closer.Close()
		return nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}

	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}
	rec := Record{State: StateNew, Payload: payload}
	return o.db.Set(key, encodeRecord(rec), pebble.Sync)
}

// ScanPending iterates every undelivered trade in key order.
func (o *Outbox) ScanPending(fn func(tradeID string, rec Record) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "\xff"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		id := string(iter.Key()[len(keyPrefix):])
		if err := fn(id, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// MarkSent stamps the record before a send attempt, so a crash mid-send
// still leaves it eligible for redelivery.
func (o *Outbox) MarkSent(tradeID string) error {
	return o.update(tradeID, func(rec *Record) {
		rec.State = StateSent
		rec.LastAttempt = time.Now().UnixNano()
	})
}

// MarkFailed counts a failed attempt; the publisher backs off on Retries.
func (o *Outbox) MarkFailed(tradeID string) error {
	return o.update(tradeID, func(rec *Record) {
		rec.State = StateFailed
		rec.Retries++
		rec.LastAttempt = time.Now().UnixNano()
	})
}

// Ack removes a trade once the broker acknowledged it.
func (o *Outbox) Ack(tradeID string) error {
	return o.db.Delete(keyFor(tradeID), pebble.Sync)
}

func (o *Outbox) update(tradeID string, mutate func(*Record)) error {
	key := keyFor(tradeID)
	val, closer, err := o.db.Get(key)
	if err != nil {
		return err
	}
	rec, err := decodeRecord(val)
	closer.Close()
	if err != nil {
		return err
	}
	mutate(&rec)
	return o.db.Set(key, encodeRecord(rec), pebble.Sync)
}
