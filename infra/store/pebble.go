package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"matchd/domain/book"
)

// Pebble is a durable store backed by a pebble keyspace:
//
//	o/<orderRef>                  -> entry (JSON)
//	i/<symbol>/<side>/<seq:20>    -> orderRef
//
// The index key embeds the zero-padded sequence so a prefix scan yields
// submission order; price priority is applied on the loaded set.
type Pebble struct {
	db *pebble.DB
}

func OpenPebble(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Close() error { return p.db.Close() }

func entryKey(orderRef string) []byte {
	return []byte("o/" + orderRef)
}

func indexKey(symbol string, side book.Side, seq uint64) []byte {
	return []byte(fmt.Sprintf("i/%s/%s/%020d", symbol, side, seq))
}

func indexPrefix(symbol string, side book.Side) []byte {
	return []byte(fmt.Sprintf("i/%s/%s/", symbol, side))
}

func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}

func (p *Pebble) Insert(_ context.Context, e *book.Entry) error {
	key := entryKey(e.OrderRef)
	_, closer, err := p.db.Get(key)
	if err == nil {
		closer.Close()
		return ErrExists
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return err
	}

	val, err := json.Marshal(e)
	if err != nil {
		return err
	}

	b := p.db.NewBatch()
	defer b.Close()
	if err := b.Set(key, val, nil); err != nil {
		return err
	}
	if err := b.Set(indexKey(e.Symbol, e.Side, e.Seq), []byte(e.OrderRef), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (p *Pebble) Get(_ context.Context, orderRef string) (*book.Entry, error) {
	val, closer, err := p.db.Get(entryKey(orderRef))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	var e book.Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *Pebble) Candidates(ctx context.Context, symbol string, side book.Side) ([]*book.Entry, error) {
	entries, err := p.scanSide(ctx, symbol, side)
	if err != nil {
		return nil, err
	}
	sortByPriority(entries, side)
	return entries, nil
}

func (p *Pebble) Apply(_ context.Context, entries ...*book.Entry) error {
	b := p.db.NewBatch()
	defer b.Close()

	for _, e := range entries {
		key := entryKey(e.OrderRef)
		_, closer, err := p.db.Get(key)
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		closer.Close()

		val, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := b.Set(key, val, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *Pebble) OpenEntries(ctx context.Context, symbol string) ([]*book.Entry, error) {
	var out []*book.Entry
	for _, side := range []book.Side{book.SideBuy, book.SideSell} {
		entries, err := p.scanSide(ctx, symbol, side)
		if err != nil {
			return nil, err
		}
		sortByPriority(entries, side)
		out = append(out, entries...)
	}
	return out, nil
}

func (p *Pebble) scanSide(ctx context.Context, symbol string, side book.Side) ([]*book.Entry, error) {
	prefix := indexPrefix(symbol, side)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*book.Entry
	for iter.First(); iter.Valid(); iter.Next() {
		e, err := p.Get(ctx, string(iter.Value()))
		if err != nil {
			return nil, err
		}
		if e.Eligible() {
			out = append(out, e)
		}
	}
	return out, iter.Error()
}
