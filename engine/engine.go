// Package engine holds the matching core: the decision procedure that,
// given a new order and the resting book, determines whether a trade
// occurs, at what price, and how entry state moves.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"matchd/domain/book"
	"matchd/infra/sequence"
	"matchd/infra/store"
	"matchd/infra/wal"
)

// TradeSink takes ownership of a confirmed trade. Accept must be fast and
// local; actual delivery to the settlement channel happens asynchronously.
type TradeSink interface {
	Accept(ctx context.Context, t *book.Trade) error
}

// NopSink discards trades. Used during journal replay, where every trade
// was already recorded durably the first time around.
type NopSink struct{}

func (NopSink) Accept(context.Context, *book.Trade) error { return nil }

// Outcome is the terminal decision for one submission. Trade is nil when
// the order was cancelled unmatched.
type Outcome struct {
	Entry *book.Entry
	Trade *book.Trade
}

type Engine struct {
	store   store.Store
	journal *wal.WAL // nil disables journalling (replay, tests)
	seq     *sequence.Sequencer
	sink    TradeSink
	log     *zap.Logger
	now     func() time.Time
}

func New(st store.Store, journal *wal.WAL, seq *sequence.Sequencer, sink TradeSink, log *zap.Logger) *Engine {
	return &Engine{
		store:   st,
		journal: journal,
		seq:     seq,
		sink:    sink,
		log:     log,
		now:     time.Now,
	}
}

// Submit runs one order to a terminal decision: matched against a single
// counter-entry in full, or cancelled. Exactly zero or one trade results.
//
// Callers must serialize submissions per symbol; see Router.
func (e *Engine) Submit(ctx context.Context, req book.OrderRequest) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}

	if _, err := e.store.Get(ctx, req.OrderRef); err == nil {
		return Outcome{}, book.ErrDuplicateOrder
	} else if !errors.Is(err, store.ErrNotFound) {
		return Outcome{}, book.NewStorageError("get", err)
	}

	entry := book.NewEntry(req, e.seq.Next(), e.now())

	if e.journal != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return Outcome{}, err
		}
		if err := e.journal.Append(wal.NewRecord(entry.Seq, data)); err != nil {
			return Outcome{}, book.NewStorageError("journal", err)
		}
	}

	if err := e.store.Insert(ctx, entry); err != nil {
		return Outcome{}, book.NewStorageError("insert", err)
	}

	counter, err := e.findCounter(ctx, entry)
	if err != nil {
		return Outcome{}, err
	}

	if counter == nil {
		if err := entry.Cancel(); err != nil {
			return Outcome{}, err
		}
		if err := e.store.Apply(ctx, entry); err != nil {
			return Outcome{}, book.NewStorageError("apply", err)
		}
		e.log.Debug("order cancelled, no counter-entry",
			zap.String("orderRef", entry.OrderRef),
			zap.String("symbol", entry.Symbol))
		return Outcome{Entry: entry}, nil
	}

	qty := entry.RemainingQty
	if err := counter.Fill(qty); err != nil {
		return Outcome{}, err
	}
	if err := entry.Fill(qty); err != nil {
		return Outcome{}, err
	}

	trade := book.NewTrade(entry, counter, qty, e.now())

	// Both entry mutations commit as one atomic unit; the trade only
	// exists once they are durable.
	if err := e.store.Apply(ctx, entry, counter); err != nil {
		return Outcome{}, book.NewStorageError("apply", err)
	}

	if err := e.sink.Accept(ctx, trade); err != nil {
		// The match is durable but the trade never reached the outbox.
		// Swallowing this would lose the trade for good; the sink write is
		// local and synchronous, so the failure surfaces like any other
		// storage failure.
		e.log.Error("trade handoff failed",
			zap.String("tradeId", trade.TradeID),
			zap.Error(err))
		return Outcome{}, book.NewStorageError("outbox", err)
	}

	e.log.Info("trade executed",
		zap.String("tradeId", trade.TradeID),
		zap.String("symbol", trade.Symbol),
		zap.Int64("quantity", trade.Quantity),
		zap.String("price", trade.ExecutionPrice.String()),
		zap.String("buyOrderRef", trade.BuyOrderRef),
		zap.String("sellOrderRef", trade.SellOrderRef))

	return Outcome{Entry: entry, Trade: trade}, nil
}

// findCounter scans the opposite side in price-time priority and picks the
// first price-compatible entry able to fill the incoming order in full.
// The incoming order is never split across counter-entries.
func (e *Engine) findCounter(ctx context.Context, entry *book.Entry) (*book.Entry, error) {
	candidates, err := e.store.Candidates(ctx, entry.Symbol, entry.Side.Opposite())
	if err != nil {
		return nil, book.NewStorageError("candidates", err)
	}

	for _, c := range candidates {
		if !priceCompatible(entry, c) {
			continue
		}
		if c.RemainingQty >= entry.RemainingQty {
			return c, nil
		}
	}
	return nil, nil
}

func priceCompatible(incoming, resting *book.Entry) bool {
	if incoming.Side == book.SideBuy {
		return resting.LimitPrice.LessThanOrEqual(incoming.LimitPrice)
	}
	return resting.LimitPrice.GreaterThanOrEqual(incoming.LimitPrice)
}
