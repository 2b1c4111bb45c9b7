// Package ingest adapts OrderSubmitted commands from the order-placement
// channel into engine submissions. The channel is at-least-once, so the
// adapter deduplicates by orderRef and only commits offsets for messages
// that reached a terminal outcome.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"matchd/domain/book"
	"matchd/engine"
)

// Submitter is satisfied by engine.Router.
type Submitter interface {
	Submit(ctx context.Context, req book.OrderRequest) (engine.Outcome, error)
}

// Source is satisfied by the kafka consumer.
type Source interface {
	Fetch(ctx context.Context) (kafkago.Message, error)
	Commit(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// orderSubmitted is the inbound wire payload.
type orderSubmitted struct {
	OrderRef   string          `json:"orderRef"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Quantity   int64           `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limitPrice"`
}

type Adapter struct {
	source    Source
	submitter Submitter
	log       *zap.Logger
	backoff   time.Duration
}

func New(source Source, submitter Submitter, log *zap.Logger) *Adapter {
	return &Adapter{
		source:    source,
		submitter: submitter,
		log:       log,
		backoff:   time.Second,
	}
}

// Run consumes until ctx is cancelled. A message is retried in place while
// the store is unavailable; malformed and duplicate commands are dropped.
func (a *Adapter) Run(ctx context.Context) error {
	a.log.Info("ingestion adapter started")

	for {
		msg, err := a.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.log.Error("fetch failed", zap.Error(err))
			continue
		}

		for {
			if err := a.Handle(ctx, msg.Value); err == nil {
				break
			} else {
				a.log.Warn("submission failed, retrying",
					zap.Int64("offset", msg.Offset), zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(a.backoff):
			}
		}

		if err := a.source.Commit(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Redelivery after a failed commit is absorbed by dedupe.
			a.log.Warn("offset commit failed", zap.Error(err))
		}
	}
}

// Handle processes one raw command. A nil return means the message is done
// with, whatever the outcome; an error means the whole submit should be
// retried.
func (a *Adapter) Handle(ctx context.Context, payload []byte) error {
	var cmd orderSubmitted
	if err := json.Unmarshal(payload, &cmd); err != nil {
		a.log.Warn("dropping undecodable command", zap.Error(err))
		return nil
	}

	req := book.OrderRequest{
		OrderRef:   cmd.OrderRef,
		Symbol:     cmd.Symbol,
		Side:       book.Side(cmd.Side),
		Quantity:   cmd.Quantity,
		LimitPrice: cmd.LimitPrice,
	}

	_, err := a.submitter.Submit(ctx, req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, book.ErrDuplicateOrder):
		a.log.Debug("skipping redelivered order", zap.String("orderRef", cmd.OrderRef))
		return nil
	case errors.Is(err, book.ErrInvalidOrder):
		a.log.Warn("rejecting invalid order",
			zap.String("orderRef", cmd.OrderRef), zap.Error(err))
		return nil
	default:
		return err
	}
}

func (a *Adapter) Close() error {
	return a.source.Close()
}
