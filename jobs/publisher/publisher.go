// Package publisher drains the trade outbox to the settlement channel.
// Delivery is at-least-once: consumers deduplicate on tradeId.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"matchd/domain/book"
	"matchd/infra/outbox"
)

type Config struct {
	Topic       string
	Interval    time.Duration
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 250 * time.Millisecond
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
}

type Publisher struct {
	outbox   *outbox.Outbox
	producer sarama.SyncProducer
	cfg      Config
	log      *zap.Logger
}

// New connects a sync producer to the brokers. All sends wait for full ISR
// acknowledgement; the outbox handles retries beyond sarama's own.
func New(ob *outbox.Outbox, brokers []string, cfg Config, log *zap.Logger) (*Publisher, error) {
	scfg := sarama.NewConfig()
	scfg.Producer.Return.Successes = true
	scfg.Producer.RequiredAcks = sarama.WaitForAll
	scfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, scfg)
	if err != nil {
		return nil, err
	}
	return NewWithProducer(ob, producer, cfg, log), nil
}

// NewWithProducer wires an existing producer; tests pass sarama's mock.
func NewWithProducer(ob *outbox.Outbox, producer sarama.SyncProducer, cfg Config, log *zap.Logger) *Publisher {
	cfg.defaults()
	return &Publisher{
		outbox:   ob,
		producer: producer,
		cfg:      cfg,
		log:      log,
	}
}

// Run drains the outbox until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	p.log.Info("trade publisher started", zap.String("topic", p.cfg.Topic))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Flush(); err != nil {
				p.log.Error("outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush attempts delivery for every due record. Send failures stay in the
// outbox with an incremented retry count; they never propagate upstream.
func (p *Publisher) Flush() error {
	now := time.Now()

	return p.outbox.ScanPending(func(tradeID string, rec outbox.Record) error {
		if !p.due(rec, now) {
			return nil
		}

		var trade book.Trade
		if err := json.Unmarshal(rec.Payload, &trade); err != nil {
			// Unreadable payload cannot ever deliver; drop it loudly.
			p.log.Error("dropping undecodable outbox record",
				zap.String("tradeId", tradeID), zap.Error(err))
			return p.outbox.Ack(tradeID)
		}

		if err := p.outbox.MarkSent(tradeID); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: p.cfg.Topic,
			Key:   sarama.StringEncoder(trade.Symbol),
			Value: sarama.ByteEncoder(rec.Payload),
			Headers: []sarama.RecordHeader{
				{Key: []byte("tradeId"), Value: []byte(tradeID)},
			},
		}

		if _, _, err := p.producer.SendMessage(msg); err != nil {
			p.log.Warn("trade publish failed, will retry",
				zap.String("tradeId", tradeID),
				zap.Uint32("retries", rec.Retries),
				zap.Error(err))
			return p.outbox.MarkFailed(tradeID)
		}

		p.log.Debug("trade published",
			zap.String("tradeId", tradeID),
			zap.String("symbol", trade.Symbol))
		return p.outbox.Ack(tradeID)
	})
}

// due gates redelivery with exponential backoff on the retry count.
func (p *Publisher) due(rec outbox.Record, now time.Time) bool {
	if rec.State == outbox.StateNew {
		return true
	}
	backoff := p.cfg.BaseBackoff << rec.Retries
	if backoff > p.cfg.MaxBackoff || backoff <= 0 {
		backoff = p.cfg.MaxBackoff
	}
	return now.Sub(time.Unix(0, rec.LastAttempt)) >= backoff
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
