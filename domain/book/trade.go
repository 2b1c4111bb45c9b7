package book

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is the immutable record of one confirmed match between two entries.
type Trade struct {
	TradeID        string          `json:"tradeId"`
	BuyOrderRef    string          `json:"buyOrderRef"`
	SellOrderRef   string          `json:"sellOrderRef"`
	Symbol         string          `json:"symbol"`
	Quantity       int64           `json:"quantity"`
	ExecutionPrice decimal.Decimal `json:"executionPrice"`
	ExecutedAt     time.Time       `json:"executedAt"`
}

// NewTrade confirms a match between the incoming entry and the resting
// counter-entry. Execution is at the resting order's limit price.
func NewTrade(incoming, counter *Entry, qty int64, now time.Time) *Trade {
	t := &Trade{
		TradeID:        uuid.NewString(),
		Symbol:         incoming.Symbol,
		Quantity:       qty,
		ExecutionPrice: counter.LimitPrice,
		ExecutedAt:     now,
	}
	if incoming.Side == SideBuy {
		t.BuyOrderRef = incoming.OrderRef
		t.SellOrderRef = counter.OrderRef
	} else {
		t.BuyOrderRef = counter.OrderRef
		t.SellOrderRef = incoming.OrderRef
	}
	return t
}
