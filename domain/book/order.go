package book

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the side a matching counter-order must have.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Status is the matching lifecycle state of a book entry.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
)

// CanTransitionTo reports whether the lifecycle allows moving to next.
// FILLED and CANCELLED are terminal; a partially filled entry can only
// be filled further, partially or in full, never cancelled by the engine.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusPartiallyFilled || next == StatusFilled || next == StatusCancelled
	case StatusPartiallyFilled:
		return next == StatusPartiallyFilled || next == StatusFilled
	case StatusFilled, StatusCancelled:
		return false
	default:
		return false
	}
}

// Entry is the engine's record of one order's matching lifecycle.
// It is created exactly once when an order is submitted and never deleted;
// only Status and RemainingQty change afterwards.
type Entry struct {
	OrderRef     string          `json:"orderRef"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	LimitPrice   decimal.Decimal `json:"limitPrice"`
	OriginalQty  int64           `json:"originalQuantity"`
	RemainingQty int64           `json:"remainingQuantity"`
	Status       Status          `json:"status"`

	// Seq orders entries for time priority. It carries no external meaning.
	Seq         uint64    `json:"seq"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// NewEntry builds a PENDING entry for a validated request.
func NewEntry(req OrderRequest, seq uint64, now time.Time) *Entry {
	return &Entry{
		OrderRef:     req.OrderRef,
		Symbol:       req.Symbol,
		Side:         req.Side,
		LimitPrice:   req.LimitPrice,
		OriginalQty:  req.Quantity,
		RemainingQty: req.Quantity,
		Status:       StatusPending,
		Seq:          seq,
		SubmittedAt:  now,
	}
}

// Eligible reports whether the entry can serve as a match candidate.
func (e *Entry) Eligible() bool {
	return (e.Status == StatusPending || e.Status == StatusPartiallyFilled) && e.RemainingQty > 0
}

// Fill decrements the remaining quantity by qty and advances the status.
func (e *Entry) Fill(qty int64) error {
	if qty <= 0 || qty > e.RemainingQty {
		return fmt.Errorf("fill of %d exceeds remaining %d on %s", qty, e.RemainingQty, e.OrderRef)
	}
	next := StatusPartiallyFilled
	if e.RemainingQty == qty {
		next = StatusFilled
	}
	if !e.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal transition %s -> %s on %s", e.Status, next, e.OrderRef)
	}
	e.RemainingQty -= qty
	e.Status = next
	return nil
}

// Cancel terminates an entry that was never matched.
func (e *Entry) Cancel() error {
	if e.RemainingQty != e.OriginalQty {
		return fmt.Errorf("cannot cancel %s: already matched", e.OrderRef)
	}
	if !e.Status.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("illegal transition %s -> %s on %s", e.Status, StatusCancelled, e.OrderRef)
	}
	e.RemainingQty = 0
	e.Status = StatusCancelled
	return nil
}

// Clone returns an independent copy.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}
