package store

import (
	"context"
	"errors"
	"sort"

	"matchd/domain/book"
)

var (
	ErrNotFound = errors.New("entry not found")
	ErrExists   = errors.New("entry already exists")
)

// Store is the durable mapping from orderRef to book entry. Implementations
// must apply every Apply call as a single atomic unit: either all entries are
// updated or none are.
type Store interface {
	// Insert persists a new entry. Fails with ErrExists if the orderRef is taken.
	Insert(ctx context.Context, e *book.Entry) error

	// Get returns the entry for orderRef, or ErrNotFound.
	Get(ctx context.Context, orderRef string) (*book.Entry, error)

	// Candidates returns the eligible entries on the given side of the book
	// for symbol, in price-time priority order: SELL candidates cheapest
	// first, BUY candidates highest bid first, ties broken by sequence.
	Candidates(ctx context.Context, symbol string, side book.Side) ([]*book.Entry, error)

	// Apply updates previously inserted entries atomically.
	Apply(ctx context.Context, entries ...*book.Entry) error

	// OpenEntries returns every eligible entry for symbol, both sides,
	// each side in price-time priority order.
	OpenEntries(ctx context.Context, symbol string) ([]*book.Entry, error)

	Close() error
}

// sortByPriority orders entries in match priority for the given candidate
// side. Returned trades execute at the resting price, so a BUY aggressor
// wants the cheapest SELL and a SELL aggressor wants the highest BUY.
func sortByPriority(entries []*book.Entry, side book.Side) {
	sort.Slice(entries, func(i, j int) bool {
		cmp := entries[i].LimitPrice.Cmp(entries[j].LimitPrice)
		if cmp != 0 {
			if side == book.SideSell {
				return cmp < 0
			}
			return cmp > 0
		}
		return entries[i].Seq < entries[j].Seq
	})
}
