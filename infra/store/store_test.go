package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchd/domain/book"
)

// Both backends must satisfy the same contract, so every test runs
// against both.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	p, err := OpenPebble(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"pebble": p,
	}
}

func entry(ref, symbol string, side book.Side, qty int64, price string, seq uint64) *book.Entry {
	return book.NewEntry(book.OrderRequest{
		OrderRef:   ref,
		Symbol:     symbol,
		Side:       side,
		Quantity:   qty,
		LimitPrice: decimal.RequireFromString(price),
	}, seq, time.Now())
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			e := entry("ord-1", "AAPL", book.SideBuy, 100, "10.50", 1)
			require.NoError(t, st.Insert(ctx, e))

			got, err := st.Get(ctx, "ord-1")
			require.NoError(t, err)
			assert.Equal(t, e.OrderRef, got.OrderRef)
			assert.Equal(t, e.Seq, got.Seq)
			assert.True(t, e.LimitPrice.Equal(got.LimitPrice))

			_, err = st.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestInsertRejectsDuplicateRef(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Insert(ctx, entry("ord-1", "AAPL", book.SideBuy, 100, "10.50", 1)))
			assert.ErrorIs(t, st.Insert(ctx, entry("ord-1", "AAPL", book.SideSell, 50, "9.00", 2)), ErrExists)
		})
	}
}

func TestCandidatesPriceTimeOrder(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			// Sells inserted out of price order; ties on price decided by seq.
			require.NoError(t, st.Insert(ctx, entry("s-3", "AAPL", book.SideSell, 10, "10.20", 3)))
			require.NoError(t, st.Insert(ctx, entry("s-1", "AAPL", book.SideSell, 10, "10.00", 1)))
			require.NoError(t, st.Insert(ctx, entry("s-2", "AAPL", book.SideSell, 10, "10.00", 2)))

			sells, err := st.Candidates(ctx, "AAPL", book.SideSell)
			require.NoError(t, err)
			require.Len(t, sells, 3)
			assert.Equal(t, "s-1", sells[0].OrderRef)
			assert.Equal(t, "s-2", sells[1].OrderRef)
			assert.Equal(t, "s-3", sells[2].OrderRef)

			// Buys: highest bid first.
			require.NoError(t, st.Insert(ctx, entry("b-1", "AAPL", book.SideBuy, 10, "9.80", 4)))
			require.NoError(t, st.Insert(ctx, entry("b-2", "AAPL", book.SideBuy, 10, "10.10", 5)))

			buys, err := st.Candidates(ctx, "AAPL", book.SideBuy)
			require.NoError(t, err)
			require.Len(t, buys, 2)
			assert.Equal(t, "b-2", buys[0].OrderRef)
			assert.Equal(t, "b-1", buys[1].OrderRef)
		})
	}
}

func TestCandidatesExcludeIneligible(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			open := entry("s-1", "AAPL", book.SideSell, 10, "10.00", 1)
			cancelled := entry("s-2", "AAPL", book.SideSell, 10, "10.00", 2)
			filled := entry("s-3", "AAPL", book.SideSell, 10, "10.00", 3)

			require.NoError(t, cancelled.Cancel())
			require.NoError(t, filled.Fill(10))

			for _, e := range []*book.Entry{open, cancelled, filled} {
				require.NoError(t, st.Insert(ctx, e))
			}

			sells, err := st.Candidates(ctx, "AAPL", book.SideSell)
			require.NoError(t, err)
			require.Len(t, sells, 1)
			assert.Equal(t, "s-1", sells[0].OrderRef)
		})
	}
}

func TestCandidatesScopedToSymbol(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Insert(ctx, entry("s-1", "AAPL", book.SideSell, 10, "10.00", 1)))
			require.NoError(t, st.Insert(ctx, entry("s-2", "GOOG", book.SideSell, 10, "10.00", 2)))

			sells, err := st.Candidates(ctx, "AAPL", book.SideSell)
			require.NoError(t, err)
			require.Len(t, sells, 1)
			assert.Equal(t, "s-1", sells[0].OrderRef)
		})
	}
}

func TestApplyPersistsUpdates(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			a := entry("ord-1", "AAPL", book.SideSell, 100, "10.00", 1)
			b := entry("ord-2", "AAPL", book.SideBuy, 40, "10.00", 2)
			require.NoError(t, st.Insert(ctx, a))
			require.NoError(t, st.Insert(ctx, b))

			require.NoError(t, a.Fill(40))
			require.NoError(t, b.Fill(40))
			require.NoError(t, st.Apply(ctx, a, b))

			got, err := st.Get(ctx, "ord-1")
			require.NoError(t, err)
			assert.Equal(t, book.StatusPartiallyFilled, got.Status)
			assert.Equal(t, int64(60), got.RemainingQty)

			got, err = st.Get(ctx, "ord-2")
			require.NoError(t, err)
			assert.Equal(t, book.StatusFilled, got.Status)
		})
	}
}

func TestApplyUnknownRefFails(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := st.Apply(ctx, entry("ghost", "AAPL", book.SideBuy, 10, "10.00", 1))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestOpenEntriesBothSides(t *testing.T) {
	ctx := context.Background()
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Insert(ctx, entry("b-1", "AAPL", book.SideBuy, 10, "9.90", 1)))
			require.NoError(t, st.Insert(ctx, entry("s-1", "AAPL", book.SideSell, 10, "10.10", 2)))
			done := entry("s-2", "AAPL", book.SideSell, 10, "10.00", 3)
			require.NoError(t, done.Fill(10))
			require.NoError(t, st.Insert(ctx, done))

			open, err := st.OpenEntries(ctx, "AAPL")
			require.NoError(t, err)
			require.Len(t, open, 2)

			refs := map[string]bool{}
			for _, e := range open {
				refs[e.OrderRef] = true
			}
			assert.True(t, refs["b-1"])
			assert.True(t, refs["s-1"])
		})
	}
}

func TestMemoryReturnsClones(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	e := entry("ord-1", "AAPL", book.SideBuy, 100, "10.00", 1)
	require.NoError(t, st.Insert(ctx, e))

	got, err := st.Get(ctx, "ord-1")
	require.NoError(t, err)
	got.RemainingQty = 0
	got.Status = book.StatusFilled

	// Mutating the returned entry must not leak into the store.
	again, err := st.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, book.StatusPending, again.Status)
	assert.Equal(t, int64(100), again.RemainingQty)
}

func TestPebbleSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	p, err := OpenPebble(dir)
	require.NoError(t, err)
	require.NoError(t, p.Insert(ctx, entry("ord-1", "AAPL", book.SideSell, 10, "10.00", 1)))
	require.NoError(t, p.Close())

	p, err = OpenPebble(dir)
	require.NoError(t, err)
	defer p.Close()

	got, err := p.Get(ctx, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", got.OrderRef)

	sells, err := p.Candidates(ctx, "AAPL", book.SideSell)
	require.NoError(t, err)
	require.Len(t, sells, 1)
}
