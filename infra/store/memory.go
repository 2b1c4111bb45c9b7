package store

import (
	"context"
	"sync"

	"matchd/domain/book"
)

// Memory is the reference in-memory store. All operations run under one
// mutex, so a candidate scan followed by Apply from the same symbol worker
// never observes a torn update. Entries are stored as private copies;
// callers always get clones back.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*book.Entry   // orderRef -> entry
	bySide  map[string][]*book.Entry // symbol/side -> entries in insert order
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*book.Entry),
		bySide:  make(map[string][]*book.Entry),
	}
}

func sideKey(symbol string, side book.Side) string {
	return symbol + "/" + string(side)
}

func (m *Memory) Insert(_ context.Context, e *book.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[e.OrderRef]; ok {
		return ErrExists
	}
	c := e.Clone()
	m.entries[c.OrderRef] = c
	k := sideKey(c.Symbol, c.Side)
	m.bySide[k] = append(m.bySide[k], c)
	return nil
}

func (m *Memory) Get(_ context.Context, orderRef string) (*book.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[orderRef]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (m *Memory) Candidates(_ context.Context, symbol string, side book.Side) ([]*book.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*book.Entry
	for _, e := range m.bySide[sideKey(symbol, side)] {
		if e.Eligible() {
			out = append(out, e.Clone())
		}
	}
	sortByPriority(out, side)
	return out, nil
}

func (m *Memory) Apply(_ context.Context, entries ...*book.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate first so the batch is all-or-nothing.
	for _, e := range entries {
		if _, ok := m.entries[e.OrderRef]; !ok {
			return ErrNotFound
		}
	}
	for _, e := range entries {
		cur := m.entries[e.OrderRef]
		*cur = *e // keeps the bySide index pointing at the live copy
	}
	return nil
}

func (m *Memory) OpenEntries(_ context.Context, symbol string) ([]*book.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*book.Entry
	for _, side := range []book.Side{book.SideBuy, book.SideSell} {
		var entries []*book.Entry
		for _, e := range m.bySide[sideKey(symbol, side)] {
			if e.Eligible() {
				entries = append(entries, e.Clone())
			}
		}
		sortByPriority(entries, side)
		out = append(out, entries...)
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
