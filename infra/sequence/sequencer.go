package sequence

import "sync/atomic"

// Sequencer hands out the monotonic sequence used for time-priority
// tie-breaking. It carries no external meaning.
type Sequencer struct {
	next atomic.Uint64
}

func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset moves the sequencer forward after journal replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
